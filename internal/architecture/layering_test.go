package architecture_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const modulesImport = "tether/internal/modules/"

func TestHexagonalLayerImports(t *testing.T) {
	t.Parallel()
	walkImports(t, filepath.Join("..", "modules"), func(path, importPath string) {
		if !strings.Contains(importPath, modulesImport) {
			return
		}
		module := moduleName(path)
		layer := detectLayer(path)
		if module == "" || layer == "" {
			return
		}
		if violatesLayerRule(module, layer, importPath) {
			t.Errorf("forbidden import in %s (%s): %s", path, layer, importPath)
		}
	})
}

func TestPlatformDoesNotImportModules(t *testing.T) {
	t.Parallel()
	walkImports(t, filepath.Join("..", "platform"), func(path, importPath string) {
		if strings.Contains(importPath, modulesImport) || strings.HasSuffix(importPath, "/internal/bootstrap") {
			t.Errorf("platform package %s imports %s", path, importPath)
		}
	})
}

func walkImports(t *testing.T, root string, visit func(path, importPath string)) {
	t.Helper()
	fset := token.NewFileSet()
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		node, parseErr := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if parseErr != nil {
			return parseErr
		}
		slash := filepath.ToSlash(path)
		for _, imp := range node.Imports {
			visit(slash, strings.Trim(imp.Path.Value, `"`))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
}

func moduleName(path string) string {
	parts := strings.Split(path, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "modules" {
			return parts[i+1]
		}
	}
	return ""
}

func detectLayer(path string) string {
	for _, layer := range []string{"adapter/in", "adapter/out", "usecase", "service", "domain", "port/in", "port/out", "dto"} {
		if strings.Contains(path, "/"+layer+"/") {
			return layer
		}
	}
	return ""
}

// hasSegment reports whether segment appears as whole path elements of an
// import path, e.g. "service" in ".../sync/service".
func hasSegment(importPath, segment string) bool {
	return strings.Contains(importPath, "/"+segment+"/") || strings.HasSuffix(importPath, "/"+segment)
}

func violatesLayerRule(module, layer, importPath string) bool {
	sameModule := strings.Contains(importPath, modulesImport+module+"/")
	if !sameModule {
		if hasSegment(importPath, "service") || hasSegment(importPath, "adapter") || hasSegment(importPath, "usecase") {
			return true
		}
		if hasSegment(importPath, "port/in") || hasSegment(importPath, "dto") {
			return false
		}
	}

	switch layer {
	case "adapter/in":
		return !hasSegment(importPath, "port/in") && !hasSegment(importPath, "dto")
	case "usecase":
		return hasSegment(importPath, "adapter")
	case "service":
		return hasSegment(importPath, "adapter") || hasSegment(importPath, "usecase")
	case "domain", "dto", "port/in", "port/out":
		return hasSegment(importPath, "adapter") || hasSegment(importPath, "usecase") || hasSegment(importPath, "service")
	default:
		return false
	}
}

func TestLayerRuleExamples(t *testing.T) {
	t.Parallel()
	cases := []struct {
		module, layer, importPath string
		want                      bool
	}{
		{"sync", "service", modulesImport + "localstore/port/in", false},
		{"sync", "service", modulesImport + "localstore/service", true},
		{"sync", "adapter/in", modulesImport + "sync/domain", true},
		{"sync", "adapter/in", modulesImport + "sync/port/in", false},
		{"session", "usecase", modulesImport + "session/adapter/out", true},
		{"remote", "domain", modulesImport + "remote/service", true},
		{"planner", "adapter/out", modulesImport + "localstore/dto", false},
	}
	for _, tc := range cases {
		if got := violatesLayerRule(tc.module, tc.layer, tc.importPath); got != tc.want {
			t.Errorf("%s/%s importing %s: got %v, want %v", tc.module, tc.layer, tc.importPath, got, tc.want)
		}
	}
}
