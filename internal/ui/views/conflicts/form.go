package conflicts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/huh"

	syncdto "tether/internal/modules/sync/dto"
)

// Port is the slice of the sync handler the resolution form needs.
type Port interface {
	Conflicts(ctx context.Context, ownerID string) ([]syncdto.ConflictOutput, error)
	ResolveAll(ctx context.Context, ownerID string, choices map[string]string) error
}

const previewLimit = 72

// Form collects one local/remote choice per conflict. Every conflict starts
// on the local version.
type Form struct {
	form    *huh.Form
	choices map[string]*string
}

func NewForm(conflicts []syncdto.ConflictOutput) *Form {
	choices := make(map[string]*string, len(conflicts))
	groups := make([]*huh.Group, 0, len(conflicts))
	for _, conflict := range conflicts {
		choice := syncdto.ChoiceLocal
		choices[conflict.ID] = &choice
		groups = append(groups, huh.NewGroup(
			huh.NewNote().
				Title(conflict.Collection+"/"+conflict.DocumentID).
				Description(Describe(conflict)),
			huh.NewSelect[string]().
				Title("Keep").
				Options(
					huh.NewOption("Local version", syncdto.ChoiceLocal),
					huh.NewOption("Remote version", syncdto.ChoiceRemote),
				).
				Value(&choice),
		))
	}
	return &Form{
		form:    huh.NewForm(groups...).WithShowHelp(true),
		choices: choices,
	}
}

func (f *Form) Run(ctx context.Context) error {
	return f.form.RunWithContext(ctx)
}

// Choices returns the current selection keyed by conflict id.
func (f *Form) Choices() map[string]string {
	out := make(map[string]string, len(f.choices))
	for id, choice := range f.choices {
		out[id] = *choice
	}
	return out
}

// Resolve lists the owner's conflicts, asks for a choice on each and applies
// them as one set. It returns how many conflicts were resolved.
func Resolve(ctx context.Context, port Port, ownerID string, accessible bool) (int, error) {
	conflicts, err := port.Conflicts(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if len(conflicts) == 0 {
		return 0, nil
	}
	form := NewForm(conflicts)
	form.form = form.form.WithAccessible(accessible)
	if err := form.Run(ctx); err != nil {
		return 0, fmt.Errorf("conflict form: %w", err)
	}
	if err := port.ResolveAll(ctx, ownerID, form.Choices()); err != nil {
		return 0, err
	}
	return len(conflicts), nil
}

// Describe renders both versions of a conflict as short previews.
func Describe(conflict syncdto.ConflictOutput) string {
	local := fmt.Sprintf("local  %s  %s", conflict.Local.LastModified.Local().Format("Jan 02 15:04:05"), preview(conflict.Local.Data))
	if !conflict.RemoteKnown {
		return local + "\nremote unknown (not fetched while offline)"
	}
	return fmt.Sprintf("%s\nremote %s  %s", local,
		conflict.Remote.LastModified.Local().Format("Jan 02 15:04:05"), preview(conflict.Remote.Data),
	)
}

func preview(data json.RawMessage) string {
	compact := bytes.Buffer{}
	if err := json.Compact(&compact, data); err != nil {
		compact.Reset()
		compact.Write(data)
	}
	text := compact.String()
	if len(text) > previewLimit {
		return text[:previewLimit-3] + "..."
	}
	return text
}
