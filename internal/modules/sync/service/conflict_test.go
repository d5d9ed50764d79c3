package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	storedto "tether/internal/modules/localstore/dto"
	"tether/internal/modules/sync/domain"
	"tether/internal/platform/clock"
)

func TestConflictsAreListedOfflineAfterRestart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	clk := clock.NewManual(t0)
	remote := newMemoryRemote(clk)
	b, conflictID := conflictedDevice(t, clk, remote)

	restarted := openDevice(t, clk, remote, b.dbPath)
	remote.setUnavailable(true)
	report, err := restarted.engine.SyncOwner(ctx, owner)
	if err == nil || strings.HasPrefix(err.Error(), "redetect") {
		t.Fatalf("expected only the pull to fail offline, got %v", err)
	}
	if len(report.Errors) == 0 || !strings.Contains(strings.Join(report.Errors, "\n"), "redetect conflicts") {
		t.Fatalf("redetect failure missing from report: %+v", report.Errors)
	}

	conflicts := restarted.resolver.List(owner)
	if len(conflicts) != 1 || conflicts[0].ID != conflictID {
		t.Fatalf("expected the stored conflict to be listed, got %+v", conflicts)
	}
	if conflicts[0].RemoteKnown || string(conflicts[0].Local.Data) != `{"title":"from b"}` {
		t.Fatalf("expected a local-only conflict, got %+v", conflicts[0])
	}
	if err := restarted.resolver.Resolve(ctx, conflictID, domain.ChoiceLocal); !errors.Is(err, domain.ErrRemoteUnknown) {
		t.Fatalf("expected RemoteUnknown, got %v", err)
	}
	if status := restarted.get(t, storedto.CollectionTasks, "t1").SyncStatus; status != storedto.StatusConflict {
		t.Fatalf("status = %s, want conflict", status)
	}

	remote.setUnavailable(false)
	if report := restarted.sync(t); report.Conflicts != 0 {
		t.Fatalf("filling in the remote side is not a new conflict: %+v", report)
	}
	conflicts = restarted.resolver.List(owner)
	if len(conflicts) != 1 || !conflicts[0].RemoteKnown || string(conflicts[0].Remote.Data) != `{"title":"from a"}` {
		t.Fatalf("expected the remote side to be fetched, got %+v", conflicts)
	}
	if err := restarted.resolver.Resolve(ctx, conflictID, domain.ChoiceLocal); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := remote.data(t, storedto.CollectionTasks, "t1"); got != `{"title":"from b"}` {
		t.Fatalf("remote data = %s", got)
	}
}

func TestResolutionWaitsForRunningPass(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	clk := clock.NewManual(t0)
	remote := newMemoryRemote(clk)
	b, conflictID := conflictedDevice(t, clk, remote)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	remote.setBeforePull(func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	})

	passDone := make(chan error, 1)
	go func() {
		_, err := b.engine.SyncOwner(ctx, owner)
		passDone <- err
	}()
	<-entered

	resolved := make(chan error, 1)
	go func() {
		resolved <- b.resolver.Resolve(ctx, conflictID, domain.ChoiceRemote)
	}()
	select {
	case err := <-resolved:
		t.Fatalf("resolution finished while a pass was running: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-passDone; err != nil {
		t.Fatalf("pass: %v", err)
	}
	if err := <-resolved; err != nil {
		t.Fatalf("resolve: %v", err)
	}
	record := b.get(t, storedto.CollectionTasks, "t1")
	if record.SyncStatus != storedto.StatusSynced || string(record.Data) != `{"title":"from a"}` {
		t.Fatalf("unexpected record %+v", record)
	}
	if report := b.sync(t); report.Conflicts != 0 || len(b.resolver.List(owner)) != 0 {
		t.Fatalf("resolved record raised again: %+v", report)
	}
}
