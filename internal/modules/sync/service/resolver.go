package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	hclog "github.com/hashicorp/go-hclog"

	activitydto "tether/internal/modules/activity/dto"
	storedto "tether/internal/modules/localstore/dto"
	storein "tether/internal/modules/localstore/port/in"
	"tether/internal/modules/sync/domain"
	syncout "tether/internal/modules/sync/port/out"
	"tether/internal/platform/clock"
	apperrors "tether/internal/platform/errors"
	"tether/internal/platform/logging"
)

// Resolver holds the open conflicts in memory and applies the user's
// whole-document choices. Records left in conflict status across a restart
// are registered again by the next sync pass, with the local side only when
// the remote cannot be read.
type Resolver struct {
	clock    clock.Clock
	store    storein.Store
	remote   syncout.RemoteStore
	queue    *Queue
	activity syncout.ActivityRecorder
	metrics  *Metrics
	logger   hclog.Logger

	// pass is held by ResolveAll and by every engine pass, so a pass never
	// sees a resolution half applied. mu guards conflicts.
	pass      sync.Mutex
	mu        sync.Mutex
	conflicts map[string]domain.Conflict
}

func NewResolver(clk clock.Clock, store storein.Store, remote syncout.RemoteStore, queue *Queue, activity syncout.ActivityRecorder, metrics *Metrics, logger hclog.Logger) *Resolver {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Resolver{
		clock:     clk,
		store:     store,
		remote:    remote,
		queue:     queue,
		activity:  activity,
		metrics:   metrics,
		logger:    logging.OrNull(logger).Named("resolver"),
		conflicts: map[string]domain.Conflict{},
	}
}

// Register adds a conflict, or refreshes both versions of an already open
// one. It reports whether the conflict is new.
func (r *Resolver) Register(conflict domain.Conflict) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.conflicts[conflict.ID]
	if ok {
		conflict.DetectedAt = existing.DetectedAt
	}
	r.conflicts[conflict.ID] = conflict
	return !ok
}

// RefreshRemote replaces the remote side of an open conflict with a newer
// pulled version.
func (r *Resolver) RefreshRemote(conflictID string, remote domain.Version) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	conflict, ok := r.conflicts[conflictID]
	if !ok {
		return false
	}
	if !conflict.RemoteKnown || remote.LastModified.After(conflict.Remote.LastModified) {
		conflict.Remote = remote
		conflict.RemoteKnown = true
		r.conflicts[conflictID] = conflict
	}
	return true
}

// Registered reports whether the conflict is open and whether its remote
// version has been fetched.
func (r *Resolver) Registered(conflictID string) (open, remoteKnown bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conflict, ok := r.conflicts[conflictID]
	return ok, conflict.RemoteKnown
}

// List returns the owner's open conflicts, oldest first.
func (r *Resolver) List(ownerID string) []domain.Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Conflict, 0)
	for _, conflict := range r.conflicts {
		if conflict.OwnerID == ownerID {
			out = append(out, conflict)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.Before(out[j].DetectedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Resolve applies a single choice. It is accepted only when the conflict is
// the owner's last open one.
func (r *Resolver) Resolve(ctx context.Context, conflictID string, choice domain.Choice) error {
	r.mu.Lock()
	conflict, ok := r.conflicts[conflictID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", conflictID, domain.ErrConflictNotFound)
	}
	return r.ResolveAll(ctx, conflict.OwnerID, []domain.Resolution{{ConflictID: conflictID, Choice: choice}})
}

// ResolveAll applies one choice per open conflict of the owner. The set
// must match the open conflicts exactly. Resolutions apply in order; when
// one fails, the ones before it stay applied and the rest stay open.
func (r *Resolver) ResolveAll(ctx context.Context, ownerID string, resolutions []domain.Resolution) error {
	r.pass.Lock()
	defer r.pass.Unlock()

	for _, resolution := range resolutions {
		if !resolution.Choice.Valid() {
			return fmt.Errorf("%s: %q: %w", resolution.ConflictID, resolution.Choice, domain.ErrInvalidChoice)
		}
	}
	open := r.List(ownerID)
	if len(open) == 0 && len(resolutions) == 0 {
		return nil
	}
	byID := make(map[string]domain.Conflict, len(open))
	for _, conflict := range open {
		byID[conflict.ID] = conflict
	}
	seen := map[string]bool{}
	for _, resolution := range resolutions {
		if _, ok := byID[resolution.ConflictID]; !ok || seen[resolution.ConflictID] {
			return fmt.Errorf("%s: %w", resolution.ConflictID, domain.ErrIncompleteResolution)
		}
		seen[resolution.ConflictID] = true
	}
	if len(seen) != len(open) {
		return fmt.Errorf("%d of %d conflicts chosen: %w", len(seen), len(open), domain.ErrIncompleteResolution)
	}
	for _, conflict := range open {
		if !conflict.RemoteKnown {
			return fmt.Errorf("%s: %w", conflict.ID, domain.ErrRemoteUnknown)
		}
	}

	for _, resolution := range resolutions {
		conflict := byID[resolution.ConflictID]
		if err := r.apply(ctx, conflict, resolution.Choice); err != nil {
			return fmt.Errorf("resolve %s: %w", conflict.ID, err)
		}
		r.mu.Lock()
		delete(r.conflicts, conflict.ID)
		r.mu.Unlock()
		r.metrics.Resolved.WithLabelValues(string(resolution.Choice)).Inc()
		r.record(ctx, conflict, resolution.Choice)
	}
	return nil
}

func (r *Resolver) apply(ctx context.Context, conflict domain.Conflict, choice domain.Choice) error {
	key := storedto.Key{OwnerID: conflict.OwnerID, Collection: conflict.Collection, ID: conflict.DocumentID}
	if choice == domain.ChoiceRemote {
		_, err := r.store.PutSynced(ctx, storedto.PutSyncedInput{
			Key:                key,
			Data:               conflict.Remote.Data,
			RemoteLastModified: conflict.Remote.LastModified,
		})
		return err
	}

	current, err := r.store.Get(ctx, key)
	if apperrors.CodeOf(err) == storedto.CodeRecordNotFound {
		// Deleted locally since detection; the queued delete wins.
		return nil
	}
	if err != nil {
		return err
	}
	// Rebasing first leaves a pending record on top of the remote version,
	// so a failed push below is retried as an ordinary push.
	rebased, err := r.store.Rebase(ctx, storedto.PutSyncedInput{
		Key:                key,
		Data:               current.Data,
		RemoteLastModified: conflict.Remote.LastModified,
	})
	if err != nil {
		return err
	}
	remoteLM, err := r.remote.Put(ctx, domain.Document{
		OwnerID:    conflict.OwnerID,
		Collection: conflict.Collection,
		ID:         conflict.DocumentID,
		Data:       rebased.Data,
	}, syncout.PutOptions{Force: true})
	if errors.Is(err, domain.ErrRemoteUnavailable) {
		r.logger.Info("remote unreachable, local choice queued", "conflict", conflict.ID)
		return r.queue.EnqueuePush(ctx, conflict.OwnerID, conflict.Collection, conflict.DocumentID)
	}
	if err != nil {
		return err
	}
	_, err = r.store.MarkPushed(ctx, storedto.MarkPushedInput{
		Key:                key,
		PushedLastModified: rebased.LastModified,
		RemoteLastModified: remoteLM,
	})
	return err
}

func (r *Resolver) record(ctx context.Context, conflict domain.Conflict, choice domain.Choice) {
	r.logger.Info("conflict resolved", "conflict", conflict.ID, "choice", string(choice))
	if r.activity == nil {
		return
	}
	err := r.activity.Record(ctx, activitydto.RecordInput{
		OwnerID: conflict.OwnerID,
		Type:    activitydto.TypeConflictResolved,
		Message: "sync conflict resolved",
		Fields: map[string]string{
			"conflict":   conflict.ID,
			"collection": conflict.Collection,
			"document":   conflict.DocumentID,
			"choice":     string(choice),
		},
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("record activity", "type", activitydto.TypeConflictResolved, "error", err)
	}
}
