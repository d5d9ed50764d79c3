package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	activitydto "tether/internal/modules/activity/dto"
	connectivityin "tether/internal/modules/connectivity/port/in"
	storedto "tether/internal/modules/localstore/dto"
	storein "tether/internal/modules/localstore/port/in"
	"tether/internal/modules/sync/domain"
	syncout "tether/internal/modules/sync/port/out"
	"tether/internal/platform/clock"
	apperrors "tether/internal/platform/errors"
	"tether/internal/platform/logging"
)

type EngineOptions struct {
	// Interval between passes while online.
	Interval time.Duration
}

// Engine reconciles the local store with the remote document store.
type Engine struct {
	clock       clock.Clock
	store       storein.Store
	remote      syncout.RemoteStore
	checkpoints syncout.CheckpointStore
	queue       *Queue
	resolver    *Resolver
	monitor     connectivityin.Monitor
	activity    syncout.ActivityRecorder
	metrics     *Metrics
	opts        EngineOptions
	logger      hclog.Logger

	mu   sync.Mutex
	last map[string]domain.Report
}

func NewEngine(
	clk clock.Clock,
	store storein.Store,
	remote syncout.RemoteStore,
	checkpoints syncout.CheckpointStore,
	queue *Queue,
	resolver *Resolver,
	monitor connectivityin.Monitor,
	activity syncout.ActivityRecorder,
	metrics *Metrics,
	opts EngineOptions,
	logger hclog.Logger,
) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Engine{
		clock:       clk,
		store:       store,
		remote:      remote,
		checkpoints: checkpoints,
		queue:       queue,
		resolver:    resolver,
		monitor:     monitor,
		activity:    activity,
		metrics:     metrics,
		opts:        opts,
		logger:      logging.OrNull(logger).Named("sync"),
		last:        map[string]domain.Report{},
	}
}

// SyncOwner runs one pass for the owner: drain the queue, push pending
// records, re-register conflicts lost across restarts, then pull. Passes
// and conflict resolutions never overlap.
func (e *Engine) SyncOwner(ctx context.Context, ownerID string) (domain.Report, error) {
	if ownerID == "" {
		return domain.Report{}, apperrors.Invalid("owner id is required")
	}
	e.resolver.pass.Lock()
	defer e.resolver.pass.Unlock()

	started := time.Now()
	report := domain.Report{OwnerID: ownerID, StartedAt: e.clock.Now()}
	err := e.syncOwner(ctx, &report)
	report.FinishedAt = e.clock.Now()
	e.metrics.PassDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	}
	e.mu.Lock()
	e.last[ownerID] = report
	e.mu.Unlock()
	e.logger.Debug("sync pass finished", "owner", ownerID, "pushed", report.Pushed, "pulled", report.Pulled,
		"conflicts", report.Conflicts, "drained", report.Drained, "dropped", report.Dropped)
	return report, err
}

func (e *Engine) syncOwner(ctx context.Context, report *domain.Report) error {
	drained, err := e.queue.Drain(ctx, report.OwnerID, e.execute)
	report.Drained = drained.Succeeded
	report.Dropped = drained.Dropped
	if err != nil {
		return fmt.Errorf("drain queue: %w", err)
	}
	if err := e.pushPending(ctx, report); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if err := e.redetect(ctx, report); err != nil {
		return fmt.Errorf("redetect conflicts: %w", err)
	}
	if err := e.pull(ctx, report); err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	return nil
}

// execute delivers one queued operation.
func (e *Engine) execute(ctx context.Context, op domain.PendingOperation) error {
	switch op.Kind {
	case domain.OperationDelete:
		err := e.remote.Delete(ctx, op.OwnerID, op.Collection, op.DocumentID)
		if errors.Is(err, domain.ErrRemoteNotFound) {
			return nil
		}
		return err
	case domain.OperationPush:
		record, err := e.store.Get(ctx, storedto.Key{OwnerID: op.OwnerID, Collection: op.Collection, ID: op.DocumentID})
		if apperrors.CodeOf(err) == storedto.CodeRecordNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if record.SyncStatus != storedto.StatusPending {
			return nil
		}
		_, err = e.push(ctx, record)
		return err
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

type pushOutcome int

const (
	pushed pushOutcome = iota
	pushSkipped
	pushConflict
)

func (e *Engine) pushPending(ctx context.Context, report *domain.Report) error {
	snapshot, err := e.store.Query(ctx, storedto.QueryInput{OwnerID: report.OwnerID, Statuses: []string{storedto.StatusPending}})
	if err != nil {
		return err
	}
	held, err := e.heldRecords(ctx, report.OwnerID)
	if err != nil {
		return err
	}
	for _, snap := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if held[domain.ConflictID(snap.OwnerID, snap.Collection, snap.ID)] {
			report.Deferred++
			continue
		}
		current, err := e.store.Get(ctx, snap.Key)
		if apperrors.CodeOf(err) == storedto.CodeRecordNotFound {
			continue
		}
		if err != nil {
			return err
		}
		if !current.LastModified.Equal(snap.LastModified) || current.SyncStatus != storedto.StatusPending {
			report.Skipped++
			continue
		}
		outcome, err := e.push(ctx, current)
		if err != nil {
			if apperrors.KindOf(err) != apperrors.KindTransient {
				report.Errors = append(report.Errors, fmt.Sprintf("%s/%s: %v", current.Collection, current.ID, err))
			}
			if qerr := e.queue.EnqueuePush(ctx, current.OwnerID, current.Collection, current.ID); qerr != nil {
				return qerr
			}
			report.Deferred++
			continue
		}
		switch outcome {
		case pushed:
			report.Pushed++
		case pushConflict:
			report.Conflicts++
		default:
			report.Skipped++
		}
	}
	return nil
}

// heldRecords are records the push phase leaves alone: those with a queued
// operation, which keeps per-record order, and those whose push was dropped
// and not yet acknowledged.
func (e *Engine) heldRecords(ctx context.Context, ownerID string) (map[string]bool, error) {
	ops, err := e.queue.Pending(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	failures, err := e.queue.Failures(ctx, ownerID, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ops)+len(failures))
	for _, op := range ops {
		out[op.RecordKey()] = true
	}
	for _, failure := range failures {
		if failure.Kind == domain.OperationPush {
			out[domain.ConflictID(failure.OwnerID, failure.Collection, failure.DocumentID)] = true
		}
	}
	return out, nil
}

// push writes one pending record. The remote write carries the version the
// record was last synced against, so a concurrent remote change surfaces
// as a conflict instead of being overwritten.
func (e *Engine) push(ctx context.Context, record storedto.Record) (pushOutcome, error) {
	remote, err := e.remote.Get(ctx, record.OwnerID, record.Collection, record.ID)
	var base time.Time
	switch {
	case errors.Is(err, domain.ErrRemoteNotFound):
		// first push, or deleted remotely: create it
	case err != nil:
		return pushSkipped, err
	case !remote.LastModified.After(record.RemoteLastModified):
		base = remote.LastModified
	case domain.SameDocument(remote.Data, record.Data):
		return e.markPushed(ctx, record, remote.LastModified)
	default:
		return pushConflict, e.raiseConflict(ctx, record, remote)
	}

	remoteLM, err := e.remote.Put(ctx, domain.Document{
		OwnerID:    record.OwnerID,
		Collection: record.Collection,
		ID:         record.ID,
		Data:       record.Data,
	}, syncout.PutOptions{BaseLastModified: base})
	if errors.Is(err, domain.ErrStale) {
		latest, getErr := e.remote.Get(ctx, record.OwnerID, record.Collection, record.ID)
		if getErr != nil {
			return pushSkipped, getErr
		}
		return pushConflict, e.raiseConflict(ctx, record, latest)
	}
	if err != nil {
		return pushSkipped, err
	}
	return e.markPushed(ctx, record, remoteLM)
}

func (e *Engine) markPushed(ctx context.Context, record storedto.Record, remoteLM time.Time) (pushOutcome, error) {
	flipped, err := e.store.MarkPushed(ctx, storedto.MarkPushedInput{
		Key:                record.Key,
		PushedLastModified: record.LastModified,
		RemoteLastModified: remoteLM,
	})
	if err != nil {
		return pushSkipped, err
	}
	e.metrics.Pushed.Inc()
	if !flipped {
		e.logger.Debug("record changed during push, left pending", "collection", record.Collection, "id", record.ID)
	}
	return pushed, nil
}

// raiseConflict marks the record as conflicting with remote. A record that
// changed or was resolved since it was read is left alone; the next pass
// looks at it again.
func (e *Engine) raiseConflict(ctx context.Context, record storedto.Record, remote domain.Document) error {
	current, err := e.store.Get(ctx, record.Key)
	if apperrors.CodeOf(err) == storedto.CodeRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if current.SyncStatus == storedto.StatusSynced || !current.LastModified.Equal(record.LastModified) {
		e.logger.Debug("record changed before conflict was raised", "collection", record.Collection, "id", record.ID, "status", current.SyncStatus)
		return nil
	}
	if err := e.store.MarkConflict(ctx, record.Key); err != nil {
		return err
	}
	conflict := domain.Conflict{
		ID:          domain.ConflictID(record.OwnerID, record.Collection, record.ID),
		OwnerID:     record.OwnerID,
		Collection:  record.Collection,
		DocumentID:  record.ID,
		Local:       domain.Version{Data: current.Data, LastModified: current.LastModified},
		Remote:      domain.Version{Data: remote.Data, LastModified: remote.LastModified},
		RemoteKnown: true,
		DetectedAt:  e.clock.Now(),
	}
	if !e.resolver.Register(conflict) {
		return nil
	}
	e.metrics.Conflicts.Inc()
	e.logger.Info("conflict detected", "conflict", conflict.ID)
	e.record(ctx, record.OwnerID, activitydto.TypeConflictDetected, "sync conflict detected", map[string]string{
		"conflict":   conflict.ID,
		"collection": conflict.Collection,
		"document":   conflict.DocumentID,
	})
	return nil
}

// redetect registers records left in conflict status by an earlier process.
// When the remote cannot be read they are listed with the local side only
// and a later pass fetches the remote version.
func (e *Engine) redetect(ctx context.Context, report *domain.Report) error {
	records, err := e.store.Query(ctx, storedto.QueryInput{OwnerID: report.OwnerID, Statuses: []string{storedto.StatusConflict}})
	if err != nil {
		return err
	}
	var unreachable error
	for _, record := range records {
		id := domain.ConflictID(record.OwnerID, record.Collection, record.ID)
		open, remoteKnown := e.resolver.Registered(id)
		if remoteKnown {
			continue
		}
		if unreachable == nil {
			remote, err := e.remote.Get(ctx, record.OwnerID, record.Collection, record.ID)
			switch {
			case err == nil:
				if err := e.raiseConflict(ctx, record, remote); err != nil {
					return err
				}
				if !open {
					report.Conflicts++
				}
				continue
			case errors.Is(err, domain.ErrRemoteNotFound):
				// Nothing to adjudicate against; push it again as a creation.
				if _, err := e.store.Rebase(ctx, storedto.PutSyncedInput{Key: record.Key, Data: record.Data}); err != nil {
					return err
				}
				continue
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				unreachable = err
				e.logger.Warn("remote unreachable, listing conflicts with the local version only", "owner", report.OwnerID, "error", err)
				report.Errors = append(report.Errors, fmt.Sprintf("redetect conflicts: %v", err))
			}
		}
		if open {
			continue
		}
		e.resolver.Register(domain.Conflict{
			ID:         id,
			OwnerID:    record.OwnerID,
			Collection: record.Collection,
			DocumentID: record.ID,
			Local:      domain.Version{Data: record.Data, LastModified: record.LastModified},
			DetectedAt: e.clock.Now(),
		})
	}
	return nil
}

func (e *Engine) pull(ctx context.Context, report *domain.Report) error {
	for _, collection := range storedto.SyncableCollections {
		since, err := e.checkpoints.Get(ctx, report.OwnerID, collection)
		if err != nil {
			return err
		}
		docs, err := e.remote.ChangedSince(ctx, report.OwnerID, collection, since)
		if err != nil {
			return err
		}
		newest := since
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return err
			}
			applied, err := e.applyPulled(ctx, report, doc)
			if err != nil {
				return err
			}
			if applied {
				report.Pulled++
				e.metrics.Pulled.Inc()
			}
			if doc.LastModified.After(newest) {
				newest = doc.LastModified
			}
		}
		if newest.After(since) {
			if err := e.checkpoints.Set(ctx, report.OwnerID, collection, newest); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) applyPulled(ctx context.Context, report *domain.Report, doc domain.Document) (bool, error) {
	key := storedto.Key{OwnerID: doc.OwnerID, Collection: doc.Collection, ID: doc.ID}
	local, err := e.store.Get(ctx, key)
	if apperrors.CodeOf(err) == storedto.CodeRecordNotFound {
		deleting, err := e.queue.Has(ctx, domain.OperationDelete, doc.OwnerID, doc.Collection, doc.ID)
		if err != nil || deleting {
			return false, err
		}
		return e.store.ApplyRemote(ctx, storedto.ApplyRemoteInput{
			Key:                key,
			Data:               doc.Data,
			RemoteLastModified: doc.LastModified,
			ExpectAbsent:       true,
		})
	}
	if err != nil {
		return false, err
	}
	if !doc.LastModified.After(local.RemoteLastModified) {
		return false, nil
	}

	switch local.SyncStatus {
	case storedto.StatusSynced:
		return e.store.ApplyRemote(ctx, storedto.ApplyRemoteInput{
			Key:                  key,
			Data:                 doc.Data,
			RemoteLastModified:   doc.LastModified,
			ExpectedLastModified: local.LastModified,
		})
	case storedto.StatusPending:
		if domain.SameDocument(doc.Data, local.Data) {
			_, err := e.markPushed(ctx, local, doc.LastModified)
			return false, err
		}
		if err := e.raiseConflict(ctx, local, doc); err != nil {
			return false, err
		}
		report.Conflicts++
		return false, nil
	case storedto.StatusConflict:
		id := domain.ConflictID(doc.OwnerID, doc.Collection, doc.ID)
		if !e.resolver.RefreshRemote(id, domain.Version{Data: doc.Data, LastModified: doc.LastModified}) {
			return false, e.raiseConflict(ctx, local, doc)
		}
		return false, nil
	default:
		return false, nil
	}
}

// Run syncs every owner when the connection comes back and then on each
// interval while online. It returns when ctx is done.
func (e *Engine) Run(ctx context.Context, owners []string) error {
	transitions, cancel := e.monitor.Subscribe()
	defer cancel()
	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	if e.monitor.Current().Online {
		e.syncAll(ctx, owners)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case transition, ok := <-transitions:
			if !ok {
				return nil
			}
			if transition.To.Online && !transition.From.Online {
				e.logger.Info("connection restored, syncing", "quality", transition.To.Quality)
				e.syncAll(ctx, owners)
			}
		case <-ticker.C:
			if e.monitor.Current().Online {
				e.syncAll(ctx, owners)
			}
		}
	}
}

func (e *Engine) syncAll(ctx context.Context, owners []string) {
	for _, owner := range owners {
		if _, err := e.SyncOwner(ctx, owner); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("sync pass failed", "owner", owner, "error", err)
		}
	}
}

// Health summarizes the owner's local sync state.
func (e *Engine) Health(ctx context.Context, ownerID string) (domain.Health, error) {
	counts, err := e.store.Counts(ctx, ownerID)
	if err != nil {
		return domain.Health{}, err
	}
	queued, err := e.queue.Count(ctx, ownerID)
	if err != nil {
		return domain.Health{}, err
	}
	failures, err := e.queue.Failures(ctx, ownerID, false)
	if err != nil {
		return domain.Health{}, err
	}
	health := domain.Health{
		OwnerID:   ownerID,
		Pending:   counts.Pending,
		Synced:    counts.Synced,
		Conflict:  counts.Conflict,
		Queued:    queued,
		Failures:  len(failures),
		Conflicts: len(e.resolver.List(ownerID)),
	}
	e.mu.Lock()
	if last, ok := e.last[ownerID]; ok {
		health.LastSync = last.FinishedAt
		if len(last.Errors) > 0 {
			health.LastError = last.Errors[len(last.Errors)-1]
		}
	}
	e.mu.Unlock()
	if e.monitor != nil {
		status := e.monitor.Current()
		health.Online = status.Online
		health.Quality = status.Quality
	}
	return health, nil
}

func (e *Engine) record(ctx context.Context, ownerID, eventType, message string, fields map[string]string) {
	if e.activity == nil {
		return
	}
	err := e.activity.Record(ctx, activitydto.RecordInput{OwnerID: ownerID, Type: eventType, Message: message, Fields: fields})
	if err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("record activity", "type", eventType, "error", err)
	}
}
