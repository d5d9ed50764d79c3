package usecase

import (
	"context"

	"tether/internal/modules/sync/domain"
	syncdto "tether/internal/modules/sync/dto"
	syncin "tether/internal/modules/sync/port/in"
	"tether/internal/modules/sync/service"
)

type Interactor struct {
	engine *service.Engine
	queue  *service.Queue
}

func NewInteractor(engine *service.Engine, queue *service.Queue) syncin.Usecase {
	return &Interactor{engine: engine, queue: queue}
}

func (i *Interactor) SyncNow(ctx context.Context, ownerID string) (syncdto.ReportOutput, error) {
	report, err := i.engine.SyncOwner(ctx, ownerID)
	return toReportOutput(report), err
}

func (i *Interactor) Run(ctx context.Context, owners []string) error {
	return i.engine.Run(ctx, owners)
}

func (i *Interactor) Health(ctx context.Context, ownerID string) (syncdto.HealthOutput, error) {
	health, err := i.engine.Health(ctx, ownerID)
	if err != nil {
		return syncdto.HealthOutput{}, err
	}
	return syncdto.HealthOutput{
		OwnerID:   health.OwnerID,
		Online:    health.Online,
		Quality:   health.Quality,
		Pending:   health.Pending,
		Synced:    health.Synced,
		Conflict:  health.Conflict,
		Queued:    health.Queued,
		Failures:  health.Failures,
		Conflicts: health.Conflicts,
		LastSync:  health.LastSync,
		LastError: health.LastError,
	}, nil
}

func (i *Interactor) Queue(ctx context.Context, ownerID string) ([]syncdto.OperationOutput, error) {
	ops, err := i.queue.Pending(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]syncdto.OperationOutput, 0, len(ops))
	for _, op := range ops {
		out = append(out, syncdto.OperationOutput{
			ID:            op.ID,
			Kind:          string(op.Kind),
			Collection:    op.Collection,
			DocumentID:    op.DocumentID,
			EnqueuedAt:    op.EnqueuedAt,
			RetryCount:    op.RetryCount,
			NextAttemptAt: op.NextAttemptAt,
			LastError:     op.LastError,
		})
	}
	return out, nil
}

func (i *Interactor) Failures(ctx context.Context, ownerID string, includeAcknowledged bool) ([]syncdto.FailureOutput, error) {
	failures, err := i.queue.Failures(ctx, ownerID, includeAcknowledged)
	if err != nil {
		return nil, err
	}
	out := make([]syncdto.FailureOutput, 0, len(failures))
	for _, failure := range failures {
		out = append(out, toFailureOutput(failure))
	}
	return out, nil
}

func (i *Interactor) Acknowledge(ctx context.Context, failureID string) (syncdto.FailureOutput, error) {
	failure, err := i.queue.Acknowledge(ctx, failureID)
	if err != nil {
		return syncdto.FailureOutput{}, err
	}
	return toFailureOutput(failure), nil
}

type ConflictInteractor struct {
	resolver *service.Resolver
}

func NewConflictInteractor(resolver *service.Resolver) syncin.ConflictUsecase {
	return &ConflictInteractor{resolver: resolver}
}

func (i *ConflictInteractor) List(_ context.Context, ownerID string) ([]syncdto.ConflictOutput, error) {
	conflicts := i.resolver.List(ownerID)
	out := make([]syncdto.ConflictOutput, 0, len(conflicts))
	for _, conflict := range conflicts {
		out = append(out, syncdto.ConflictOutput{
			ID:          conflict.ID,
			OwnerID:     conflict.OwnerID,
			Collection:  conflict.Collection,
			DocumentID:  conflict.DocumentID,
			Local:       syncdto.VersionOutput{Data: conflict.Local.Data, LastModified: conflict.Local.LastModified},
			Remote:      syncdto.VersionOutput{Data: conflict.Remote.Data, LastModified: conflict.Remote.LastModified},
			RemoteKnown: conflict.RemoteKnown,
			DetectedAt:  conflict.DetectedAt,
		})
	}
	return out, nil
}

func (i *ConflictInteractor) Resolve(ctx context.Context, conflictID, choice string) error {
	return i.resolver.Resolve(ctx, conflictID, domain.Choice(choice))
}

func (i *ConflictInteractor) ResolveAll(ctx context.Context, input syncdto.ResolveAllInput) error {
	resolutions := make([]domain.Resolution, 0, len(input.Resolutions))
	for _, resolution := range input.Resolutions {
		resolutions = append(resolutions, domain.Resolution{ConflictID: resolution.ConflictID, Choice: domain.Choice(resolution.Choice)})
	}
	return i.resolver.ResolveAll(ctx, input.OwnerID, resolutions)
}

func toReportOutput(report domain.Report) syncdto.ReportOutput {
	return syncdto.ReportOutput{
		OwnerID:    report.OwnerID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Pushed:     report.Pushed,
		Pulled:     report.Pulled,
		Conflicts:  report.Conflicts,
		Skipped:    report.Skipped,
		Deferred:   report.Deferred,
		Drained:    report.Drained,
		Dropped:    report.Dropped,
		Errors:     append([]string(nil), report.Errors...),
	}
}

func toFailureOutput(failure domain.Failure) syncdto.FailureOutput {
	return syncdto.FailureOutput{
		ID:             failure.ID,
		OwnerID:        failure.OwnerID,
		Kind:           string(failure.Kind),
		Collection:     failure.Collection,
		DocumentID:     failure.DocumentID,
		Attempts:       failure.Attempts,
		LastError:      failure.LastError,
		DroppedAt:      failure.DroppedAt,
		AcknowledgedAt: failure.AcknowledgedAt,
	}
}
