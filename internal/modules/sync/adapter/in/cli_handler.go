package in

import (
	"context"
	"sort"

	syncdto "tether/internal/modules/sync/dto"
	syncin "tether/internal/modules/sync/port/in"
)

type CLIHandler struct {
	usecase   syncin.Usecase
	conflicts syncin.ConflictUsecase
}

func NewCLIHandler(usecase syncin.Usecase, conflicts syncin.ConflictUsecase) CLIHandler {
	return CLIHandler{usecase: usecase, conflicts: conflicts}
}

func (h CLIHandler) Now(ctx context.Context, ownerID string) (syncdto.ReportOutput, error) {
	return h.usecase.SyncNow(ctx, ownerID)
}

func (h CLIHandler) Run(ctx context.Context, owners []string) error {
	return h.usecase.Run(ctx, owners)
}

func (h CLIHandler) Status(ctx context.Context, ownerID string) (syncdto.HealthOutput, error) {
	return h.usecase.Health(ctx, ownerID)
}

func (h CLIHandler) Queue(ctx context.Context, ownerID string) ([]syncdto.OperationOutput, error) {
	return h.usecase.Queue(ctx, ownerID)
}

func (h CLIHandler) Failures(ctx context.Context, ownerID string, all bool) ([]syncdto.FailureOutput, error) {
	return h.usecase.Failures(ctx, ownerID, all)
}

func (h CLIHandler) Ack(ctx context.Context, failureID string) (syncdto.FailureOutput, error) {
	return h.usecase.Acknowledge(ctx, failureID)
}

func (h CLIHandler) Conflicts(ctx context.Context, ownerID string) ([]syncdto.ConflictOutput, error) {
	return h.conflicts.List(ctx, ownerID)
}

func (h CLIHandler) Resolve(ctx context.Context, conflictID, choice string) error {
	return h.conflicts.Resolve(ctx, conflictID, choice)
}

// ResolveAll takes choices keyed by conflict id.
func (h CLIHandler) ResolveAll(ctx context.Context, ownerID string, choices map[string]string) error {
	ids := make([]string, 0, len(choices))
	for conflictID := range choices {
		ids = append(ids, conflictID)
	}
	sort.Strings(ids)
	resolutions := make([]syncdto.Resolution, 0, len(ids))
	for _, conflictID := range ids {
		resolutions = append(resolutions, syncdto.Resolution{ConflictID: conflictID, Choice: choices[conflictID]})
	}
	return h.conflicts.ResolveAll(ctx, syncdto.ResolveAllInput{OwnerID: ownerID, Resolutions: resolutions})
}
