package in

import (
	"context"

	"tether/internal/modules/sync/dto"
)

type Usecase interface {
	SyncNow(ctx context.Context, ownerID string) (dto.ReportOutput, error)
	Run(ctx context.Context, owners []string) error
	Health(ctx context.Context, ownerID string) (dto.HealthOutput, error)
	Queue(ctx context.Context, ownerID string) ([]dto.OperationOutput, error)
	Failures(ctx context.Context, ownerID string, includeAcknowledged bool) ([]dto.FailureOutput, error)
	Acknowledge(ctx context.Context, failureID string) (dto.FailureOutput, error)
}

type ConflictUsecase interface {
	List(ctx context.Context, ownerID string) ([]dto.ConflictOutput, error)
	Resolve(ctx context.Context, conflictID, choice string) error
	ResolveAll(ctx context.Context, input dto.ResolveAllInput) error
}
