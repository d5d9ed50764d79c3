package in

import (
	"context"

	"tether/internal/modules/localstore/dto"
)

type Store interface {
	Put(ctx context.Context, input dto.PutInput) (dto.Record, error)
	PutBatch(ctx context.Context, inputs []dto.PutInput) ([]dto.Record, error)
	PutSynced(ctx context.Context, input dto.PutSyncedInput) (dto.Record, error)
	Rebase(ctx context.Context, input dto.PutSyncedInput) (dto.Record, error)
	ApplyRemote(ctx context.Context, input dto.ApplyRemoteInput) (bool, error)
	MarkPushed(ctx context.Context, input dto.MarkPushedInput) (bool, error)
	MarkConflict(ctx context.Context, key dto.Key) error
	Get(ctx context.Context, key dto.Key) (dto.Record, error)
	Query(ctx context.Context, input dto.QueryInput) ([]dto.Record, error)
	Delete(ctx context.Context, key dto.Key) error
	Counts(ctx context.Context, ownerID string) (dto.CountsOutput, error)
}
