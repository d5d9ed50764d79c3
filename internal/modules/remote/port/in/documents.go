package in

import (
	"context"
	"time"

	"tether/internal/modules/remote/dto"
)

type Usecase interface {
	Get(ctx context.Context, key dto.Key) (dto.Document, error)
	Put(ctx context.Context, input dto.PutInput) (time.Time, error)
	Delete(ctx context.Context, key dto.Key) error
	ChangedSince(ctx context.Context, input dto.ChangedSinceInput) ([]dto.Document, error)
	OpenSessions(ctx context.Context, ownerID string) ([]dto.PublicSession, error)
}
