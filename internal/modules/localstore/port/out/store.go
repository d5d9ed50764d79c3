package out

import (
	"context"
	"time"

	"tether/internal/modules/localstore/domain"
)

type RecordRepository interface {
	Get(ctx context.Context, key domain.Key) (domain.Record, error)
	Query(ctx context.Context, filter domain.Filter) ([]domain.Record, error)
	Upsert(ctx context.Context, record domain.Record) error
	// InsertIfAbsent and ReplaceIfUnchanged report whether the write happened.
	InsertIfAbsent(ctx context.Context, record domain.Record) (bool, error)
	ReplaceIfUnchanged(ctx context.Context, record domain.Record, expectedLastModified time.Time) (bool, error)
	// MarkPushed always records remoteLastModified, and flips a pending record
	// to synced only while its last_modified still equals pushedLastModified.
	MarkPushed(ctx context.Context, key domain.Key, pushedLastModified, remoteLastModified time.Time) (bool, error)
	SetStatus(ctx context.Context, key domain.Key, status domain.SyncStatus) error
	Delete(ctx context.Context, key domain.Key) error
	Counts(ctx context.Context, ownerID string) (domain.Counts, error)
}

// DeleteQueue receives the remote delete that follows a local delete. It runs
// inside the same transaction as the local removal.
type DeleteQueue interface {
	EnqueueDelete(ctx context.Context, ownerID, collection, id string) error
}
