package out

import (
	"context"
	"time"

	activitydto "tether/internal/modules/activity/dto"
	"tether/internal/modules/sync/domain"
)

type PutOptions struct {
	// BaseLastModified is the remote version the write was prepared against.
	// Zero means the document must not exist yet.
	BaseLastModified time.Time
	Force            bool
}

// RemoteStore is the remote document store. Get returns domain.ErrRemoteNotFound
// for missing documents, Put returns domain.ErrStale when the base version no
// longer matches, and unreachable stores yield domain.ErrRemoteUnavailable.
type RemoteStore interface {
	Get(ctx context.Context, ownerID, collection, id string) (domain.Document, error)
	Put(ctx context.Context, doc domain.Document, opts PutOptions) (time.Time, error)
	Delete(ctx context.Context, ownerID, collection, id string) error
	// ChangedSince lists documents modified strictly after since, oldest first.
	ChangedSince(ctx context.Context, ownerID, collection string, since time.Time) ([]domain.Document, error)
}

type QueueRepository interface {
	// Enqueue reports false when an operation of the same kind for the same
	// record is already queued.
	Enqueue(ctx context.Context, op domain.PendingOperation) (bool, error)
	// List returns the owner's operations in enqueue order.
	List(ctx context.Context, ownerID string) ([]domain.PendingOperation, error)
	Has(ctx context.Context, ownerID string, kind domain.OperationKind, collection, documentID string) (bool, error)
	Update(ctx context.Context, op domain.PendingOperation) error
	Remove(ctx context.Context, id string) error
	Count(ctx context.Context, ownerID string) (int, error)

	RecordFailure(ctx context.Context, failure domain.Failure) error
	Failures(ctx context.Context, ownerID string, includeAcknowledged bool) ([]domain.Failure, error)
	Failure(ctx context.Context, id string) (domain.Failure, error)
	Acknowledge(ctx context.Context, id string, at time.Time) error
}

// CheckpointStore keeps the newest remote lastModified pulled per collection.
type CheckpointStore interface {
	Get(ctx context.Context, ownerID, collection string) (time.Time, error)
	Set(ctx context.Context, ownerID, collection string, at time.Time) error
}

type ActivityRecorder interface {
	Record(ctx context.Context, input activitydto.RecordInput) error
}
