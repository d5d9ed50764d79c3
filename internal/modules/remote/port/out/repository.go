package out

import (
	"context"
	"time"

	"tether/internal/modules/remote/domain"
)

// Repository stores documents. Get and Delete return
// domain.ErrDocumentNotFound for missing keys.
type Repository interface {
	Get(ctx context.Context, key domain.Key) (domain.Document, error)
	Put(ctx context.Context, doc domain.Document) error
	Delete(ctx context.Context, key domain.Key) error
	// List returns the collection's documents modified after since, oldest
	// first.
	List(ctx context.Context, ownerID, collection string, since time.Time) ([]domain.Document, error)
}
