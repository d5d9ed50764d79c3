package out

import (
	"context"

	"tether/internal/modules/activity/domain"
)

type Store interface {
	Append(ctx context.Context, event domain.Event) error
	Tail(ctx context.Context, query domain.Query) ([]domain.Event, error)
}
