package out

import (
	"context"
	"time"
)

// Prober performs one lightweight round trip against the remote store.
type Prober interface {
	Probe(ctx context.Context) (time.Duration, error)
}
