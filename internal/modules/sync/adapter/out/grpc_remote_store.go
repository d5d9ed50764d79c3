package out

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tether/internal/modules/sync/domain"
	syncout "tether/internal/modules/sync/port/out"
	"tether/internal/platform/docrpc"
)

// GRPCRemoteStore talks to the remote document service.
type GRPCRemoteStore struct {
	client  docrpc.DocumentClient
	timeout time.Duration
}

func NewGRPCRemoteStore(conn grpc.ClientConnInterface, timeout time.Duration) *GRPCRemoteStore {
	return &GRPCRemoteStore{client: docrpc.NewDocumentClient(conn), timeout: timeout}
}

var _ syncout.RemoteStore = (*GRPCRemoteStore)(nil)

func (s *GRPCRemoteStore) Get(ctx context.Context, ownerID, collection, id string) (domain.Document, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	resp, err := s.client.Get(ctx, &docrpc.DocumentKey{OwnerID: ownerID, Collection: collection, ID: id})
	if err != nil {
		return domain.Document{}, translate(err, "get "+collection+"/"+id)
	}
	return fromWire(resp.Document), nil
}

func (s *GRPCRemoteStore) Put(ctx context.Context, doc domain.Document, opts syncout.PutOptions) (time.Time, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	resp, err := s.client.Put(ctx, &docrpc.PutRequest{
		Document:         toWire(doc),
		BaseLastModified: nanos(opts.BaseLastModified),
		Force:            opts.Force,
	})
	if err != nil {
		return time.Time{}, translate(err, "put "+doc.Collection+"/"+doc.ID)
	}
	return fromNanos(resp.LastModified), nil
}

func (s *GRPCRemoteStore) Delete(ctx context.Context, ownerID, collection, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.Delete(ctx, &docrpc.DocumentKey{OwnerID: ownerID, Collection: collection, ID: id}); err != nil {
		return translate(err, "delete "+collection+"/"+id)
	}
	return nil
}

func (s *GRPCRemoteStore) ChangedSince(ctx context.Context, ownerID, collection string, since time.Time) ([]domain.Document, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	resp, err := s.client.ChangedSince(ctx, &docrpc.ChangedSinceRequest{OwnerID: ownerID, Collection: collection, Since: nanos(since)})
	if err != nil {
		return nil, translate(err, "changed since "+collection)
	}
	out := make([]domain.Document, 0, len(resp.Documents))
	for _, doc := range resp.Documents {
		out = append(out, fromWire(doc))
	}
	return out, nil
}

func (s *GRPCRemoteStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func translate(err error, op string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", op, domain.ErrRemoteNotFound)
	case codes.FailedPrecondition, codes.Aborted:
		return fmt.Errorf("%s: %w", op, domain.ErrStale)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return fmt.Errorf("%s: %w: %s", op, domain.ErrRemoteUnavailable, status.Convert(err).Message())
	case codes.Canceled:
		return fmt.Errorf("%s: %w", op, context.Canceled)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func toWire(doc domain.Document) docrpc.Document {
	return docrpc.Document{
		OwnerID:      doc.OwnerID,
		Collection:   doc.Collection,
		ID:           doc.ID,
		Data:         doc.Data,
		LastModified: nanos(doc.LastModified),
	}
}

func fromWire(doc docrpc.Document) domain.Document {
	return domain.Document{
		OwnerID:      doc.OwnerID,
		Collection:   doc.Collection,
		ID:           doc.ID,
		Data:         doc.Data,
		LastModified: fromNanos(doc.LastModified),
	}
}

func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
