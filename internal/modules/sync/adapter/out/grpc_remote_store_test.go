package out

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"tether/internal/modules/sync/domain"
	syncout "tether/internal/modules/sync/port/out"
	"tether/internal/platform/docrpc"
)

type scriptedServer struct {
	putErr  error
	lastPut *docrpc.PutRequest
}

func (s *scriptedServer) Get(_ context.Context, in *docrpc.DocumentKey) (*docrpc.GetResponse, error) {
	if in.ID == "missing" {
		return nil, status.Error(codes.NotFound, "no such document")
	}
	return &docrpc.GetResponse{Document: docrpc.Document{
		OwnerID: in.OwnerID, Collection: in.Collection, ID: in.ID,
		Data: json.RawMessage(`{"ok":true}`), LastModified: 1_700_000_000_000_000_000,
	}}, nil
}

func (s *scriptedServer) Put(_ context.Context, in *docrpc.PutRequest) (*docrpc.PutResponse, error) {
	s.lastPut = in
	if s.putErr != nil {
		return nil, s.putErr
	}
	return &docrpc.PutResponse{LastModified: in.BaseLastModified + 1}, nil
}

func (s *scriptedServer) Delete(context.Context, *docrpc.DocumentKey) (*docrpc.Empty, error) {
	return nil, status.Error(codes.Unavailable, "draining")
}

func (s *scriptedServer) ChangedSince(_ context.Context, in *docrpc.ChangedSinceRequest) (*docrpc.ChangedSinceResponse, error) {
	return &docrpc.ChangedSinceResponse{Documents: []docrpc.Document{
		{OwnerID: in.OwnerID, Collection: in.Collection, ID: "a", Data: json.RawMessage(`{}`), LastModified: in.Since + 5},
	}}, nil
}

func (s *scriptedServer) OpenSessions(context.Context, *docrpc.OpenSessionsRequest) (*docrpc.OpenSessionsResponse, error) {
	return &docrpc.OpenSessionsResponse{}, nil
}

func dialScripted(t *testing.T, impl *scriptedServer) *GRPCRemoteStore {
	t.Helper()
	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	docrpc.RegisterDocumentServer(server, impl)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return listener.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewGRPCRemoteStore(conn, 5*time.Second)
}

func TestGRPCRemoteStoreRoundTrip(t *testing.T) {
	t.Parallel()

	impl := &scriptedServer{}
	store := dialScripted(t, impl)
	ctx := context.Background()

	doc, err := store.Get(ctx, "o", "tasks", "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ID != "t1" || string(doc.Data) != `{"ok":true}` || doc.LastModified.UnixNano() != 1_700_000_000_000_000_000 {
		t.Fatalf("unexpected document %+v", doc)
	}

	base := time.Unix(0, 1_000).UTC()
	lm, err := store.Put(ctx, domain.Document{OwnerID: "o", Collection: "tasks", ID: "t1", Data: json.RawMessage(`{}`)}, syncout.PutOptions{BaseLastModified: base})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if lm.UnixNano() != 1_001 || impl.lastPut.BaseLastModified != 1_000 || impl.lastPut.Force {
		t.Fatalf("unexpected put exchange lm=%v req=%+v", lm, impl.lastPut)
	}

	if _, err := store.Put(ctx, domain.Document{OwnerID: "o", Collection: "tasks", ID: "t2", Data: json.RawMessage(`{}`)}, syncout.PutOptions{Force: true}); err != nil {
		t.Fatalf("forced put: %v", err)
	}
	if impl.lastPut.BaseLastModified != 0 || !impl.lastPut.Force {
		t.Fatalf("zero base must travel as 0, got %+v", impl.lastPut)
	}

	docs, err := store.ChangedSince(ctx, "o", "tasks", time.Time{})
	if err != nil || len(docs) != 1 || docs[0].LastModified.UnixNano() != 5 {
		t.Fatalf("changed since: %+v (%v)", docs, err)
	}
}

func TestGRPCRemoteStoreMapsStatusCodes(t *testing.T) {
	t.Parallel()

	impl := &scriptedServer{putErr: status.Error(codes.FailedPrecondition, "stale")}
	store := dialScripted(t, impl)
	ctx := context.Background()

	if _, err := store.Get(ctx, "o", "tasks", "missing"); !errors.Is(err, domain.ErrRemoteNotFound) {
		t.Fatalf("get missing: %v", err)
	}
	if _, err := store.Put(ctx, domain.Document{OwnerID: "o", Collection: "tasks", ID: "t1", Data: json.RawMessage(`{}`)}, syncout.PutOptions{}); !errors.Is(err, domain.ErrStale) {
		t.Fatalf("stale put: %v", err)
	}
	if err := store.Delete(ctx, "o", "tasks", "t1"); !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatalf("unavailable delete: %v", err)
	}
}
