package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	storeadapter "tether/internal/modules/localstore/adapter/out"
	"tether/internal/modules/localstore/domain"
	storedto "tether/internal/modules/localstore/dto"
	storein "tether/internal/modules/localstore/port/in"
	"tether/internal/modules/localstore/service"
	"tether/internal/modules/localstore/usecase"
	"tether/internal/platform/clock"
	"tether/internal/platform/sqlitedb"
	"tether/internal/platform/tx"
)

type recordingDeletes struct {
	calls []string
	err   error
}

func (r *recordingDeletes) EnqueueDelete(_ context.Context, ownerID, collection, id string) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, ownerID+"/"+collection+"/"+id)
	return nil
}

func newStore(t *testing.T, clk clock.Clock, deletes *recordingDeletes) storein.Store {
	t.Helper()
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "tether.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo, err := storeadapter.NewSQLiteRecordStore(db)
	if err != nil {
		t.Fatalf("new record store: %v", err)
	}
	return usecase.NewInteractor(service.NewStoreService(clk, repo, deletes, tx.NewSQLManager(db), nil))
}

func sessionKey(id string) storedto.Key {
	return storedto.Key{OwnerID: "owner-x", Collection: storedto.CollectionSessions, ID: id}
}

func TestPutStampsPendingAndIsImmediatelyReadable(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := newStore(t, clk, &recordingDeletes{})
	ctx := context.Background()

	written, err := store.Put(ctx, storedto.PutInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{"id":"s-1"}`)})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if written.SyncStatus != storedto.StatusPending {
		t.Fatalf("expected pending, got %s", written.SyncStatus)
	}
	got, err := store.Get(ctx, sessionKey("s-1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.LastModified.Equal(clk.Now()) || string(got.Data) != `{"id":"s-1"}` {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestPutKeepsStampsDistinctWithinOneInstant(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := newStore(t, clk, &recordingDeletes{})
	ctx := context.Background()

	first, err := store.Put(ctx, storedto.PutInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{"v":1}`)})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	second, err := store.Put(ctx, storedto.PutInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{"v":2}`)})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !second.LastModified.After(first.LastModified) {
		t.Fatalf("expected strictly increasing stamps: %v then %v", first.LastModified, second.LastModified)
	}
}

func TestLocalOnlyCollectionsStayLocal(t *testing.T) {
	t.Parallel()
	store := newStore(t, clock.NewManual(time.Now().UTC()), &recordingDeletes{})
	record, err := store.Put(context.Background(), storedto.PutInput{
		Key:  storedto.Key{OwnerID: "owner-x", Collection: storedto.CollectionCooldowns, ID: "owner-x"},
		Data: json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if record.SyncStatus != storedto.StatusLocal {
		t.Fatalf("expected local status, got %s", record.SyncStatus)
	}
}

func TestMarkPushedSkipsRecordsEditedDuringPush(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := newStore(t, clk, &recordingDeletes{})
	ctx := context.Background()

	snapshot, err := store.Put(ctx, storedto.PutInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{"v":1}`)})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	clk.Advance(time.Second)
	if _, err := store.Put(ctx, storedto.PutInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{"v":2}`)}); err != nil {
		t.Fatalf("concurrent put: %v", err)
	}
	remoteLM := clk.Now().Add(time.Minute)
	synced, err := store.MarkPushed(ctx, storedto.MarkPushedInput{Key: sessionKey("s-1"), PushedLastModified: snapshot.LastModified, RemoteLastModified: remoteLM})
	if err != nil {
		t.Fatalf("mark pushed: %v", err)
	}
	if synced {
		t.Fatalf("a record edited after the snapshot must stay pending")
	}
	got, err := store.Get(ctx, sessionKey("s-1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SyncStatus != storedto.StatusPending || !got.RemoteLastModified.Equal(remoteLM) {
		t.Fatalf("unexpected record after push: %+v", got)
	}
}

func TestMarkPushedSyncsUnchangedRecord(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := newStore(t, clk, &recordingDeletes{})
	ctx := context.Background()

	snapshot, err := store.Put(ctx, storedto.PutInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{"v":1}`)})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	synced, err := store.MarkPushed(ctx, storedto.MarkPushedInput{Key: sessionKey("s-1"), PushedLastModified: snapshot.LastModified, RemoteLastModified: snapshot.LastModified})
	if err != nil {
		t.Fatalf("mark pushed: %v", err)
	}
	if !synced {
		t.Fatalf("expected record to be synced")
	}
	counts, err := store.Counts(ctx, "owner-x")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Synced != 1 || counts.Pending != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestApplyRemoteCompareAndSwap(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := newStore(t, clk, &recordingDeletes{})
	ctx := context.Background()
	remoteLM := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	applied, err := store.ApplyRemote(ctx, storedto.ApplyRemoteInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{"v":1}`), RemoteLastModified: remoteLM, ExpectAbsent: true})
	if err != nil || !applied {
		t.Fatalf("apply to absent record: applied=%v err=%v", applied, err)
	}
	applied, err = store.ApplyRemote(ctx, storedto.ApplyRemoteInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{"v":9}`), RemoteLastModified: remoteLM, ExpectAbsent: true})
	if err != nil || applied {
		t.Fatalf("second absent apply must be skipped: applied=%v err=%v", applied, err)
	}

	current, err := store.Get(ctx, sessionKey("s-1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	clk.Advance(time.Second)
	if _, err := store.Put(ctx, storedto.PutInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{"v":2}`)}); err != nil {
		t.Fatalf("local put: %v", err)
	}
	applied, err = store.ApplyRemote(ctx, storedto.ApplyRemoteInput{
		Key:                  sessionKey("s-1"),
		Data:                 json.RawMessage(`{"v":3}`),
		RemoteLastModified:   remoteLM.Add(time.Hour),
		ExpectedLastModified: current.LastModified,
	})
	if err != nil {
		t.Fatalf("apply remote: %v", err)
	}
	if applied {
		t.Fatalf("remote apply must not overwrite a local edit")
	}
	got, err := store.Get(ctx, sessionKey("s-1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Data) != `{"v":2}` {
		t.Fatalf("local edit lost: %s", got.Data)
	}
}

func TestPutOnConflictedRecordKeepsConflict(t *testing.T) {
	t.Parallel()
	store := newStore(t, clock.NewManual(time.Now().UTC()), &recordingDeletes{})
	ctx := context.Background()
	if _, err := store.Put(ctx, storedto.PutInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.MarkConflict(ctx, sessionKey("s-1")); err != nil {
		t.Fatalf("mark conflict: %v", err)
	}
	record, err := store.Put(ctx, storedto.PutInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{"v":1}`)})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if record.SyncStatus != storedto.StatusConflict {
		t.Fatalf("expected conflict to persist, got %s", record.SyncStatus)
	}
	pending, err := store.Query(ctx, storedto.QueryInput{OwnerID: "owner-x", Statuses: []string{storedto.StatusPending}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("conflicted record must not be pending: %+v", pending)
	}
}

func TestDeleteEnqueuesRemoteDelete(t *testing.T) {
	t.Parallel()
	deletes := &recordingDeletes{}
	store := newStore(t, clock.NewManual(time.Now().UTC()), deletes)
	ctx := context.Background()
	if _, err := store.Put(ctx, storedto.PutInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, sessionKey("s-1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(deletes.calls) != 1 || deletes.calls[0] != "owner-x/sessions/s-1" {
		t.Fatalf("unexpected delete queue calls: %v", deletes.calls)
	}
	if _, err := store.Get(ctx, sessionKey("s-1")); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestDeleteRollsBackWhenQueueFails(t *testing.T) {
	t.Parallel()
	deletes := &recordingDeletes{err: errors.New("queue unavailable")}
	store := newStore(t, clock.NewManual(time.Now().UTC()), deletes)
	ctx := context.Background()
	if _, err := store.Put(ctx, storedto.PutInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, sessionKey("s-1")); err == nil {
		t.Fatalf("expected delete to fail")
	}
	if _, err := store.Get(ctx, sessionKey("s-1")); err != nil {
		t.Fatalf("record must survive a failed delete: %v", err)
	}
}

func TestPutBatchIsAtomic(t *testing.T) {
	t.Parallel()
	store := newStore(t, clock.NewManual(time.Now().UTC()), &recordingDeletes{})
	ctx := context.Background()
	_, err := store.PutBatch(ctx, []storedto.PutInput{
		{Key: sessionKey("s-1"), Data: json.RawMessage(`{}`)},
		{Key: storedto.Key{OwnerID: "owner-x", Collection: storedto.CollectionEvents, ID: "e-1"}, Data: json.RawMessage(`not json`)},
	})
	if err == nil {
		t.Fatalf("expected invalid batch to fail")
	}
	if _, err := store.Get(ctx, sessionKey("s-1")); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("no record of a failed batch may be written, got %v", err)
	}
}

func TestQueryValidatesOwner(t *testing.T) {
	t.Parallel()
	store := newStore(t, clock.NewManual(time.Now().UTC()), &recordingDeletes{})
	if _, err := store.Query(context.Background(), storedto.QueryInput{}); err == nil {
		t.Fatalf("expected missing owner to be rejected")
	}
}

func TestRebaseClearsConflictAsPending(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := newStore(t, clk, &recordingDeletes{})
	ctx := context.Background()

	if _, err := store.Put(ctx, storedto.PutInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{"v":1}`)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.MarkConflict(ctx, sessionKey("s-1")); err != nil {
		t.Fatalf("mark conflict: %v", err)
	}
	remoteVersion := clk.Now().Add(time.Minute)
	rebased, err := store.Rebase(ctx, storedto.PutSyncedInput{Key: sessionKey("s-1"), Data: json.RawMessage(`{"v":1}`), RemoteLastModified: remoteVersion})
	if err != nil {
		t.Fatalf("rebase: %v", err)
	}
	if rebased.SyncStatus != storedto.StatusPending || !rebased.RemoteLastModified.Equal(remoteVersion) {
		t.Fatalf("unexpected rebased record: %+v", rebased)
	}
}
