package out

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tether/internal/modules/remote/domain"
)

func TestBadgerStoreListsByCollectionAndVersion(t *testing.T) {
	t.Parallel()

	db, err := OpenBadger("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store := NewBadgerDocumentStore(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)

	put := func(owner, collection, id string, offset time.Duration) {
		t.Helper()
		doc := domain.Document{
			Key:          domain.Key{OwnerID: owner, Collection: collection, ID: id},
			Data:         json.RawMessage(`{"id":"` + id + `"}`),
			LastModified: base.Add(offset),
		}
		if err := store.Put(ctx, doc); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	put("o", "tasks", "late", 3*time.Second)
	put("o", "tasks", "early", time.Second)
	put("o", "tasks", "middle", 2*time.Second)
	put("o", "taskset", "other-collection", 4*time.Second)
	put("p", "tasks", "other-owner", 5*time.Second)

	docs, err := store.List(ctx, "o", "tasks", base.Add(time.Second))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "middle" || docs[1].ID != "late" {
		t.Fatalf("unexpected listing %+v", docs)
	}
	if string(docs[1].Data) != `{"id":"late"}` || !docs[1].LastModified.Equal(base.Add(3*time.Second)) {
		t.Fatalf("unexpected document %+v", docs[1])
	}

	if err := store.Delete(ctx, domain.Key{OwnerID: "o", Collection: "tasks", ID: "gone"}); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("delete missing: %v", err)
	}
}
