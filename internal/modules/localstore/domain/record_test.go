package domain_test

import (
	"testing"
	"time"

	"tether/internal/modules/localstore/domain"
)

func TestNextLastModifiedIsStrictlyIncreasing(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if got := domain.NextLastModified(base, base); !got.After(base) {
		t.Fatalf("same instant must advance, got %v", got)
	}
	if got := domain.NextLastModified(base, base.Add(-time.Minute)); !got.After(base) {
		t.Fatalf("clock going backwards must still advance, got %v", got)
	}
	later := base.Add(time.Second)
	if got := domain.NextLastModified(base, later); !got.Equal(later) {
		t.Fatalf("expected now when clock moved on, got %v", got)
	}
}

func TestStatusForWrite(t *testing.T) {
	t.Parallel()
	cases := []struct {
		collection domain.Collection
		existing   domain.SyncStatus
		want       domain.SyncStatus
	}{
		{domain.CollectionSessions, "", domain.StatusPending},
		{domain.CollectionSessions, domain.StatusSynced, domain.StatusPending},
		{domain.CollectionEvents, domain.StatusConflict, domain.StatusConflict},
		{domain.CollectionCooldowns, "", domain.StatusLocal},
		{domain.CollectionCredentials, domain.StatusLocal, domain.StatusLocal},
	}
	for _, tc := range cases {
		if got := domain.StatusForWrite(tc.collection, tc.existing); got != tc.want {
			t.Fatalf("%s/%s: got %s want %s", tc.collection, tc.existing, got, tc.want)
		}
	}
}

func TestKeyValidate(t *testing.T) {
	t.Parallel()
	if err := (domain.Key{OwnerID: "o", Collection: "nope", ID: "1"}).Validate(); err == nil {
		t.Fatalf("unknown collection must be rejected")
	}
	if err := (domain.Key{OwnerID: "o", Collection: domain.CollectionTasks}).Validate(); err == nil {
		t.Fatalf("missing id must be rejected")
	}
	key := domain.Key{OwnerID: "o", Collection: domain.CollectionTasks, ID: "1"}
	if err := key.Validate(); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
	if key.String() != "owners/o/tasks/1" {
		t.Fatalf("unexpected path: %s", key.String())
	}
}
