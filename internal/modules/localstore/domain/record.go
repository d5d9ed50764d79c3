package domain

import (
	"encoding/json"
	"time"

	apperrors "tether/internal/platform/errors"
)

type SyncStatus string

const (
	StatusPending  SyncStatus = "pending"
	StatusSynced   SyncStatus = "synced"
	StatusConflict SyncStatus = "conflict"
	// StatusLocal marks records of local-only collections. They never sync.
	StatusLocal SyncStatus = "local"
)

type Collection string

const (
	CollectionSessions    Collection = "sessions"
	CollectionEvents      Collection = "events"
	CollectionTasks       Collection = "tasks"
	CollectionGoals       Collection = "goals"
	CollectionCooldowns   Collection = "cooldowns"
	CollectionCredentials Collection = "credentials"
)

var syncable = []Collection{CollectionSessions, CollectionEvents, CollectionTasks, CollectionGoals}

// SyncableCollections lists the collections mirrored to the remote store.
func SyncableCollections() []Collection {
	out := make([]Collection, len(syncable))
	copy(out, syncable)
	return out
}

func (c Collection) Syncable() bool {
	for _, candidate := range syncable {
		if c == candidate {
			return true
		}
	}
	return false
}

func (c Collection) Known() bool {
	return c.Syncable() || c == CollectionCooldowns || c == CollectionCredentials
}

type Key struct {
	OwnerID    string
	Collection Collection
	ID         string
}

func (k Key) Validate() error {
	if k.OwnerID == "" {
		return apperrors.Invalid("owner id is required")
	}
	if !k.Collection.Known() {
		return apperrors.Invalid("unknown collection %q", k.Collection)
	}
	if k.ID == "" {
		return apperrors.Invalid("record id is required")
	}
	return nil
}

func (k Key) String() string {
	return "owners/" + k.OwnerID + "/" + string(k.Collection) + "/" + k.ID
}

// Record is the envelope every cached entity is stored in. RemoteLastModified
// is the remote document's lastModified at the last successful sync of this
// record, zero when it has never been synced.
type Record struct {
	Key
	Data               json.RawMessage
	SyncStatus         SyncStatus
	LastModified       time.Time
	RemoteLastModified time.Time
}

// NextLastModified returns now, or the instant just after previous when the
// clock has not moved past it. Compare-and-swap marks rely on every local
// write producing a distinct stamp.
func NextLastModified(previous, now time.Time) time.Time {
	if !now.After(previous) {
		return previous.Add(time.Nanosecond)
	}
	return now
}

// StatusForWrite is the status a local write lands in. Local-only
// collections stay local, and a record awaiting adjudication stays in
// conflict until it is resolved.
func StatusForWrite(collection Collection, existing SyncStatus) SyncStatus {
	if !collection.Syncable() {
		return StatusLocal
	}
	if existing == StatusConflict {
		return StatusConflict
	}
	return StatusPending
}

type Filter struct {
	OwnerID    string
	Collection Collection
	Statuses   []SyncStatus
	Limit      int
}

type Counts struct {
	Pending  int
	Synced   int
	Conflict int
	Local    int
}

const CodeRecordNotFound = "record_not_found"

var ErrRecordNotFound = apperrors.New(apperrors.KindValidation, CodeRecordNotFound, "record not found")
