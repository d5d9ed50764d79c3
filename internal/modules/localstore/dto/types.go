package dto

import (
	"encoding/json"
	"time"
)

const (
	StatusPending  = "pending"
	StatusSynced   = "synced"
	StatusConflict = "conflict"
	StatusLocal    = "local"
)

const (
	CollectionSessions    = "sessions"
	CollectionEvents      = "events"
	CollectionTasks       = "tasks"
	CollectionGoals       = "goals"
	CollectionCooldowns   = "cooldowns"
	CollectionCredentials = "credentials"
)

// CodeRecordNotFound is the error code returned for missing records.
const CodeRecordNotFound = "record_not_found"

// SyncableCollections are pulled in this order so pause events land after
// their sessions.
var SyncableCollections = []string{CollectionSessions, CollectionEvents, CollectionTasks, CollectionGoals}

type Key struct {
	OwnerID    string
	Collection string
	ID         string
}

type Record struct {
	Key
	Data               json.RawMessage
	SyncStatus         string
	LastModified       time.Time
	RemoteLastModified time.Time
}

type PutInput struct {
	Key
	Data json.RawMessage
}

type PutSyncedInput struct {
	Key
	Data               json.RawMessage
	RemoteLastModified time.Time
}

// ApplyRemoteInput writes a pulled document only when the local record still
// carries ExpectedLastModified, or is still absent when ExpectAbsent is set.
type ApplyRemoteInput struct {
	Key
	Data                 json.RawMessage
	RemoteLastModified   time.Time
	ExpectedLastModified time.Time
	ExpectAbsent         bool
}

type MarkPushedInput struct {
	Key
	PushedLastModified time.Time
	RemoteLastModified time.Time
}

type QueryInput struct {
	OwnerID    string
	Collection string
	Statuses   []string
	Limit      int
}

type CountsOutput struct {
	Pending  int
	Synced   int
	Conflict int
	Local    int
}
