package domain

import "time"

// Report summarizes one sync pass for an owner.
type Report struct {
	OwnerID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Pushed     int
	Pulled     int
	Conflicts  int
	Skipped    int
	Deferred   int
	Drained    int
	Dropped    int
	Errors     []string
}

// DrainReport summarizes one pass over the pending operation queue.
type DrainReport struct {
	Attempted int
	Succeeded int
	Retried   int
	Dropped   int
	Deferred  int
}

// Health is the owner's sync state as shown to the user.
type Health struct {
	OwnerID   string
	Pending   int
	Synced    int
	Conflict  int
	Queued    int
	Failures  int
	Conflicts int
	LastSync  time.Time
	LastError string
	Online    bool
	Quality   string
}
