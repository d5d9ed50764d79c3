package dto

import (
	"encoding/json"
	"time"
)

const (
	ChoiceLocal  = "local"
	ChoiceRemote = "remote"
)

type ReportOutput struct {
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

type VersionOutput struct {
	Data         json.RawMessage
	LastModified time.Time
}

// ConflictOutput has RemoteKnown false while the remote version could not
// be fetched; Remote is empty then.
type ConflictOutput struct {
	ID          string
	OwnerID     string
	Collection  string
	DocumentID  string
	Local       VersionOutput
	Remote      VersionOutput
	RemoteKnown bool
	DetectedAt  time.Time
}

type Resolution struct {
	ConflictID string
	Choice     string
}

type ResolveAllInput struct {
	OwnerID     string
	Resolutions []Resolution
}

type OperationOutput struct {
	ID            string
	Kind          string
	Collection    string
	DocumentID    string
	EnqueuedAt    time.Time
	RetryCount    int
	NextAttemptAt time.Time
	LastError     string
}

type FailureOutput struct {
	ID             string
	OwnerID        string
	Kind           string
	Collection     string
	DocumentID     string
	Attempts       int
	LastError      string
	DroppedAt      time.Time
	AcknowledgedAt *time.Time
}

type HealthOutput struct {
	OwnerID   string
	Online    bool
	Quality   string
	Pending   int
	Synced    int
	Conflict  int
	Queued    int
	Failures  int
	Conflicts int
	LastSync  time.Time
	LastError string
}
