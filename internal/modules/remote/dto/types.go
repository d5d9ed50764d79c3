package dto

import (
	"encoding/json"
	"time"
)

// Error codes carried by remote errors, for mapping onto transport status.
const (
	CodeDocumentNotFound = "document_not_found"
	CodeStaleWrite       = "stale_write"
)

type Key struct {
	OwnerID    string
	Collection string
	ID         string
}

type Document struct {
	Key
	Data         json.RawMessage
	LastModified time.Time
}

type PutInput struct {
	Document         Document
	BaseLastModified time.Time
	Force            bool
}

type ChangedSinceInput struct {
	OwnerID    string
	Collection string
	Since      time.Time
}

type PublicSession struct {
	ID              string        `json:"id"`
	StartTime       time.Time     `json:"startTime"`
	GoalDuration    time.Duration `json:"goalDuration"`
	IsPaused        bool          `json:"isPaused"`
	KeyholderUserID string        `json:"keyholderUserId,omitempty"`
}
