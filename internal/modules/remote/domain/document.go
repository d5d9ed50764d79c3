package domain

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "tether/internal/platform/errors"
)

const (
	CodeDocumentNotFound = "document_not_found"
	CodeStaleWrite       = "stale_write"
)

var (
	ErrDocumentNotFound = apperrors.New(apperrors.KindValidation, CodeDocumentNotFound, "document not found")
	ErrStaleWrite       = apperrors.New(apperrors.KindConflict, CodeStaleWrite, "document changed since the base version")
)

// Key addresses owners/{ownerId}/{collection}/{id}.
type Key struct {
	OwnerID    string
	Collection string
	ID         string
}

func (k Key) Validate() error {
	if k.OwnerID == "" || k.Collection == "" || k.ID == "" {
		return apperrors.Invalid("owner, collection and id are required")
	}
	return nil
}

func (k Key) String() string {
	return fmt.Sprintf("owners/%s/%s/%s", k.OwnerID, k.Collection, k.ID)
}

type Document struct {
	Key
	Data         json.RawMessage
	LastModified time.Time
}

// Stamp returns a lastModified strictly after both previous stamps.
func Stamp(now, lastIssued, current time.Time) time.Time {
	floor := lastIssued
	if current.After(floor) {
		floor = current
	}
	if !now.After(floor) {
		return floor.Add(time.Nanosecond)
	}
	return now
}
