package domain

import (
	"bytes"
	"encoding/json"
	"reflect"
	"time"
)

// Document is one remote document as the sync engine sees it.
type Document struct {
	OwnerID      string
	Collection   string
	ID           string
	Data         json.RawMessage
	LastModified time.Time
}

type Version struct {
	Data         json.RawMessage
	LastModified time.Time
}

// Conflict is a record whose local and remote copies both changed since the
// last reconciliation. It is resolved as a whole document. RemoteKnown is
// false for a conflict found in the local store while the remote could not
// be read; Remote is empty until a pass fetches it.
type Conflict struct {
	ID          string
	OwnerID     string
	Collection  string
	DocumentID  string
	Local       Version
	Remote      Version
	RemoteKnown bool
	DetectedAt  time.Time
}

// ConflictID is stable per record, so detecting the same divergence twice
// yields one conflict.
func ConflictID(ownerID, collection, documentID string) string {
	return ownerID + "/" + collection + "/" + documentID
}

type Choice string

const (
	ChoiceLocal  Choice = "local"
	ChoiceRemote Choice = "remote"
)

func (c Choice) Valid() bool {
	return c == ChoiceLocal || c == ChoiceRemote
}

type Resolution struct {
	ConflictID string
	Choice     Choice
}

// SameDocument reports whether two JSON documents are equal ignoring key
// order and whitespace.
func SameDocument(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var left, right any
	if json.Unmarshal(a, &left) != nil || json.Unmarshal(b, &right) != nil {
		return false
	}
	return reflect.DeepEqual(left, right)
}
