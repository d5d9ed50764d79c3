package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const CollectionSessions = "sessions"

// PublicSession is what the notification job may read about a session.
type PublicSession struct {
	ID              string
	StartTime       time.Time
	GoalDuration    time.Duration
	IsPaused        bool
	KeyholderUserID string
}

type sessionFields struct {
	ID              string         `json:"id"`
	StartTime       time.Time      `json:"startTime"`
	EndTime         *time.Time     `json:"endTime,omitempty"`
	GoalDuration    *time.Duration `json:"goalDuration,omitempty"`
	IsPaused        bool           `json:"isPaused"`
	KeyholderUserID string         `json:"keyholderUserId,omitempty"`
}

// OpenSession projects a stored session document. It reports false for
// ended sessions.
func OpenSession(doc Document) (PublicSession, bool, error) {
	var fields sessionFields
	if err := json.Unmarshal(doc.Data, &fields); err != nil {
		return PublicSession{}, false, fmt.Errorf("decode session %s: %w", doc.Key.String(), err)
	}
	if fields.EndTime != nil {
		return PublicSession{}, false, nil
	}
	session := PublicSession{
		ID:              fields.ID,
		StartTime:       fields.StartTime,
		IsPaused:        fields.IsPaused,
		KeyholderUserID: fields.KeyholderUserID,
	}
	if session.ID == "" {
		session.ID = doc.ID
	}
	if fields.GoalDuration != nil {
		session.GoalDuration = *fields.GoalDuration
	}
	return session, true, nil
}
