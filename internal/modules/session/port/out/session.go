package out

import (
	"context"

	activitydto "tether/internal/modules/activity/dto"
	"tether/internal/modules/session/domain"
)

type SessionRepository interface {
	Session(ctx context.Context, ownerID, sessionID string) (domain.Session, error)
	Sessions(ctx context.Context, ownerID string) ([]domain.Session, error)
	Events(ctx context.Context, ownerID, sessionID string) ([]domain.PauseEvent, error)
	// Tracker returns an empty tracker when the session has none yet.
	Tracker(ctx context.Context, ownerID, sessionID string) (domain.CooldownTracker, error)
	Credential(ctx context.Context, ownerID string) (domain.Credential, bool, error)
	Apply(ctx context.Context, change domain.Change) error
}

// NoteStore writes a human-readable note for an ended session.
type NoteStore interface {
	Save(ctx context.Context, session domain.Session, events []domain.PauseEvent) (string, error)
}

type ActivityRecorder interface {
	Record(ctx context.Context, input activitydto.RecordInput) error
}
