package domain

import "time"

const SchemaVersion = 1

type InitiatedBy string

const (
	InitiatedBySubmissive InitiatedBy = "submissive"
	InitiatedByKeyholder  InitiatedBy = "keyholder"
	InitiatedBySystem     InitiatedBy = "system"
)

func (i InitiatedBy) Valid() bool {
	switch i {
	case InitiatedBySubmissive, InitiatedByKeyholder, InitiatedBySystem:
		return true
	default:
		return false
	}
}

// SyncMeta mirrors the local store envelope. It is not part of the document.
type SyncMeta struct {
	Status       string
	LastModified time.Time
}

type Session struct {
	ID                        string         `json:"id"`
	OwnerID                   string         `json:"ownerId"`
	StartTime                 time.Time      `json:"startTime"`
	EndTime                   *time.Time     `json:"endTime,omitempty"`
	PauseStartTime            *time.Time     `json:"pauseStartTime,omitempty"`
	AccumulatedPause          time.Duration  `json:"accumulatedPauseTime"`
	IsPaused                  bool           `json:"isPaused"`
	IsHardcoreMode            bool           `json:"isHardcoreMode"`
	KeyholderApprovalRequired bool           `json:"keyholderApprovalRequired"`
	GoalDuration              *time.Duration `json:"goalDuration,omitempty"`
	EndReason                 string         `json:"endReason,omitempty"`
	KeyholderUserID           string         `json:"keyholderUserId,omitempty"`
	EmergencyUnlocked         bool           `json:"emergencyUnlocked,omitempty"`
	Notes                     string         `json:"notes,omitempty"`
	SchemaVersion             int            `json:"schemaVersion"`

	Sync SyncMeta `json:"-"`
}

func (s Session) IsOpen() bool {
	return s.EndTime == nil
}

// Validate checks the structural invariants of a single session document.
func (s Session) Validate() error {
	if s.ID == "" || s.OwnerID == "" {
		return ErrMalformedSession
	}
	if s.AccumulatedPause < 0 {
		return ErrMalformedSession
	}
	if s.IsPaused != (s.PauseStartTime != nil) {
		return ErrMalformedSession
	}
	if s.EndTime != nil && s.EndTime.Before(s.StartTime) {
		return ErrMalformedSession
	}
	if s.EndTime != nil && s.IsPaused {
		return ErrMalformedSession
	}
	return nil
}

// EffectiveElapsed is wall time since start minus completed and ongoing
// pauses. A negative result is clamped to zero and reported as false.
func (s Session) EffectiveElapsed(now time.Time) (time.Duration, bool) {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	elapsed := end.Sub(s.StartTime) - s.AccumulatedPause
	if s.IsPaused && s.PauseStartTime != nil {
		elapsed -= end.Sub(*s.PauseStartTime)
	}
	if elapsed < 0 {
		return 0, false
	}
	return elapsed, true
}

// GoalMet reports whether the goal duration has been served by at.
func (s Session) GoalMet(at time.Time) bool {
	if s.GoalDuration == nil {
		return false
	}
	elapsed, _ := s.EffectiveElapsed(at)
	return elapsed >= *s.GoalDuration
}

// GoalRemaining is the effective time left until the goal, zero once met.
func (s Session) GoalRemaining(now time.Time) (time.Duration, bool) {
	if s.GoalDuration == nil {
		return 0, false
	}
	elapsed, _ := s.EffectiveElapsed(now)
	left := *s.GoalDuration - elapsed
	if left < 0 {
		left = 0
	}
	return left, true
}

type PauseEvent struct {
	ID           string        `json:"id"`
	SessionID    string        `json:"sessionId"`
	OwnerID      string        `json:"ownerId"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      *time.Time    `json:"endTime,omitempty"`
	Duration     time.Duration `json:"duration"`
	Reason       string        `json:"reason"`
	InitiatedBy  InitiatedBy   `json:"initiatedBy"`
	OverrideUsed bool          `json:"overrideUsed"`

	Sync SyncMeta `json:"-"`
}

func (e PauseEvent) IsOpen() bool {
	return e.EndTime == nil
}

// OpenEvent returns the latest pause event without an end, nil when every
// event is closed.
func OpenEvent(events []PauseEvent) *PauseEvent {
	var open *PauseEvent
	for i := range events {
		if !events[i].IsOpen() {
			continue
		}
		if open == nil || events[i].StartTime.After(open.StartTime) {
			event := events[i]
			open = &event
		}
	}
	return open
}

func (e PauseEvent) close(at time.Time) PauseEvent {
	end := at
	e.EndTime = &end
	e.Duration = nonNegative(at.Sub(e.StartTime))
	return e
}

// Change is everything one intent persists. It is written atomically.
type Change struct {
	OwnerID    string
	Session    *Session
	Events     []PauseEvent
	Tracker    *CooldownTracker
	Credential *Credential
}

// Reminder is the public projection read by the notification job.
type Reminder struct {
	SessionID       string
	StartTime       time.Time
	GoalDuration    time.Duration
	IsPaused        bool
	KeyholderUserID string
	GoalEnd         time.Time
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
