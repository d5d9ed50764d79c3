package dto

import "time"

const (
	InitiatedBySubmissive = "submissive"
	InitiatedByKeyholder  = "keyholder"
	InitiatedBySystem     = "system"
)

// CodeNotFound is the error code returned when no session matches, including
// when an owner has no open session.
const CodeNotFound = "session_not_found"

type StartInput struct {
	OwnerID                   string
	GoalDuration              *time.Duration
	Hardcore                  bool
	KeyholderApprovalRequired bool
	KeyholderUserID           string
	Notes                     string
}

type PauseInput struct {
	OwnerID     string
	SessionID   string
	Reason      string
	InitiatedBy string
	UseOverride bool
}

type ResumeInput struct {
	OwnerID   string
	SessionID string
}

type EndInput struct {
	OwnerID    string
	SessionID  string
	EndTime    *time.Time
	Reason     string
	Credential string
	ApprovedBy string
}

type UnlockInput struct {
	OwnerID    string
	SessionID  string
	Credential string
	Reason     string
}

type EditStartInput struct {
	OwnerID   string
	SessionID string
	StartTime time.Time
}

// EditGoalInput clears the goal when GoalDuration is nil.
type EditGoalInput struct {
	OwnerID      string
	SessionID    string
	GoalDuration *time.Duration
}

type CredentialInput struct {
	OwnerID string
	Secret  string
}

type SessionOutput struct {
	ID                        string
	OwnerID                   string
	StartTime                 time.Time
	EndTime                   *time.Time
	PauseStartTime            *time.Time
	AccumulatedPause          time.Duration
	IsPaused                  bool
	IsHardcoreMode            bool
	KeyholderApprovalRequired bool
	GoalDuration              *time.Duration
	EndReason                 string
	KeyholderUserID           string
	EmergencyUnlocked         bool
	Notes                     string
	SyncStatus                string
	LastModified              time.Time

	AsOf              time.Time
	EffectiveElapsed  time.Duration
	CooldownRemaining time.Duration
	CooldownUntil     time.Time
	Warnings          []string
}

// ElapsedAt recomputes effective elapsed time from the stored timestamps.
// Displays call it on every tick instead of accumulating a counter.
func (o SessionOutput) ElapsedAt(now time.Time) time.Duration {
	end := now
	if o.EndTime != nil {
		end = *o.EndTime
	}
	elapsed := end.Sub(o.StartTime) - o.AccumulatedPause
	if o.IsPaused && o.PauseStartTime != nil {
		elapsed -= end.Sub(*o.PauseStartTime)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

type PauseEventOutput struct {
	ID           string
	SessionID    string
	StartTime    time.Time
	EndTime      *time.Time
	Duration     time.Duration
	Reason       string
	InitiatedBy  string
	OverrideUsed bool
	SyncStatus   string
}

type PauseOutput struct {
	Session SessionOutput
	Event   PauseEventOutput
}

type ResumeOutput struct {
	Session SessionOutput
	Event   *PauseEventOutput
}

type ReminderOutput struct {
	SessionID       string
	StartTime       time.Time
	GoalDuration    time.Duration
	IsPaused        bool
	KeyholderUserID string
	GoalEnd         time.Time
}
