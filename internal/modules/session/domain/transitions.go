package domain

import (
	"strings"
	"time"

	apperrors "tether/internal/platform/errors"
)

type StartOptions struct {
	GoalDuration              *time.Duration
	Hardcore                  bool
	KeyholderApprovalRequired bool
	KeyholderUserID           string
	Notes                     string
}

type PauseRequest struct {
	EventID     string
	Reason      string
	InitiatedBy InitiatedBy
	UseOverride bool
}

type EndRequest struct {
	EndTime *time.Time
	Reason  string
	// CredentialVerified is set by the caller after checking a supplied
	// emergency credential.
	CredentialVerified bool
	ApprovedBy         string
}

// Start opens a session. open holds the owner's currently open sessions.
func Start(id, ownerID string, now time.Time, opts StartOptions, open []Session) (Session, error) {
	if len(open) > 0 {
		return Session{}, ErrAlreadyActive
	}
	if ownerID == "" {
		return Session{}, apperrors.Invalid("owner id is required")
	}
	if opts.GoalDuration != nil && *opts.GoalDuration <= 0 {
		return Session{}, ErrInvalidGoal
	}
	if opts.KeyholderApprovalRequired && opts.KeyholderUserID == "" {
		return Session{}, apperrors.Invalid("keyholder approval needs a keyholder user id")
	}
	return Session{
		ID:                        id,
		OwnerID:                   ownerID,
		StartTime:                 now,
		IsHardcoreMode:            opts.Hardcore,
		KeyholderApprovalRequired: opts.KeyholderApprovalRequired,
		GoalDuration:              opts.GoalDuration,
		KeyholderUserID:           opts.KeyholderUserID,
		Notes:                     opts.Notes,
		SchemaVersion:             SchemaVersion,
	}, nil
}

// Pause opens a pause interval. cooldownRemaining comes from the owner's
// cooldown tracker; a keyholder override bypasses it and is flagged on the
// event.
func (s Session) Pause(now time.Time, req PauseRequest, cooldownRemaining time.Duration) (Session, PauseEvent, error) {
	if !s.IsOpen() || s.IsPaused {
		return s, PauseEvent{}, ErrNotActive
	}
	initiatedBy := req.InitiatedBy
	if initiatedBy == "" {
		initiatedBy = InitiatedBySubmissive
	}
	if !initiatedBy.Valid() {
		return s, PauseEvent{}, apperrors.Invalid("unknown initiator %q", req.InitiatedBy)
	}
	reason := strings.TrimSpace(req.Reason)
	overrideUsed := false
	if req.UseOverride {
		if initiatedBy != InitiatedByKeyholder {
			return s, PauseEvent{}, ErrOverrideNotPermitted
		}
		if reason == "" {
			return s, PauseEvent{}, ErrReasonRequired
		}
		overrideUsed = cooldownRemaining > 0
	} else if cooldownRemaining > 0 {
		return s, PauseEvent{}, &CooldownError{Remaining: cooldownRemaining}
	}

	start := now
	s.IsPaused = true
	s.PauseStartTime = &start
	event := PauseEvent{
		ID:           req.EventID,
		SessionID:    s.ID,
		OwnerID:      s.OwnerID,
		StartTime:    now,
		Reason:       reason,
		InitiatedBy:  initiatedBy,
		OverrideUsed: overrideUsed,
	}
	return s, event, nil
}

// Resume closes the ongoing pause. open is the session's open pause event,
// nil when none could be found.
func (s Session) Resume(now time.Time, open *PauseEvent) (Session, *PauseEvent, error) {
	if !s.IsOpen() || !s.IsPaused || s.PauseStartTime == nil {
		return s, nil, ErrNotPaused
	}
	s.AccumulatedPause += nonNegative(now.Sub(*s.PauseStartTime))
	s.IsPaused = false
	s.PauseStartTime = nil
	if open == nil {
		return s, nil, nil
	}
	closed := open.close(now)
	return s, &closed, nil
}

// End closes the session at req.EndTime (default now), closing an ongoing
// pause at the same instant. events are the session's recorded pauses; a
// backdated end may not fall before or inside any of them.
func (s Session) End(now time.Time, req EndRequest, events []PauseEvent) (Session, *PauseEvent, error) {
	if !s.IsOpen() {
		return s, nil, ErrAlreadyEnded
	}
	end := now
	if req.EndTime != nil {
		end = *req.EndTime
	}
	if end.Before(s.StartTime) || end.After(now) {
		return s, nil, ErrInvalidEndTime
	}
	if s.IsPaused && s.PauseStartTime != nil && end.Before(*s.PauseStartTime) {
		return s, nil, ErrInvalidEndTime
	}
	for _, event := range events {
		if end.Before(event.StartTime) || (event.EndTime != nil && end.Before(*event.EndTime)) {
			return s, nil, ErrInvalidEndTime
		}
	}
	if s.KeyholderApprovalRequired && !req.CredentialVerified && req.ApprovedBy != s.KeyholderUserID {
		return s, nil, ErrKeyholderApprovalRequired
	}
	if s.IsHardcoreMode && !req.CredentialVerified && !s.GoalMet(end) {
		return s, nil, ErrHardcoreLocked
	}
	return s.close(end, strings.TrimSpace(req.Reason), OpenEvent(events))
}

// EmergencyUnlock ends the session regardless of hardcore mode and goal. The
// caller has already verified the credential.
func (s Session) EmergencyUnlock(now time.Time, reason string, open *PauseEvent) (Session, *PauseEvent, error) {
	if !s.IsOpen() {
		return s, nil, ErrAlreadyEnded
	}
	if strings.TrimSpace(reason) == "" {
		reason = "emergency unlock"
	}
	s.EmergencyUnlocked = true
	return s.close(now, strings.TrimSpace(reason), open)
}

func (s Session) close(end time.Time, reason string, open *PauseEvent) (Session, *PauseEvent, error) {
	var closed *PauseEvent
	if s.IsPaused && s.PauseStartTime != nil {
		s.AccumulatedPause += nonNegative(end.Sub(*s.PauseStartTime))
		if open != nil {
			event := open.close(end)
			closed = &event
		}
	}
	s.IsPaused = false
	s.PauseStartTime = nil
	s.EndTime = &end
	s.EndReason = reason
	return s, closed, nil
}

// EditStartTime moves the start of an open session retroactively. No pause
// event may begin before the new start, and the accumulated pause is raised
// to at least the total of the closed events.
func (s Session) EditStartTime(newStart, now time.Time, events []PauseEvent) (Session, error) {
	if !s.IsOpen() {
		return s, ErrAlreadyEnded
	}
	if newStart.After(now) {
		return s, ErrInvalidStartTime
	}
	if s.IsPaused && s.PauseStartTime != nil && newStart.After(*s.PauseStartTime) {
		return s, ErrInvalidStartTime
	}
	var closedTotal time.Duration
	for _, event := range events {
		if newStart.After(event.StartTime) {
			return s, ErrInvalidStartTime
		}
		if !event.IsOpen() {
			closedTotal += event.Duration
		}
	}
	s.StartTime = newStart
	if closedTotal > s.AccumulatedPause {
		s.AccumulatedPause = closedTotal
	}
	return s, nil
}

// EditGoal replaces the goal of an open session. A nil goal clears it; a
// hardcore session keeps its lock only while it still has a goal.
func (s Session) EditGoal(goal *time.Duration) (Session, error) {
	if !s.IsOpen() {
		return s, ErrAlreadyEnded
	}
	if goal != nil && *goal <= 0 {
		return s, ErrInvalidGoal
	}
	if goal != nil {
		g := *goal
		goal = &g
	}
	s.GoalDuration = goal
	return s, nil
}
