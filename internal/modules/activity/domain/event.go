package domain

import "time"

type Type string

const (
	TypeSessionStarted      Type = "session_started"
	TypeSessionPaused       Type = "session_paused"
	TypeSessionResumed      Type = "session_resumed"
	TypeSessionEnded        Type = "session_ended"
	TypeEmergencyUnlock     Type = "emergency_unlock"
	TypeStartTimeEdited     Type = "start_time_edited"
	TypeGoalEdited          Type = "goal_edited"
	TypePauseOverride       Type = "pause_override"
	TypeIntegrityWarning    Type = "integrity_warning"
	TypeConflictDetected    Type = "conflict_detected"
	TypeConflictResolved    Type = "conflict_resolved"
	TypeOperationDropped    Type = "operation_dropped"
	TypeFailureAcknowledged Type = "failure_acknowledged"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

func (t Type) Severity() Severity {
	switch t {
	case TypeOperationDropped:
		return SeverityError
	case TypeEmergencyUnlock, TypePauseOverride, TypeIntegrityWarning, TypeConflictDetected:
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

type Event struct {
	ID         string            `json:"id"`
	OwnerID    string            `json:"owner_id"`
	Type       Type              `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
}

type Query struct {
	OwnerID string
	Types   []Type
	Since   time.Time
	Limit   int
}

func (q Query) Matches(event Event) bool {
	if q.OwnerID != "" && event.OwnerID != q.OwnerID {
		return false
	}
	if !q.Since.IsZero() && event.OccurredAt.Before(q.Since.UTC()) {
		return false
	}
	if len(q.Types) == 0 {
		return true
	}
	for _, t := range q.Types {
		if event.Type == t {
			return true
		}
	}
	return false
}
