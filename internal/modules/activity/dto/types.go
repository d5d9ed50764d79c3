package dto

import "time"

const (
	TypeSessionStarted      = "session_started"
	TypeSessionPaused       = "session_paused"
	TypeSessionResumed      = "session_resumed"
	TypeSessionEnded        = "session_ended"
	TypeEmergencyUnlock     = "emergency_unlock"
	TypeStartTimeEdited     = "start_time_edited"
	TypeGoalEdited          = "goal_edited"
	TypePauseOverride       = "pause_override"
	TypeIntegrityWarning    = "integrity_warning"
	TypeConflictDetected    = "conflict_detected"
	TypeConflictResolved    = "conflict_resolved"
	TypeOperationDropped    = "operation_dropped"
	TypeFailureAcknowledged = "failure_acknowledged"
)

type RecordInput struct {
	OwnerID string
	Type    string
	Message string
	Fields  map[string]string
}

type TailInput struct {
	OwnerID string
	Types   []string
	Since   time.Time
	Limit   int
}

type EventOutput struct {
	ID         string
	OwnerID    string
	Type       string
	Severity   string
	OccurredAt time.Time
	Message    string
	Fields     map[string]string
}
