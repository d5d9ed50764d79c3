package domain

import (
	"fmt"
	"time"

	apperrors "tether/internal/platform/errors"
)

var (
	ErrAlreadyActive    = apperrors.New(apperrors.KindValidation, "already_active", "an open session already exists")
	ErrNotActive        = apperrors.New(apperrors.KindValidation, "not_active", "session is not active")
	ErrNotPaused        = apperrors.New(apperrors.KindValidation, "not_paused", "session is not paused")
	ErrNotFound         = apperrors.New(apperrors.KindValidation, "session_not_found", "session not found")
	ErrAlreadyEnded     = apperrors.New(apperrors.KindValidation, "already_ended", "session already ended")
	ErrInvalidStartTime = apperrors.New(apperrors.KindValidation, "invalid_start_time", "invalid start time")
	ErrInvalidEndTime   = apperrors.New(apperrors.KindValidation, "invalid_end_time", "invalid end time")
	ErrInvalidGoal      = apperrors.New(apperrors.KindValidation, "invalid_goal", "goal duration must be positive")

	ErrCooldownActive            = apperrors.New(apperrors.KindPolicy, "cooldown_active", "pause cooldown active")
	ErrHardcoreLocked            = apperrors.New(apperrors.KindPolicy, "hardcore_locked", "hardcore mode prevents ending before the goal")
	ErrReasonRequired            = apperrors.New(apperrors.KindPolicy, "reason_required", "an override requires a reason")
	ErrOverrideNotPermitted      = apperrors.New(apperrors.KindPolicy, "override_not_permitted", "only the keyholder can override a cooldown")
	ErrInvalidCredential         = apperrors.New(apperrors.KindPolicy, "invalid_credential", "invalid emergency credential")
	ErrCredentialNotSet          = apperrors.New(apperrors.KindPolicy, "credential_not_set", "no emergency credential configured")
	ErrKeyholderApprovalRequired = apperrors.New(apperrors.KindPolicy, "keyholder_approval_required", "ending this session requires keyholder approval")

	ErrMalformedSession = apperrors.New(apperrors.KindIntegrity, "malformed_session", "session document violates its invariants")
)

// CooldownError carries the time left before another pause is allowed.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %ds remaining", ErrCooldownActive.Message, e.RemainingSeconds())
}

// RemainingSeconds rounds up so a positive remainder never reads as zero.
func (e *CooldownError) RemainingSeconds() int64 {
	return int64((e.Remaining + time.Second - 1) / time.Second)
}

func (e *CooldownError) Unwrap() error {
	return ErrCooldownActive
}
