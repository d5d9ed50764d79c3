package domain

import apperrors "tether/internal/platform/errors"

var (
	ErrIncompleteResolution = apperrors.New(apperrors.KindValidation, "incomplete_resolution", "every open conflict needs exactly one choice")
	ErrInvalidChoice        = apperrors.New(apperrors.KindValidation, "invalid_choice", "choice must be local or remote")
	ErrConflictNotFound     = apperrors.New(apperrors.KindValidation, "conflict_not_found", "conflict not found")
	ErrFailureNotFound      = apperrors.New(apperrors.KindValidation, "failure_not_found", "failure not found")

	// ErrStale is returned by the remote store when a write's base version no
	// longer matches the stored document.
	ErrStale             = apperrors.New(apperrors.KindConflict, "stale_write", "remote document changed since it was read")
	ErrRemoteNotFound    = apperrors.New(apperrors.KindValidation, "remote_not_found", "remote document not found")
	ErrRemoteUnavailable = apperrors.New(apperrors.KindTransient, "remote_unavailable", "remote store unavailable")
	ErrOffline           = apperrors.New(apperrors.KindTransient, "offline", "remote store is not reachable")
	ErrRemoteUnknown     = apperrors.New(apperrors.KindTransient, "conflict_remote_unknown", "remote version not fetched yet; sync while online before resolving")
)
