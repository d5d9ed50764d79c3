package apperrors

import (
	"errors"
	"fmt"
)

// Kind groups errors by how callers are expected to react to them.
type Kind string

const (
	KindValidation Kind = "validation"
	KindPolicy     Kind = "policy"
	KindTransient  Kind = "transient"
	KindConflict   Kind = "conflict"
	KindIntegrity  Kind = "integrity"
	KindInternal   Kind = "internal"
)

// Error is a coded error. Sentinels are compared by identity, so wrap them
// with %w rather than copying.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInvalidInput = New(KindValidation, "invalid_input", "invalid input")
	ErrNotFound     = New(KindValidation, "not_found", "not found")
)

// KindOf reports the kind of the first coded error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Kind
	}
	return KindInternal
}

// CodeOf reports the code of the first coded error in err's chain.
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Invalid wraps ErrInvalidInput with a description.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ExitCode maps an error to the CLI process exit status.
func ExitCode(err error) int {
	switch KindOf(err) {
	case "":
		return 0
	case KindValidation:
		return 2
	case KindPolicy:
		return 3
	case KindConflict:
		return 4
	default:
		return 1
	}
}
