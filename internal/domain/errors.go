package domain

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrSessionNotFound   = errors.New("verification session not found")
	ErrSessionMismatch   = errors.New("token not valid for this session")
	ErrNotSessionOwner   = errors.New("not authorized for this session")
	ErrSessionFinalized  = errors.New("session already finalized")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicateSession  = errors.New("session already exists")

	ErrInvalidAPIKey      = errors.New("invalid api key")
	ErrAPIClientNotFound  = errors.New("api client not found")
	ErrAPIClientInactive  = errors.New("api client is inactive")
	ErrDuplicateKeyPrefix = errors.New("api key prefix already registered")
)

// ValidationError carries a caller facing message for malformed input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

// IncompleteError is returned when a session is finalized before every
// required step was completed.
type IncompleteError struct {
	Missing StepSet
}

func (e *IncompleteError) Error() string {
	return "verification incomplete, missing: " + strings.Join(e.Missing.Strings(), ", ")
}
