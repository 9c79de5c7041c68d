package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that no active session exists for a user.
	ErrNotFound = errors.New("session not found")
	// ErrConfigurationMissing reports that a required prompt template is not active.
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// NotFoundError names the user whose session is missing.
func NotFoundError(userID string) error {
	return fmt.Errorf("%w: no active session for user %q", ErrNotFound, userID)
}

// ConfigurationMissingError names the template type that has no active row.
func ConfigurationMissingError(what string) error {
	return fmt.Errorf("%w: no active %s prompt template", ErrConfigurationMissing, what)
}

// Phase identifies which external collaborator failed.
type Phase string

const (
	PhaseSTT   Phase = "stt"
	PhaseModel Phase = "model"
	PhaseTTS   Phase = "tts"
)

// ProcessingError wraps a failure from transcription, the chat model or synthesis.
type ProcessingError struct {
	Phase Phase
	Err   error
}

func NewProcessingError(phase Phase, err error) *ProcessingError {
	return &ProcessingError{Phase: phase, Err: err}
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s processing failed: %v", e.Phase, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ValidationError rejects input before any external call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ErrorKind is the coarse classification used by transports and metrics.
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindNotFound             ErrorKind = "not_found"
	KindConfigurationMissing ErrorKind = "configuration_missing"
	KindUpstream             ErrorKind = "upstream"
	KindValidation           ErrorKind = "validation"
	KindInternal             ErrorKind = "internal"
)

// KindOf classifies err. Validation wins over upstream so a rejected upload
// is reported as a client error even when wrapped by a handler.
func KindOf(err error) ErrorKind {
	var pe *ProcessingError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfigurationMissing):
		return KindConfigurationMissing
	case errors.As(err, &pe):
		return KindUpstream
	default:
		return KindInternal
	}
}

// PhaseOf returns the failing phase of an upstream error.
func PhaseOf(err error) (Phase, bool) {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Phase, true
	}
	return "", false
}
