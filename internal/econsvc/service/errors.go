package service

import (
	"errors"
	"fmt"
)

// Lookup failures. Surfaced to the caller, never mutate state.
var (
	ErrGameNotFound   = errors.New("game not found")
	ErrPlayerNotFound = errors.New("player not found")
)

// ValidationError is a recoverable rejection of a caller's request: invalid
// or duplicate move, out-of-range investment, closed round, full game.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConsistencyError marks a violated invariant: a double settlement or a
// duplicate move that slipped past the serialization. These should be
// unreachable; when one occurs the operation fails loudly instead of
// silently overwriting earnings.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string { return "consistency violation: " + e.Reason }

// IsConsistency reports whether err is (or wraps) a ConsistencyError.
func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
