package activity

import (
	"errors"
	"strings"
)

var (
	// ErrStoreUnavailable is returned when the event store cannot be reached or timed out.
	// Callers may retry after backing off.
	ErrStoreUnavailable = errors.New("activity: store unavailable")
	// ErrInvalidWindow is returned when a window end is not after its start.
	ErrInvalidWindow = errors.New("activity: window end must be after start")
	// ErrInvalidEvent is returned by stores when a record misses required fields.
	ErrInvalidEvent = errors.New("activity: invalid event")
	// ErrInvalidEntity is returned by stores when an entity misses required fields.
	ErrInvalidEntity = errors.New("activity: invalid entity")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationError aggregates field level problems of one input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string, value any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message, Value: value})
}

// OrNil returns nil when no field errors were collected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsRetryable reports whether err should be retried by the caller.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
