package models

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError represents a malformed event or request parameter.
// Surfaced to ingress callers as HTTP 400.
type ValidationError struct {
	message string
}

// NewValidationError creates a new validation error
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		message: fmt.Sprintf(format, args...),
	}
}

// Error returns the error message
func (e *ValidationError) Error() string {
	return e.message
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UnsupportedEventTypeError is returned by the classifier for event types
// outside the known taxonomy. Surfaced as HTTP 400.
type UnsupportedEventTypeError struct {
	EventType string
}

func (e *UnsupportedEventTypeError) Error() string {
	return fmt.Sprintf("unsupported event type: %s", e.EventType)
}

// IsUnsupportedEventType checks if an error is an unsupported-event-type error
func IsUnsupportedEventType(err error) bool {
	var ue *UnsupportedEventTypeError
	return errors.As(err, &ue)
}

// IgnoredEventError marks an event that is intentionally skipped, either by
// the classifier ignore list or by a resource-kind ignore predicate.
// Surfaced as HTTP 202; the rest of the batch is not processed.
type IgnoredEventError struct {
	Reason string
}

func (e *IgnoredEventError) Error() string {
	if e.Reason == "" {
		return "ignored event"
	}
	return fmt.Sprintf("ignored event: %s", e.Reason)
}

// IsIgnoredEvent checks if an error is an ignored-event error
func IsIgnoredEvent(err error) bool {
	var ie *IgnoredEventError
	return errors.As(err, &ie)
}

// EventTooOldError marks an event rejected by the per-resource watermark:
// a newer event has already been applied to the resource. Surfaced as
// HTTP 202; the rest of the batch is not processed.
type EventTooOldError struct {
	UUID      string
	Generated time.Time
	Watermark time.Time
}

func (e *EventTooOldError) Error() string {
	return fmt.Sprintf("event for resource %s generated at %s is older than watermark %s",
		e.UUID, e.Generated.Format(time.RFC3339Nano), e.Watermark.Format(time.RFC3339Nano))
}

// IsEventTooOld checks if an error is a stale-event rejection
func IsEventTooOld(err error) bool {
	var te *EventTooOldError
	return errors.As(err, &te)
}

// MultipleOpenPeriodsError indicates a corrupted resource: more than one
// period with a null ended_at. Never occurs under normal operation.
// Surfaced as HTTP 409.
type MultipleOpenPeriodsError struct {
	UUID string
}

func (e *MultipleOpenPeriodsError) Error() string {
	return fmt.Sprintf("resource %s has multiple open periods", e.UUID)
}

// IsMultipleOpenPeriods checks if an error is an open-period invariant violation
func IsMultipleOpenPeriods(err error) bool {
	var me *MultipleOpenPeriodsError
	return errors.As(err, &me)
}
