package domain

import (
	"errors"
	"fmt"
)

// ErrMalformedEvent is the sentinel all malformed-event errors unwrap to.
var ErrMalformedEvent = errors.New("malformed event")

// MalformedEventError reports a decoded record that failed validation for its
// declared kind. Field names the offending record field.
type MalformedEventError struct {
	Kind  EventKind
	Field string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed %s event: invalid field %q", e.Kind, e.Field)
}

func (e *MalformedEventError) Unwrap() error {
	return ErrMalformedEvent
}
