package events

import "errors"

var (
	// ErrMalformed marks a body that can never be processed.
	ErrMalformed = errors.New("malformed event")
	// ErrUnknownType marks an event this service does not handle.
	ErrUnknownType = errors.New("unknown event type")
)
