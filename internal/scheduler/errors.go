package scheduler

import "errors"

// ErrUnknownTrigger is returned when a job name is not registered.
var ErrUnknownTrigger = errors.New("unknown scheduler trigger")
