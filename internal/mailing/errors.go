package mailing

import "errors"

var (
	// ErrUnknownTemplate is returned for a template name outside the fixed set.
	ErrUnknownTemplate = errors.New("unknown email template")

	// ErrNotConfigured is returned by a transport that lacks credentials.
	ErrNotConfigured = errors.New("email transport not configured")
)
