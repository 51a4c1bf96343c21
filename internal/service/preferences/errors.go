package preferences

import "errors"

// Sentinel errors for the preferences service layer.
var (
	ErrNotFound      = errors.New("email preferences not found")
	ErrAlreadyExists = errors.New("email preferences already exist")
	ErrInvalid       = errors.New("invalid email preferences")
	ErrUnknownClass  = errors.New("unknown email class")
)
