package domain

import "errors"

var (
	// ErrSourceUnavailable marks a tier that could not answer (network, timeout,
	// undecodable payload). Callers fall through to the next tier.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrRecordMalformed marks a raw record that cannot be normalized; it is dropped.
	ErrRecordMalformed    = errors.New("record malformed")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidDates       = errors.New("check-out must be after check-in")
)
