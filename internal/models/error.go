package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login errors
	ErrMissingInput       = errors.New("identifier or secret missing")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrStoreUnavailable marks a fault in the principal store or the counter store.
	ErrStoreUnavailable = errors.New("store unavailable")
)
