package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoaderUnavailable indicates the grant loader could not be
	// reached; callers keep their last known good state.
	ErrLoaderUnavailable = errors.New("loader unavailable")
)
