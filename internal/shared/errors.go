package shared

import "errors"

var (
	// ErrNotFound indicates a resource missing or not owned by the caller.
	// Both cases surface identically so ids cannot be enumerated.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a validation failure before any write.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicate indicates a unique-key conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrUnauthorized indicates a missing or expired session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
