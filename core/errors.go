package core

import "errors"

// Fatal conditions, as opposed to the recoverable DenyReason taxonomy.
// Callers should retry with backoff rather than reattempt authentication.
var (
	// ErrServiceUnavailable is returned when the Identity Proof Service
	// cannot be reached.
	ErrServiceUnavailable = errors.New("identity proof service unavailable")

	// ErrInternal is returned on registry/storage corruption or failure.
	ErrInternal = errors.New("internal gateway error")

	// ErrNotFound is returned by stores when a key is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidToken is returned when an access token fails parsing or
	// signature verification.
	ErrInvalidToken = errors.New("invalid token")
)
