package store

import "errors"

var (
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	// ErrStorageUnavailable wraps persistence failures that are not domain
	// outcomes. The core never retries them.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
