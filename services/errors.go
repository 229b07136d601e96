package services

import "errors"

// Engine failure taxonomy. Every engine operation either returns the
// fully updated aggregate or one of these (possibly wrapped); a failed
// operation leaves the in-memory aggregate unmutated.
var (
	ErrInvalidMove       = errors.New("invalid move")
	ErrUnauthorizedMove  = errors.New("unauthorized move")
	ErrInvalidCard       = errors.New("invalid card")
	ErrIllegalState      = errors.New("illegal state transition")
	ErrResourceExhausted = errors.New("resource limit exceeded")
	ErrNotFound          = errors.New("not found")
	ErrStoreFailure      = errors.New("store failure")
)
