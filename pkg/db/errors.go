package db

import "errors"

var (
	// ErrNotFound is returned when a queried entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an optimistic-concurrency write loses the
	// race: the row changed since it was read. Callers should re-fetch and
	// surface the conflict rather than retry blindly.
	ErrConflict = errors.New("conflict: row was modified concurrently")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint (duplicate pending request, token collision, shift per
	// date/slot pair, volunteer email).
	ErrDuplicate = errors.New("duplicate: unique constraint violated")
)
