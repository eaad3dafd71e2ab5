// Package sentinel holds the storage-level errors that services translate into
// domain codes. Stores wrap them with context using %w and never return domain
// errors themselves.
package sentinel

import "errors"

var (
	// ErrNotFound means no record satisfied the lookup. For conditional reads and
	// writes this covers both a missing record and one whose precondition failed.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a write raced with another writer and lost.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput means the caller handed the store something it must never
	// persist, such as a non-terminal decision or a career on a rejection.
	ErrInvalidInput = errors.New("invalid input")
)
