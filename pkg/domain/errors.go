package domain

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("document not found")

	// ErrVersionConflict is returned by optimistic-concurrency saves when
	// the stored document's version no longer matches the caller's copy.
	ErrVersionConflict = errors.New("document version conflict")

	// ErrDuplicateKey is returned when an insert or replace violates a
	// unique index.
	ErrDuplicateKey = errors.New("duplicate key")
)
