package dao

import "errors"

// Store sentinel errors; the orchestrator maps them to types.NotFoundError.
var (
	// ErrNotFound is returned by Load and Delete for an unknown id
	ErrNotFound = errors.New("dao: not found")
	// ErrInvalidID is returned for an empty id
	ErrInvalidID = errors.New("dao: invalid id")
	// ErrNilEntity is returned when Save receives nil
	ErrNilEntity = errors.New("dao: nil entity")
	// ErrConflict is returned by Save when the stored record changed since it was loaded
	ErrConflict = errors.New("dao: version conflict")
)
