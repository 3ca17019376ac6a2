// Package history persists executed action batches with their before/after
// snapshots and drives the executed/undone status transitions.
package history

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no entry exists for the given id.
	ErrNotFound = errors.New("history entry not found")
	// ErrStatusConflict is returned when a status transition's expected
	// source status does not match the entry's current status.
	ErrStatusConflict = errors.New("history entry is not in the expected status")
)

// Store is the append-mostly history log. Entries are never deleted by the
// pipeline; status is the only field mutated after Append, and only through
// the compare-and-set Transition so concurrent undo/redo on one entry cannot
// both win.
type Store interface {
	// Append inserts a new entry with generated id and timestamp and the
	// executed status, and returns it.
	Append(ctx context.Context, entry NewEntry) (Entry, error)
	// List returns entries newest first.
	List(ctx context.Context, limit, offset int) ([]Entry, error)
	// Get returns the entry with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (Entry, error)
	// Transition atomically moves the entry from one status to another.
	// It returns ErrNotFound for an unknown id and ErrStatusConflict when
	// the entry is not currently in the from status.
	Transition(ctx context.Context, id string, from, to Status) error
	// Count returns the total number of entries.
	Count(ctx context.Context) (int, error)
}
