// Package store persists user preferences and activity in a remote
// JSON key-value tree. The append-only activity log is the source of
// truth; derived aggregates are rebuilt from it with transactional
// compare-and-swap updates.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a path holds no value.
var ErrNotFound = errors.New("store: not found")

var errInvalidPath = errors.New("empty path")

// StoreError wraps a failed tree operation with its path.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Client is the JSON tree the user store runs against. Paths are
// slash-separated without leading or trailing slashes.
type Client interface {
	// Get unmarshals the value at path into dest. Absent paths return
	// ErrNotFound.
	Get(ctx context.Context, path string, dest any) error

	// GetLast unmarshals the last n children at path, ordered by key,
	// into dest (a map type). An absent path leaves dest untouched.
	GetLast(ctx context.Context, path string, n int, dest any) error

	// Set replaces the value at path.
	Set(ctx context.Context, path string, value any) error

	// Update merges children into the object at path, leaving other
	// children alone.
	Update(ctx context.Context, path string, children map[string]any) error

	// Push stores value under a new chronologically ordered key and
	// returns that key.
	Push(ctx context.Context, path string, value any) (string, error)

	// Transact applies fn to the value at path under compare-and-swap
	// semantics. fn receives the current raw value, nil when absent,
	// and may run multiple times on contention.
	Transact(ctx context.Context, path string, fn func(current json.RawMessage) (any, error)) error

	// Delete removes the value at path.
	Delete(ctx context.Context, path string) error
}
