// Package recordstore persists opaque per-user records.
//
// The state repository owns the record format; stores only move bytes keyed by user id.
package recordstore

import (
	"context"

	"github.com/myrjola/lifeplan/internal/errors"
)

var (
	// ErrNotFound is returned by Get when no record exists for the user.
	ErrNotFound = errors.NewSentinel("record not found")
	// ErrInvalidKey is returned for user ids the store cannot use as a key.
	ErrInvalidKey = errors.NewSentinel("invalid record key")
)

type Store interface {
	// Get returns the record of userID or ErrNotFound.
	Get(ctx context.Context, userID string) ([]byte, error)
	// Put replaces the record of userID. Readers observe either the old or the new record, never a mix.
	Put(ctx context.Context, userID string, record []byte) error
	// Delete removes the record of userID. Deleting a missing record is not an error.
	Delete(ctx context.Context, userID string) error
}

// Locker is implemented by stores that can serialize access to a record across processes.
type Locker interface {
	// Lock blocks until the lock of userID is held or ctx is done. The returned function releases it.
	Lock(ctx context.Context, userID string) (func() error, error)
}
