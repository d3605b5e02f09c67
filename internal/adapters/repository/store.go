// Package repository keeps live sessions.
package repository

import (
	"context"

	"github.com/okian/xsteal/internal/domain/session"
)

// Store provides access to live sessions.
type Store interface {
	// Create adds s. Returns ErrAlreadyExists when the ID is taken and
	// ErrCapacityExceeded when the store is full.
	Create(ctx context.Context, s *session.Session) error

	// Get returns the session with id or ErrNotFound.
	Get(ctx context.Context, id string) (*session.Session, error)

	// Delete removes the session with id or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Count returns the number of live sessions.
	Count(ctx context.Context) int
}
