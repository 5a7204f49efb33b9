// Package repository keeps the sessions of logged-in dashboard users.
package repository

import (
	"context"
	"time"

	"github.com/okian/smartbiz/internal/domain/session"
)

// Store provides access to live sessions.
type Store interface {
	// Put stores s under its id, replacing any session with the same id.
	Put(ctx context.Context, s *session.Session) error

	// Get returns the session with id.
	// Returns ErrNotFound if the session is unknown or expired.
	Get(ctx context.Context, id string) (*session.Session, error)

	// Delete removes the session with id.
	// Returns ErrNotFound if the session is unknown.
	Delete(ctx context.Context, id string) error

	// Expire removes sessions idle for the store's TTL at now and
	// returns how many were removed.
	Expire(ctx context.Context, now time.Time) int

	// Count returns the number of live sessions.
	Count(ctx context.Context) int

	// ModelRuns returns the number of model runs held across all sessions.
	ModelRuns(ctx context.Context) int

	// Close releases the store's background resources. It is safe to call twice.
	Close() error
}
