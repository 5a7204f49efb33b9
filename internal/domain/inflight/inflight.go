// Package inflight tracks which dashboard controls have an outstanding
// backend request so a second submission can be refused.
package inflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrInProgress reports that the control already has a request outstanding.
var ErrInProgress = errors.New("a request for this control is already in progress")

// Controls that can have a request in flight.
const (
	ControlForecast  = "forecast"
	ControlSegment   = "segment"
	ControlChurn     = "churn"
	ControlAnomaly   = "anomaly"
	ControlDataset   = "dataset"
	ControlChat      = "chat"
	ControlRecommend = "recommend"
)

// Guard admits at most one holder per key.
type Guard interface {
	// Acquire claims key. It returns false when key is already held.
	Acquire(ctx context.Context, key string) bool

	// Release frees key. Releasing a key that is not held is a no-op.
	Release(ctx context.Context, key string)

	Size() int64
}

// Key joins a session id and a control name.
func Key(sessionID, control string) string {
	return sessionID + "/" + control
}

type inMemoryGuard struct {
	mu      sync.Mutex
	held    map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewInMemoryGuard creates a guard backed by a map.
func NewInMemoryGuard(opts ...Option) Guard {
	g := &inMemoryGuard{}
	for _, opt := range opts {
		opt(g)
	}
	g.held = make(map[string]struct{})
	return g
}

func (g *inMemoryGuard) Acquire(_ context.Context, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[key]; busy {
		return false
	}
	if g.maxSize > 0 && len(g.held) >= g.maxSize {
		return false
	}
	g.held[key] = struct{}{}
	g.size.Add(1)
	return true
}

func (g *inMemoryGuard) Release(_ context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[key]; busy {
		delete(g.held, key)
		g.size.Add(-1)
	}
}

func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}
