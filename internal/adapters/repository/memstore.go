package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/smartbiz/internal/domain/session"
	"github.com/okian/smartbiz/pkg/metrics"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store with a background idle sweeper.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session

	ttl                   time.Duration
	sweepInterval         time.Duration
	metricsUpdateInterval time.Duration
	now                   func() time.Time

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs a store and starts its sweeper and metrics goroutines.
// They stop when ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions:              make(map[string]*session.Session),
		ttl:                   2 * time.Hour,
		sweepInterval:         time.Minute,
		metricsUpdateInterval: 5 * time.Second,
		now:                   time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	s.every(ctx, s.sweepInterval, func() { s.Expire(ctx, s.now()) })
	s.every(ctx, s.metricsUpdateInterval, func() { s.updateMetrics(ctx) })

	return s
}

func (s *MemoryStore) every(ctx context.Context, interval time.Duration, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// Close stops the background goroutines.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Put implements Store.Put.
func (s *MemoryStore) Put(_ context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" {
		metrics.RecordErrorByComponent("repository", "invalid_session")
		return ErrInvalidSession
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.UpdateActiveSessions(n)
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || s.expired(sess, s.now()) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, ErrNotFound
	}
	return sess, nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	metrics.UpdateActiveSessions(n)
	return nil
}

// Expire implements Store.Expire.
func (s *MemoryStore) Expire(_ context.Context, now time.Time) int {
	if s.ttl == 0 {
		return 0
	}

	s.mu.Lock()
	var removed []*session.Session
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			removed = append(removed, sess)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range removed {
		sess.Clear()
	}
	if len(removed) > 0 {
		metrics.RecordSessionsExpired(len(removed))
		metrics.UpdateActiveSessions(n)
	}
	return len(removed)
}

// Count implements Store.Count.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ModelRuns implements Store.ModelRuns.
func (s *MemoryStore) ModelRuns(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, sess := range s.sessions {
		total += sess.RunCount()
	}
	return total
}

func (s *MemoryStore) expired(sess *session.Session, now time.Time) bool {
	return s.ttl > 0 && sess.IdleSince(now, s.ttl)
}

func (s *MemoryStore) updateMetrics(ctx context.Context) {
	metrics.UpdateActiveSessions(s.Count(ctx))
	metrics.UpdateModelRuns(s.ModelRuns(ctx))
}
