// Package session holds the per-user context that replaces the page-global
// state of a browser dashboard: identity, model-run registry and activity.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/smartbiz/internal/domain/forecast"
	"github.com/okian/smartbiz/internal/domain/registry"
)

// Sentinel errors for session handling.
var (
	ErrInvalidCredentials = errors.New("username and password are required")
)

// Credentials are the login form values.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate requires both fields to be non-blank.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" || strings.TrimSpace(c.Password) == "" {
		return ErrInvalidCredentials
	}
	return nil
}

// Session is one logged-in dashboard user.
type Session struct {
	ID        string
	Username  string
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
	runs     *registry.Registry
}

// New starts a session for username.
func New(username string, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Username:  strings.TrimSpace(username),
		CreatedAt: now,
		lastSeen:  now,
		runs:      registry.New(),
	}
}

// Touch marks the session active at now.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastSeen) {
		s.lastSeen = now
	}
}

// LastSeen is the time of the last request made with this session.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// IdleSince reports whether the session has been inactive for at least ttl at now.
func (s *Session) IdleSince(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastSeen()) >= ttl
}

// RecordRun stores the forecast points of model, replacing an earlier run.
func (s *Session) RecordRun(model string, points []forecast.Point, metrics registry.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs.Record(model, points, metrics)
}

// Run returns the stored run of model.
func (s *Session) Run(model string) (registry.ModelRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs.Run(model)
}

// Runs returns every stored run in comparison order.
func (s *Session) Runs() []registry.ModelRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs.Runs()
}

// RunCount is the number of models with a stored run.
func (s *Session) RunCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs.Len()
}

// Comparison renders the model comparison table.
func (s *Session) Comparison() registry.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs.Table()
}

// Clear drops every stored run.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs.Clear()
}
