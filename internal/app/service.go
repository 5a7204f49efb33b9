// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/smartbiz/internal/adapters/backend"
	"github.com/okian/smartbiz/internal/adapters/http/api"
	"github.com/okian/smartbiz/internal/adapters/repository"
	"github.com/okian/smartbiz/internal/domain/forecast"
	"github.com/okian/smartbiz/internal/domain/inflight"
	"github.com/okian/smartbiz/internal/domain/insights"
	"github.com/okian/smartbiz/internal/domain/registry"
	"github.com/okian/smartbiz/internal/domain/session"
	"github.com/okian/smartbiz/pkg/logger"
	"github.com/okian/smartbiz/pkg/metrics"
)

// Sentinel errors for the service lifecycle.
var (
	ErrNotStarted = errors.New("service not started")
	ErrNoBackend  = errors.New("analytics backend not configured")
)

const noAnswer = "No response from AI."

// Backend performs the analytics the dashboard offers.
type Backend interface {
	Forecast(ctx context.Context, model string, up backend.Upload) (*backend.ForecastResponse, error)
	Segment(ctx context.Context, method string, up backend.Upload) (*backend.SegmentResponse, error)
	PredictChurn(ctx context.Context, up backend.Upload) (*backend.ChurnResponse, error)
	DetectAnomalies(ctx context.Context, method string, up backend.Upload) (*backend.AnomalyResponse, error)
	UploadDataset(ctx context.Context, up backend.Upload) (*backend.DatasetResponse, error)
	Chat(ctx context.Context, question string) (*backend.ChatResponse, error)
	Recommend(ctx context.Context, customerID string, up backend.Upload) (*backend.RecommendResponse, error)
}

// Service implements the API dependencies for the dashboard gateway.
type Service struct {
	mu sync.RWMutex

	// Core components
	backend  Backend
	sessions repository.Store
	guard    inflight.Guard

	// ownStore is set when Start created sessions and Stop must discard it.
	ownStore bool

	// Configuration
	sessionTTL    time.Duration
	sweepInterval time.Duration
	inflightLimit int
	now           func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBackend sets the analytics backend client.
func WithBackend(b Backend) Option {
	return func(s *Service) {
		if b != nil {
			s.backend = b
		}
	}
}

// WithStore sets the session store. Without it Start creates a MemoryStore
// using the configured TTL, sweep interval and clock.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.sessions = store
		}
	}
}

// WithSessionTTL sets how long an idle session is kept. Zero keeps sessions
// until logout.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithSweepInterval sets how often idle sessions are swept.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

// WithInflightLimit caps the number of requests in flight across all sessions.
func WithInflightLimit(n int) Option {
	return func(s *Service) {
		s.inflightLimit = n
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("service")
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		sessionTTL:    2 * time.Hour,
		sweepInterval: time.Minute,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the session store and the in-flight guard.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.backend == nil {
		return ErrNoBackend
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.sessions == nil {
		s.sessions = repository.NewMemoryStore(ctx,
			repository.WithTTL(s.sessionTTL),
			repository.WithSweepInterval(s.sweepInterval),
			repository.WithClock(s.now),
		)
		s.ownStore = true
	}
	s.guard = inflight.NewInMemoryGuard(inflight.WithMaxSize(s.inflightLimit))

	s.started = true
	s.logger.Info(ctx, "dashboard service started",
		logger.Duration("sessionTTL", s.sessionTTL),
		logger.Duration("sweepInterval", s.sweepInterval),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.sessions.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing session store failed", logger.Error(err))
	}
	if s.ownStore {
		s.sessions = nil
		s.ownStore = false
	}
	s.started = false
	s.logger.Info(context.Background(), "dashboard service stopped")
}

func (s *Service) store() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.sessions, nil
}

// Login starts a session for valid credentials.
func (s *Service) Login(ctx context.Context, creds session.Credentials) (*session.Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	sess := session.New(creds.Username, s.now())
	if err := store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	s.logger.Info(ctx, "session started", logger.String("user", sess.Username))
	return sess, nil
}

// Logout clears the session's runs and forgets it.
func (s *Service) Logout(ctx context.Context, id string) error {
	store, err := s.store()
	if err != nil {
		return err
	}
	sess, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.Clear()
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "session ended", logger.String("user", sess.Username))
	return nil
}

// Session resolves a live session and marks it active.
func (s *Service) Session(ctx context.Context, id string) (*session.Session, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	sess, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Touch(s.now())
	return sess, nil
}

// ClearRuns empties the session's model-run registry.
func (s *Service) ClearRuns(ctx context.Context, sess *session.Session) {
	sess.Clear()
	s.logger.Debug(ctx, "model runs cleared", logger.String("user", sess.Username))
}

// acquire claims the control for the session. The returned func releases it.
func (s *Service) acquire(ctx context.Context, sess *session.Session, control string) (func(), error) {
	key := inflight.Key(sess.ID, control)
	if !s.guard.Acquire(ctx, key) {
		metrics.RecordInflightRejection(control)
		s.logger.Debug(ctx, "request already in flight", logger.String("control", control))
		return nil, inflight.ErrInProgress
	}
	metrics.UpdateInflightRequests(s.guard.Size())
	return func() {
		s.guard.Release(ctx, key)
		metrics.UpdateInflightRequests(s.guard.Size())
	}, nil
}

// Forecast validates the upload, asks the backend for a forecast and merges
// it with the uploaded history. The forecast points are stored as the
// session's run for model.
func (s *Service) Forecast(ctx context.Context, sess *session.Session, model string, up backend.Upload) (*api.ForecastResult, error) {
	release, err := s.acquire(ctx, sess, inflight.ControlForecast)
	if err != nil {
		return nil, err
	}
	defer release()

	hist, err := forecast.ParseHistorical(string(up.Content))
	if err != nil {
		if errors.Is(err, forecast.ErrMissingColumn) {
			metrics.RecordMissingColumn()
		}
		s.logger.Warn(ctx, "rejected forecast upload", logger.String("file", up.Filename), logger.Error(err))
		return nil, err
	}
	metrics.RecordHistoricalRecords(len(hist), forecast.CountNaN(hist))

	res, err := s.backend.Forecast(ctx, model, up)
	if err != nil {
		s.logger.Error(ctx, "forecast failed", logger.String("model", model), logger.Error(err))
		return nil, err
	}

	preds := make([]forecast.Prediction, len(res.Forecast))
	for i, p := range res.Forecast {
		preds[i] = forecast.Prediction{Period: p.Period.Text, Value: p.Value, Numeric: p.Period.Numeric}
	}
	series := forecast.Reconcile(hist, forecast.Normalize(preds))
	tail := forecast.ForecastPoints(series)
	dropped := len(preds) - len(tail)
	metrics.RecordForecastFilter(len(tail), dropped)

	runMetrics := registry.Metrics{MAE: res.Metrics.MAE, MSE: res.Metrics.MSE, RMSE: res.Metrics.RMSE}
	sess.RecordRun(model, tail, runMetrics)

	s.logger.Info(ctx, "forecast reconciled",
		logger.String("model", model),
		logger.Int("historical", len(hist)),
		logger.Int("forecast", len(tail)),
		logger.Int("dropped", dropped),
	)

	return &api.ForecastResult{
		Model:    model,
		Series:   series,
		Forecast: tail,
		Dropped:  dropped,
		Metrics:  runMetrics,
		Summary:  res.Summary,
		Insights: res.BIInsights,
	}, nil
}

// Segment clusters the uploaded customers.
func (s *Service) Segment(ctx context.Context, sess *session.Session, method string, up backend.Upload) (*api.SegmentResult, error) {
	release, err := s.acquire(ctx, sess, inflight.ControlSegment)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.backend.Segment(ctx, method, up)
	if err != nil {
		s.logger.Error(ctx, "segmentation failed", logger.String("method", method), logger.Error(err))
		return nil, err
	}
	summaries := res.Summaries
	if summaries == nil {
		summaries = map[string]string{}
	}
	return &api.SegmentResult{
		Method:    method,
		Rows:      rows(res.Data),
		Summaries: summaries,
		Plot:      res.Plot,
		Clusters:  insights.ClusterSizes(res.Data, summaries),
	}, nil
}

// PredictChurn scores churn for the uploaded customers.
func (s *Service) PredictChurn(ctx context.Context, sess *session.Session, up backend.Upload) (*api.ChurnResult, error) {
	release, err := s.acquire(ctx, sess, inflight.ControlChurn)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.backend.PredictChurn(ctx, up)
	if err != nil {
		s.logger.Error(ctx, "churn prediction failed", logger.Error(err))
		return nil, err
	}
	return &api.ChurnResult{Rows: rows(res.Data), Summary: insights.Churn(res.Data)}, nil
}

// DetectAnomalies flags anomalous rows in the upload.
func (s *Service) DetectAnomalies(ctx context.Context, sess *session.Session, method string, up backend.Upload) (*api.AnomalyResult, error) {
	release, err := s.acquire(ctx, sess, inflight.ControlAnomaly)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.backend.DetectAnomalies(ctx, method, up)
	if err != nil {
		s.logger.Error(ctx, "anomaly detection failed", logger.String("method", method), logger.Error(err))
		return nil, err
	}
	return &api.AnomalyResult{
		Method: method,
		Rows:   rows(res.Data),
		Plot:   res.Plot,
		Stats:  insights.Anomalies(res.Data),
	}, nil
}

// UploadDataset hands the dataset to the assistant.
func (s *Service) UploadDataset(ctx context.Context, sess *session.Session, up backend.Upload) (*api.DatasetResult, error) {
	release, err := s.acquire(ctx, sess, inflight.ControlDataset)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.backend.UploadDataset(ctx, up)
	if err != nil {
		s.logger.Error(ctx, "dataset upload failed", logger.Error(err))
		return nil, err
	}
	return &api.DatasetResult{Message: res.Message, Rows: res.Rows}, nil
}

// Chat asks the assistant a question.
func (s *Service) Chat(ctx context.Context, sess *session.Session, question string) (*api.ChatResult, error) {
	release, err := s.acquire(ctx, sess, inflight.ControlChat)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.backend.Chat(ctx, question)
	if err != nil {
		s.logger.Error(ctx, "chat failed", logger.Error(err))
		return nil, err
	}
	answer := res.Answer
	if answer == "" {
		answer = noAnswer
	}
	return &api.ChatResult{Answer: answer}, nil
}

// Recommend lists products for a customer of the uploaded history.
func (s *Service) Recommend(ctx context.Context, sess *session.Session, customerID string, up backend.Upload) (*api.RecommendResult, error) {
	release, err := s.acquire(ctx, sess, inflight.ControlRecommend)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.backend.Recommend(ctx, customerID, up)
	if err != nil {
		s.logger.Error(ctx, "recommendation failed", logger.String("customer", customerID), logger.Error(err))
		return nil, err
	}
	out := &api.RecommendResult{
		CustomerID:      customerID,
		Recommendations: res.Recommendations,
		Cluster:         res.Cluster,
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	if res.Cluster != nil {
		out.ClusterLabel = insights.ClusterLabel(*res.Cluster)
	}
	return out, nil
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":    s.started,
		"sessionTTL": s.sessionTTL.String(),
	}
	if s.started {
		active := s.sessions.Count(ctx)
		runs := s.sessions.ModelRuns(ctx)
		stats["activeSessions"] = active
		stats["modelRuns"] = runs
		stats["inflight"] = s.guard.Size()

		metrics.UpdateActiveSessions(active)
		metrics.UpdateModelRuns(runs)
	}
	return stats
}

func rows(data []backend.Row) []insights.Row {
	if data == nil {
		return []insights.Row{}
	}
	return data
}
