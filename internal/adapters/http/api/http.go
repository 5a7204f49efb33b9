// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/smartbiz/internal/adapters/backend"
	"github.com/okian/smartbiz/internal/domain/forecast"
	"github.com/okian/smartbiz/internal/domain/inflight"
)

const (
	defaultMaxUploadBytes = 5 << 20
	defaultSessionCookie  = "sbiq_session"

	sessionHeader = "X-Session-ID"
)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	sessionHandler   *SessionHandler
	forecastHandler  *ForecastHandler
	analyticsHandler *AnalyticsHandler
	assistantHandler *AssistantHandler
	recommendHandler *RecommendHandler

	sessions SessionDependencies
	cookie   string
}

// Option applies a configuration option to the Server.
type Option func(*serverConfig)

type serverConfig struct {
	maxUploadBytes int64
	cookie         string
}

// WithMaxUploadBytes limits the size of uploaded CSV files.
func WithMaxUploadBytes(n int64) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxUploadBytes = n
		}
	}
}

// WithSessionCookie sets the name of the session cookie.
func WithSessionCookie(name string) Option {
	return func(c *serverConfig) {
		if name != "" {
			c.cookie = name
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{maxUploadBytes: defaultMaxUploadBytes, cookie: defaultSessionCookie}
	for _, opt := range opts {
		opt(&cfg)
	}
	uploads := uploadReader{maxBytes: cfg.maxUploadBytes}

	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		sessionHandler:   NewSessionHandler(deps, cfg.cookie),
		forecastHandler:  NewForecastHandler(deps, uploads),
		analyticsHandler: NewAnalyticsHandler(deps, uploads),
		assistantHandler: NewAssistantHandler(deps, uploads),
		recommendHandler: NewRecommendHandler(deps, uploads),
		sessions:         deps,
		cookie:           cfg.cookie,
	}
}

// Register attaches all HTTP routes to router.
func (s *Server) Register(_ context.Context, router *mux.Router) {
	router.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	router.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)
	router.HandleFunc("/session/login", MetricsMiddleware(s.sessionHandler.HandleLogin, "session_login")).Methods(http.MethodPost)

	authed := router.NewRoute().Subrouter()
	authed.Use(s.requireSession)

	authed.HandleFunc("/session", MetricsMiddleware(s.sessionHandler.HandleGetSession, "session")).Methods(http.MethodGet)
	authed.HandleFunc("/session/logout", MetricsMiddleware(s.sessionHandler.HandleLogout, "session_logout")).Methods(http.MethodPost)

	authed.HandleFunc("/forecast", MetricsMiddleware(s.forecastHandler.HandleForecast, "forecast")).Methods(http.MethodPost)
	authed.HandleFunc("/forecast/runs", MetricsMiddleware(s.forecastHandler.HandleListRuns, "forecast_runs")).Methods(http.MethodGet)
	authed.HandleFunc("/forecast/runs", MetricsMiddleware(s.forecastHandler.HandleClearRuns, "forecast_runs")).Methods(http.MethodDelete)
	authed.HandleFunc("/forecast/runs/{model}/export", MetricsMiddleware(s.forecastHandler.HandleExport, "forecast_export")).Methods(http.MethodGet)

	authed.HandleFunc("/segment", MetricsMiddleware(s.analyticsHandler.HandleSegment, "segment")).Methods(http.MethodPost)
	authed.HandleFunc("/churn", MetricsMiddleware(s.analyticsHandler.HandleChurn, "churn")).Methods(http.MethodPost)
	authed.HandleFunc("/anomalies", MetricsMiddleware(s.analyticsHandler.HandleAnomalies, "anomalies")).Methods(http.MethodPost)

	authed.HandleFunc("/assistant/dataset", MetricsMiddleware(s.assistantHandler.HandleDataset, "assistant_dataset")).Methods(http.MethodPost)
	authed.HandleFunc("/assistant/chat", MetricsMiddleware(s.assistantHandler.HandleChat, "assistant_chat")).Methods(http.MethodPost)

	authed.HandleFunc("/recommend", MetricsMiddleware(s.recommendHandler.HandleRecommend, "recommend")).Methods(http.MethodPost)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a service error to a response. fallback is shown when a
// backend failure carries no message of its own.
func writeFailure(w http.ResponseWriter, op, fallback string, err error) {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, forecast.ErrEmptyCSV):
		writeError(w, http.StatusBadRequest, "validation", WrapKind(op, ErrValidation, err))
	case errors.Is(err, inflight.ErrInProgress):
		writeError(w, http.StatusConflict, "in_progress", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, forecast.ErrMissingColumn):
		writeError(w, http.StatusUnprocessableEntity, "missing_column", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, backend.ErrBackend):
		msg := backend.MessageOr(err, fallback)
		writeError(w, http.StatusBadGateway, "backend_error", WrapKind(op, ErrUpstream, errors.New(msg)))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", NewKind(op, ErrInternal))
	}
}
