package api

import (
	"context"
	"time"

	"github.com/okian/smartbiz/internal/adapters/backend"
	"github.com/okian/smartbiz/internal/domain/forecast"
	"github.com/okian/smartbiz/internal/domain/insights"
	"github.com/okian/smartbiz/internal/domain/registry"
	"github.com/okian/smartbiz/internal/domain/session"
)

// SessionDependencies manage login state.
type SessionDependencies interface {
	Login(ctx context.Context, creds session.Credentials) (*session.Session, error)
	Logout(ctx context.Context, id string) error
	// Session resolves a live session and marks it active.
	Session(ctx context.Context, id string) (*session.Session, error)
}

// ForecastDependencies run forecasts and manage the model-run registry.
type ForecastDependencies interface {
	Forecast(ctx context.Context, s *session.Session, model string, up backend.Upload) (*ForecastResult, error)
	ClearRuns(ctx context.Context, s *session.Session)
}

// AnalyticsDependencies run the table-producing analyses.
type AnalyticsDependencies interface {
	Segment(ctx context.Context, s *session.Session, method string, up backend.Upload) (*SegmentResult, error)
	PredictChurn(ctx context.Context, s *session.Session, up backend.Upload) (*ChurnResult, error)
	DetectAnomalies(ctx context.Context, s *session.Session, method string, up backend.Upload) (*AnomalyResult, error)
}

// AssistantDependencies talk to the dataset assistant.
type AssistantDependencies interface {
	UploadDataset(ctx context.Context, s *session.Session, up backend.Upload) (*DatasetResult, error)
	Chat(ctx context.Context, s *session.Session, question string) (*ChatResult, error)
}

// RecommendDependencies produce product recommendations.
type RecommendDependencies interface {
	Recommend(ctx context.Context, s *session.Session, customerID string, up backend.Upload) (*RecommendResult, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionDependencies
	ForecastDependencies
	AnalyticsDependencies
	AssistantDependencies
	RecommendDependencies
}

// ForecastResult is the reconciled outcome of one forecast run.
type ForecastResult struct {
	Model    string              `json:"model"`
	Series   []forecast.Point    `json:"series"`
	Forecast []forecast.Point    `json:"forecast"`
	Dropped  int                 `json:"dropped"`
	Metrics  registry.Metrics    `json:"metrics"`
	Summary  string              `json:"summary,omitempty"`
	Insights *backend.BIInsights `json:"insights,omitempty"`
}

// SegmentResult is a customer segmentation.
type SegmentResult struct {
	Method    string                 `json:"method"`
	Rows      []insights.Row         `json:"rows"`
	Summaries map[string]string      `json:"summaries"`
	Plot      string                 `json:"plot,omitempty"`
	Clusters  []insights.ClusterSize `json:"clusters"`
}

// ChurnResult is a churn prediction.
type ChurnResult struct {
	Rows    []insights.Row      `json:"rows"`
	Summary insights.ChurnStats `json:"summary"`
}

// AnomalyResult is an anomaly detection.
type AnomalyResult struct {
	Method string                `json:"method"`
	Rows   []insights.Row        `json:"rows"`
	Plot   string                `json:"plot,omitempty"`
	Stats  insights.AnomalyStats `json:"stats"`
}

// DatasetResult acknowledges an assistant dataset upload.
type DatasetResult struct {
	Message string `json:"message"`
	Rows    int    `json:"rows"`
}

// ChatResult is the assistant's answer.
type ChatResult struct {
	Answer string `json:"answer"`
}

// RecommendResult lists products for one customer.
type RecommendResult struct {
	CustomerID      string   `json:"customer_id"`
	Recommendations []string `json:"recommendations"`
	Cluster         *int     `json:"cluster,omitempty"`
	ClusterLabel    string   `json:"cluster_label,omitempty"`
}

type loginResponse struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
}

type sessionResponse struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	Runs      int       `json:"runs"`
}

type runsResponse struct {
	Runs       []registry.ModelRun `json:"runs"`
	Comparison registry.Table      `json:"comparison"`
}

type chatRequest struct {
	Question string `json:"question"`
}
