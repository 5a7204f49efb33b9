package api

import (
	"net/http"
)

const (
	segmentFallback = "Something went wrong."
	churnFallback   = "Prediction failed."
	anomalyFallback = "Detection failed. Please check your CSV format."
)

// AnalyticsHandler handles segmentation, churn and anomaly requests.
type AnalyticsHandler struct {
	deps    AnalyticsDependencies
	uploads uploadReader
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(deps AnalyticsDependencies, uploads uploadReader) *AnalyticsHandler {
	return &AnalyticsHandler{deps: deps, uploads: uploads}
}

// HandleSegment handles POST /segment?method= requests.
func (h *AnalyticsHandler) HandleSegment(w http.ResponseWriter, r *http.Request) {
	const op = "api.segment"
	sess, ok := SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	method, err := choose(SegmentMethods, "method", r.URL.Query().Get("method"))
	if err != nil {
		writeFailure(w, op, segmentFallback, err)
		return
	}
	up, err := h.uploads.read(w, r)
	if err != nil {
		writeFailure(w, op, segmentFallback, err)
		return
	}
	res, err := h.deps.Segment(r.Context(), sess, method, up)
	if err != nil {
		writeFailure(w, op, segmentFallback, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleChurn handles POST /churn requests.
func (h *AnalyticsHandler) HandleChurn(w http.ResponseWriter, r *http.Request) {
	const op = "api.churn"
	sess, ok := SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	up, err := h.uploads.read(w, r)
	if err != nil {
		writeFailure(w, op, churnFallback, err)
		return
	}
	res, err := h.deps.PredictChurn(r.Context(), sess, up)
	if err != nil {
		writeFailure(w, op, churnFallback, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleAnomalies handles POST /anomalies?method= requests.
func (h *AnalyticsHandler) HandleAnomalies(w http.ResponseWriter, r *http.Request) {
	const op = "api.anomalies"
	sess, ok := SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	method, err := choose(AnomalyMethods, "method", r.URL.Query().Get("method"))
	if err != nil {
		writeFailure(w, op, anomalyFallback, err)
		return
	}
	up, err := h.uploads.read(w, r)
	if err != nil {
		writeFailure(w, op, anomalyFallback, err)
		return
	}
	res, err := h.deps.DetectAnomalies(r.Context(), sess, method, up)
	if err != nil {
		writeFailure(w, op, anomalyFallback, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
