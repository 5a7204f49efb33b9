package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/smartbiz/internal/domain/forecast"
)

const forecastFallback = "Something went wrong. Please check your CSV format and try again."

// ForecastHandler handles forecast runs and the model-run registry.
type ForecastHandler struct {
	deps    ForecastDependencies
	uploads uploadReader
}

// NewForecastHandler creates a new forecast handler.
func NewForecastHandler(deps ForecastDependencies, uploads uploadReader) *ForecastHandler {
	return &ForecastHandler{deps: deps, uploads: uploads}
}

// HandleForecast handles POST /forecast?model= requests.
func (h *ForecastHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	const op = "api.forecast"
	sess, ok := SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	model, err := choose(ForecastModels, "model", r.URL.Query().Get("model"))
	if err != nil {
		writeFailure(w, op, forecastFallback, err)
		return
	}
	up, err := h.uploads.read(w, r)
	if err != nil {
		writeFailure(w, op, forecastFallback, err)
		return
	}
	res, err := h.deps.Forecast(r.Context(), sess, model, up)
	if err != nil {
		writeFailure(w, op, forecastFallback, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleListRuns handles GET /forecast/runs requests.
func (h *ForecastHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind("api.list_runs", ErrUnauthorized))
		return
	}
	writeJSON(w, http.StatusOK, runsResponse{Runs: sess.Runs(), Comparison: sess.Comparison()})
}

// HandleClearRuns handles DELETE /forecast/runs requests.
func (h *ForecastHandler) HandleClearRuns(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind("api.clear_runs", ErrUnauthorized))
		return
	}
	h.deps.ClearRuns(r.Context(), sess)
	w.WriteHeader(http.StatusNoContent)
}

// HandleExport handles GET /forecast/runs/{model}/export requests.
func (h *ForecastHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_run"
	sess, ok := SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	model := mux.Vars(r)["model"]
	run, ok := sess.Run(model)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, fmt.Errorf("no forecast run for model %q", model)))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", model+"_forecast.csv"))
	w.WriteHeader(http.StatusOK)
	_ = forecast.WriteCSV(w, run.Points)
}
