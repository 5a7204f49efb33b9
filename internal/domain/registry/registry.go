// Package registry keeps the forecast runs of one session, keyed by model
// name, and builds the side-by-side comparison table from them.
package registry

import (
	"math"
	"strconv"

	"github.com/okian/smartbiz/internal/domain/forecast"
)

// Placeholder is rendered for a period a model has no value for.
const Placeholder = "-"

// Metrics are the backend's error metrics for a model run.
type Metrics struct {
	MAE  float64 `json:"MAE"`
	MSE  float64 `json:"MSE"`
	RMSE float64 `json:"RMSE"`
}

// ModelRun is the most recent successful forecast of one model.
type ModelRun struct {
	Model   string           `json:"model"`
	Points  []forecast.Point `json:"forecast"`
	Metrics Metrics          `json:"metrics"`
}

// Registry holds at most one run per model, in first-insertion order.
// It is not safe for concurrent use; the owning session serializes access.
type Registry struct {
	order []string
	runs  map[string]*ModelRun
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{runs: make(map[string]*ModelRun)}
}

// Record inserts a run for model or replaces the existing one in place.
// The points are copied.
func (r *Registry) Record(model string, points []forecast.Point, metrics Metrics) {
	cp := make([]forecast.Point, len(points))
	copy(cp, points)

	if run, ok := r.runs[model]; ok {
		run.Points = cp
		run.Metrics = metrics
		return
	}
	r.order = append(r.order, model)
	r.runs[model] = &ModelRun{Model: model, Points: cp, Metrics: metrics}
}

// Run returns the run recorded for model.
func (r *Registry) Run(model string) (ModelRun, bool) {
	run, ok := r.runs[model]
	if !ok {
		return ModelRun{}, false
	}
	return *run, true
}

// Runs returns every run in registry order.
func (r *Registry) Runs() []ModelRun {
	out := make([]ModelRun, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.runs[name])
	}
	return out
}

// Len is the number of models with a recorded run.
func (r *Registry) Len() int {
	return len(r.order)
}

// Clear drops every run.
func (r *Registry) Clear() {
	r.order = nil
	r.runs = make(map[string]*ModelRun)
}

// ComparisonPeriods returns the distinct forecast periods across all runs,
// in the order they are first seen walking runs in registry order.
func (r *Registry) ComparisonPeriods() []string {
	seen := make(map[string]struct{})
	var periods []string
	for _, name := range r.order {
		for _, p := range r.runs[name].Points {
			if _, ok := seen[p.Period]; ok {
				continue
			}
			seen[p.Period] = struct{}{}
			periods = append(periods, p.Period)
		}
	}
	return periods
}

// ValueFor returns the first value model forecast for period.
func (r *Registry) ValueFor(model, period string) (float64, bool) {
	run, ok := r.runs[model]
	if !ok {
		return 0, false
	}
	for _, p := range run.Points {
		if p.Period == period {
			return p.Value, true
		}
	}
	return 0, false
}

// Cell formats the comparison table cell for model and period.
func (r *Registry) Cell(model, period string) string {
	v, ok := r.ValueFor(model, period)
	if !ok {
		return Placeholder
	}
	return formatValue(v)
}

// formatValue renders NaN and infinite values as the placeholder.
func formatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Placeholder
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
