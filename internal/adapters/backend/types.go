package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Upload is a CSV file forwarded to the backend.
type Upload struct {
	Filename string
	Content  []byte
}

// Row is one record of a backend result table.
type Row = map[string]any

// Label is a JSON value the backend sends either as a string or a number.
type Label struct {
	Text    string
	Numeric bool
}

func (l Label) String() string { return l.Text }

// MarshalJSON writes the label as a string.
func (l Label) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Text)
}

// UnmarshalJSON accepts a string, a number or null.
func (l *Label) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*l = Label{}
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Label{Text: s}
		return nil
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("label %s: %w", b, err)
		}
		*l = Label{Text: strconv.FormatFloat(f, 'f', -1, 64), Numeric: true}
		return nil
	}
}

// ForecastPoint is one predicted period. Older backends send period/value
// instead of ds/yhat.
type ForecastPoint struct {
	Period Label
	Value  float64
}

// UnmarshalJSON reads ds|period and yhat|value; a null value becomes NaN.
func (p *ForecastPoint) UnmarshalJSON(b []byte) error {
	var raw struct {
		DS     *Label   `json:"ds"`
		Period *Label   `json:"period"`
		YHat   *float64 `json:"yhat"`
		Value  *float64 `json:"value"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch {
	case raw.DS != nil:
		p.Period = *raw.DS
	case raw.Period != nil:
		p.Period = *raw.Period
	default:
		p.Period = Label{}
	}
	switch {
	case raw.YHat != nil:
		p.Value = *raw.YHat
	case raw.Value != nil:
		p.Value = *raw.Value
	default:
		p.Value = math.NaN()
	}
	return nil
}

// ErrorMetrics are the fit metrics of a forecast model.
type ErrorMetrics struct {
	MAE  float64 `json:"MAE"`
	MSE  float64 `json:"MSE"`
	RMSE float64 `json:"RMSE"`
}

// BIInsights are the backend's notes about the historical series.
type BIInsights struct {
	BestYear  Label   `json:"best_year"`
	WorstYear Label   `json:"worst_year"`
	Outliers  []Label `json:"outliers"`
}

// ForecastResponse is returned by the forecasting endpoint.
type ForecastResponse struct {
	Forecast   []ForecastPoint `json:"forecast"`
	Metrics    ErrorMetrics    `json:"metrics"`
	Summary    string          `json:"summary"`
	BIInsights *BIInsights     `json:"bi_insights"`
}

// SegmentResponse is returned by the segmentation endpoint.
type SegmentResponse struct {
	Data      []Row             `json:"data"`
	Summaries map[string]string `json:"summaries"`
	Plot      string            `json:"plot"`
}

// ChurnResponse is returned by the churn endpoint.
type ChurnResponse struct {
	Data []Row `json:"data"`
}

// AnomalyResponse is returned by the anomaly endpoint. Plot is a base64 PNG.
type AnomalyResponse struct {
	Data []Row  `json:"data"`
	Plot string `json:"plot"`
}

// DatasetResponse acknowledges a dataset upload to the assistant.
type DatasetResponse struct {
	Message string `json:"message"`
	Rows    int    `json:"rows"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Answer string `json:"answer"`
}

// RecommendResponse lists products for a customer and the customer's cluster.
type RecommendResponse struct {
	Recommendations []string `json:"recommendations"`
	Cluster         *int     `json:"cluster"`
}

// envelope carries the failure fields any endpoint may send.
type envelope struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

func (e envelope) message() string {
	if e.Error != "" {
		return e.Error
	}
	var detail string
	if len(e.Detail) > 0 && json.Unmarshal(e.Detail, &detail) == nil {
		return detail
	}
	return ""
}
