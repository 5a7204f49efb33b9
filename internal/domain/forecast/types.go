// Package forecast reconciles uploaded historical observations with backend
// predictions into one ordered series for charting and model comparison.
package forecast

import (
	"encoding/json"
	"fmt"
	"math"
)

// Kind tells charting code which series a point belongs to.
type Kind int

const (
	Historical Kind = iota
	Forecast
)

func (k Kind) String() string {
	switch k {
	case Historical:
		return "Historical"
	case Forecast:
		return "Forecast"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case Historical, Forecast:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("unknown kind %d", int(k))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Historical":
		*k = Historical
	case "Forecast":
		*k = Forecast
	default:
		return fmt.Errorf("unknown kind %q", string(b))
	}
	return nil
}

// HistoricalRecord is one observed row of the uploaded CSV.
type HistoricalRecord struct {
	Period string
	Value  float64 // NaN when the CSV field was not numeric
}

// Prediction is a backend forecast entry before normalization.
type Prediction struct {
	Period  string
	Value   float64
	Numeric bool // the period arrived as a JSON number and is not a date
}

// ForecastRecord is a prediction whose period has been normalized to a label.
type ForecastRecord struct {
	Period string
	Value  float64
}

// Point is one entry of the merged series.
type Point struct {
	Period string
	Value  float64
	Kind   Kind
}

type pointJSON struct {
	Period string   `json:"period"`
	Value  *float64 `json:"value"`
	Kind   Kind     `json:"kind"`
}

// MarshalJSON renders NaN and infinite values as null so gaps survive encoding.
func (p Point) MarshalJSON() ([]byte, error) {
	out := pointJSON{Period: p.Period, Kind: p.Kind}
	if !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0) {
		v := p.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads null values back as NaN.
func (p *Point) UnmarshalJSON(b []byte) error {
	var in pointJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	p.Period = in.Period
	p.Kind = in.Kind
	p.Value = math.NaN()
	if in.Value != nil {
		p.Value = *in.Value
	}
	return nil
}
