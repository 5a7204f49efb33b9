package forecast

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dateLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"2006-01",
		"01-02-2006",
		"02-Jan-2006",
	}
	yearPattern = regexp.MustCompile(`\d{4}`)
)

// Normalize maps backend predictions to period labels, preserving order.
// Numeric periods are taken as they are.
func Normalize(preds []Prediction) []ForecastRecord {
	out := make([]ForecastRecord, len(preds))
	for i, p := range preds {
		period := p.Period
		if !p.Numeric {
			period = NormalizePeriod(period)
		}
		out[i] = ForecastRecord{Period: period, Value: p.Value}
	}
	return out
}

// NormalizePeriod reduces a hyphenated date-like period to its year. Labels
// without a hyphen are returned unchanged.
func NormalizePeriod(period string) string {
	if !strings.Contains(period, "-") {
		return period
	}
	s := strings.TrimSpace(period)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return strconv.Itoa(t.Year())
		}
	}
	if y := yearPattern.FindString(s); y != "" {
		return y
	}
	return period
}
