package forecast

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Reconcile concatenates the historical series with the forecast points that
// lie strictly after the last integer historical period. Forecast periods that
// are not integers are always kept. Source order is preserved on both sides.
func Reconcile(hist []HistoricalRecord, fc []ForecastRecord) []Point {
	last, hasLast := LastPeriod(hist)

	points := make([]Point, 0, len(hist)+len(fc))
	for _, h := range hist {
		points = append(points, Point{Period: h.Period, Value: h.Value, Kind: Historical})
	}
	for _, f := range fc {
		if p, ok := LeadingInt(f.Period); ok && hasLast && p <= last {
			continue
		}
		points = append(points, Point{Period: f.Period, Value: f.Value, Kind: Forecast})
	}
	return points
}

// ForecastPoints returns the Forecast-kind points of a merged series.
func ForecastPoints(points []Point) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Kind == Forecast {
			out = append(out, p)
		}
	}
	return out
}

// LastPeriod is the maximum integer period among historical records.
// ok is false when no period parses as an integer.
func LastPeriod(hist []HistoricalRecord) (last int, ok bool) {
	for _, h := range hist {
		p, parsed := LeadingInt(h.Period)
		if !parsed {
			continue
		}
		if !ok || p > last {
			last, ok = p, true
		}
	}
	return last, ok
}

// LeadingInt parses the integer prefix of s the way a browser's parseInt does:
// leading whitespace, an optional sign, then decimal digits up to the first
// non-digit. Values beyond the int range saturate.
func LeadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	digits := s[:end]
	if neg {
		digits = "-" + digits
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		if neg {
			return math.MinInt, true
		}
		return math.MaxInt, true
	}
	return n, true
}
