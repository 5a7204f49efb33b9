package forecast

import (
	"math"
	"strconv"
	"strings"
)

// ParseHistorical resolves the header of a CSV blob and parses its data rows.
func ParseHistorical(text string) ([]HistoricalRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyCSV
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}

	cols, err := ResolveHeader(lines[0])
	if err != nil {
		return nil, err
	}
	return ParseRows(lines[1:], cols), nil
}

// ParseRows converts data lines into records. Blank lines are skipped; a value
// that does not parse as a number becomes NaN and the row is kept.
func ParseRows(lines []string, cols Columns) []HistoricalRecord {
	records := make([]HistoricalRecord, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ",")
		records = append(records, HistoricalRecord{
			Period: strings.TrimSpace(field(fields, cols.Period)),
			Value:  parseValue(field(fields, cols.Value)),
		})
	}
	return records
}

// CountNaN returns how many records carry a NaN value.
func CountNaN(records []HistoricalRecord) int {
	n := 0
	for _, r := range records {
		if math.IsNaN(r.Value) {
			n++
		}
	}
	return n
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

func parseValue(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
