package forecast

import (
	"strings"
)

// Header synonyms in priority order.
var (
	periodSynonyms = []string{"year", "ds"}
	valueSynonyms  = []string{"value", "y"}
)

// Columns holds the resolved indices of the period and value columns.
type Columns struct {
	Period int
	Value  int
}

// ResolveHeader locates the period and value columns in a CSV header line.
// Matching is case-insensitive on trimmed names; within a synonym set the
// earlier synonym wins.
func ResolveHeader(line string) (Columns, error) {
	names := strings.Split(strings.TrimPrefix(line, "\ufeff"), ",")
	for i, n := range names {
		names[i] = strings.ToLower(strings.TrimSpace(n))
	}

	period, ok := indexOfAny(names, periodSynonyms)
	if !ok {
		return Columns{}, &MissingColumnError{Column: "period", Synonyms: periodSynonyms}
	}
	value, ok := indexOfAny(names, valueSynonyms)
	if !ok {
		return Columns{}, &MissingColumnError{Column: "value", Synonyms: valueSynonyms}
	}
	return Columns{Period: period, Value: value}, nil
}

func indexOfAny(names, synonyms []string) (int, bool) {
	for _, s := range synonyms {
		for i, n := range names {
			if n == s {
				return i, true
			}
		}
	}
	return -1, false
}
