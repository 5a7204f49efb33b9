package forecast

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for CSV reconciliation.
var (
	ErrMissingColumn = errors.New("missing column")
	ErrEmptyCSV      = errors.New("empty csv")
)

// MissingColumnError names the logical column the header could not resolve.
type MissingColumnError struct {
	Column   string
	Synonyms []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing %s column: expected one of %s", e.Column, strings.Join(e.Synonyms, ", "))
}

// Is reports ErrMissingColumn so callers can match without the concrete type.
func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}
