package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
)

var exportHeader = []string{"Year", "Forecasted Sales"}

// WriteCSV writes forecast points as a two-column download with values
// rounded to two decimals. NaN and infinite values are written as empty fields.
func WriteCSV(w io.Writer, points []Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range points {
		if err := cw.Write([]string{p.Period, exportValue(p.Value)}); err != nil {
			return fmt.Errorf("write row %s: %w", p.Period, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
