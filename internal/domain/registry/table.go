package registry

// MetricsRow is one line of the metrics comparison.
type MetricsRow struct {
	Model string `json:"model"`
	MAE   string `json:"MAE"`
	MSE   string `json:"MSE"`
	RMSE  string `json:"RMSE"`
}

// PeriodRow is one period of the forecast comparison, with a cell per model
// in the order of Table.Models.
type PeriodRow struct {
	Period string   `json:"period"`
	Cells  []string `json:"cells"`
}

// Table is the rendered model comparison.
type Table struct {
	Models  []string     `json:"models"`
	Metrics []MetricsRow `json:"metrics"`
	Periods []PeriodRow  `json:"periods"`
}

// Table renders the comparison of every recorded run.
func (r *Registry) Table() Table {
	t := Table{
		Models:  make([]string, 0, len(r.order)),
		Metrics: make([]MetricsRow, 0, len(r.order)),
		Periods: []PeriodRow{},
	}
	for _, name := range r.order {
		m := r.runs[name].Metrics
		t.Models = append(t.Models, name)
		t.Metrics = append(t.Metrics, MetricsRow{
			Model: name,
			MAE:   formatValue(m.MAE),
			MSE:   formatValue(m.MSE),
			RMSE:  formatValue(m.RMSE),
		})
	}
	for _, period := range r.ComparisonPeriods() {
		row := PeriodRow{Period: period, Cells: make([]string, 0, len(t.Models))}
		for _, name := range t.Models {
			row.Cells = append(row.Cells, r.Cell(name, period))
		}
		t.Periods = append(t.Periods, row)
	}
	return t
}
