// Package insights derives the small summaries shown next to analytics
// result tables from the rows the backend returns.
package insights

import (
	"math"
	"strconv"
	"strings"
)

// Row is one record of a backend result table.
type Row = map[string]any

// Column names the backend uses in its result rows.
const (
	ColumnAnomaly          = "Anomaly"
	ColumnCluster          = "Cluster"
	ColumnChurnLabel       = "ChurnLabel"
	ColumnChurnProbability = "ChurnProbability"
)

// AnomalyStats summarizes an anomaly detection result.
type AnomalyStats struct {
	Total     int     `json:"total"`
	Anomalies int     `json:"anomalies"`
	Percent   float64 `json:"percent"`
}

// Anomalies counts rows flagged with Anomaly == 1.
func Anomalies(rows []Row) AnomalyStats {
	s := AnomalyStats{Total: len(rows)}
	for _, r := range rows {
		if v, ok := number(r[ColumnAnomaly]); ok && v == 1 {
			s.Anomalies++
		}
	}
	if s.Total > 0 {
		s.Percent = round2(float64(s.Anomalies) / float64(s.Total) * 100)
	}
	return s
}

// ClusterSize is the row count of one cluster with the backend's description.
type ClusterSize struct {
	Cluster string `json:"cluster"`
	Count   int    `json:"count"`
	Summary string `json:"summary,omitempty"`
}

// ClusterSizes counts rows per Cluster value in first-seen order.
// Rows without a cluster are ignored.
func ClusterSizes(rows []Row, summaries map[string]string) []ClusterSize {
	index := make(map[string]int)
	out := []ClusterSize{}
	for _, r := range rows {
		label, ok := text(r[ColumnCluster])
		if !ok {
			continue
		}
		if i, seen := index[label]; seen {
			out[i].Count++
			continue
		}
		index[label] = len(out)
		out = append(out, ClusterSize{Cluster: label, Count: 1, Summary: summaries[label]})
	}
	return out
}

// ChurnStats summarizes a churn prediction result.
type ChurnStats struct {
	Total           int     `json:"total"`
	Churned         int     `json:"churned"`
	MeanProbability float64 `json:"mean_probability"`
}

// Churn counts churned rows and averages ChurnProbability over rows that carry one.
func Churn(rows []Row) ChurnStats {
	s := ChurnStats{Total: len(rows)}
	var sum float64
	var n int
	for _, r := range rows {
		if churned(r[ColumnChurnLabel]) {
			s.Churned++
		}
		if p, ok := number(r[ColumnChurnProbability]); ok {
			sum += p
			n++
		}
	}
	if n > 0 {
		s.MeanProbability = round2(sum / float64(n))
	}
	return s
}

var clusterLabels = []string{ //nolint:gochecknoglobals // fixed lookup table
	"Budget Conscious",
	"High-Spender",
	"Casual Buyer",
	"Target Shopper",
	"Bulk Buyer",
}

// ClusterLabel names a recommender customer cluster.
func ClusterLabel(cluster int) string {
	if cluster < 0 || cluster >= len(clusterLabels) {
		return "Unknown"
	}
	return clusterLabels[cluster]
}

func churned(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t == 1
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "churn", "churned", "yes", "true", "1":
			return true
		}
	}
	return false
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func text(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	}
	return "", false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
