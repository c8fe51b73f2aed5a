// Package history derives read-only views over detection records: summary
// statistics, filtered and sorted listings, and CSV export.
package history

import (
	"math"

	"roast-tracker/internal/model"
	"roast-tracker/internal/roast"
)

// Stats summarizes a detection history.
type Stats struct {
	Total         int         `json:"total"`
	AvgIndex      float64     `json:"avg_index"`
	MostCommon    roast.Label `json:"most_common"`
	AvgConfidence float64     `json:"avg_confidence"`
}

// Compute returns the stats of records. An empty history yields zero values.
// Ties for the most common label go to the label seen first.
func Compute(records []model.DetectionRecord) Stats {
	if len(records) == 0 {
		return Stats{}
	}

	var sumIndex, sumConf float64
	counts := make(map[roast.Label]int)
	var best roast.Label
	for _, r := range records {
		sumIndex += r.RoastIndex
		sumConf += r.Confidence
		counts[r.RoastLabel]++
		if best == "" || counts[r.RoastLabel] > counts[best] {
			best = r.RoastLabel
		}
	}

	n := float64(len(records))
	return Stats{
		Total:         len(records),
		AvgIndex:      round(sumIndex/n, 1),
		MostCommon:    best,
		AvgConfidence: round(sumConf/n, 2),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
