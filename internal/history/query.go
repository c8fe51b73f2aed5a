package history

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"roast-tracker/internal/model"
	"roast-tracker/internal/roast"
)

// Sort orders a query result.
type Sort string

const (
	SortNewest         Sort = "newest"
	SortOldest         Sort = "oldest"
	SortIndexAsc       Sort = "index_asc"
	SortIndexDesc      Sort = "index_desc"
	SortConfidenceDesc Sort = "confidence"
)

// ParseSort accepts one of the Sort names. Empty means newest.
func ParseSort(raw string) (Sort, error) {
	switch s := Sort(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortIndexAsc, SortIndexDesc, SortConfidenceDesc:
		return s, nil
	}
	return "", fmt.Errorf("unknown sort %q", raw)
}

// Filter selects and orders records. Zero fields match everything.
type Filter struct {
	// Search matches case-insensitively against the label, the advisory
	// text and the printed roast index.
	Search string
	Label  roast.Label
	Sort   Sort
}

// Apply returns the records matching f in the requested order. The input
// slice is not modified.
func Apply(records []model.DetectionRecord, f Filter) []model.DetectionRecord {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]model.DetectionRecord, 0, len(records))
	for _, r := range records {
		if f.Label != "" && r.RoastLabel != f.Label {
			continue
		}
		if term != "" && !matches(r, term) {
			continue
		}
		out = append(out, r)
	}

	slices.SortStableFunc(out, compare(f.Sort))
	return out
}

func matches(r model.DetectionRecord, term string) bool {
	return strings.Contains(strings.ToLower(string(r.RoastLabel)), term) ||
		strings.Contains(strings.ToLower(r.RoastLabel.Slug()), term) ||
		strings.Contains(strings.ToLower(r.Advisory), term) ||
		strings.Contains(strconv.FormatFloat(r.RoastIndex, 'f', -1, 64), term)
}

func compare(s Sort) func(a, b model.DetectionRecord) int {
	switch s {
	case SortOldest:
		return func(a, b model.DetectionRecord) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case SortIndexAsc:
		return func(a, b model.DetectionRecord) int { return cmpFloat(a.RoastIndex, b.RoastIndex) }
	case SortIndexDesc:
		return func(a, b model.DetectionRecord) int { return cmpFloat(b.RoastIndex, a.RoastIndex) }
	case SortConfidenceDesc:
		return func(a, b model.DetectionRecord) int { return cmpFloat(b.Confidence, a.Confidence) }
	default:
		return func(a, b model.DetectionRecord) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
