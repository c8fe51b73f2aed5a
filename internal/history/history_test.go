package history

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roast-tracker/internal/model"
	"roast-tracker/internal/roast"
)

var base = time.Date(2026, 4, 10, 7, 0, 0, 0, time.UTC)

func fixture() []model.DetectionRecord {
	return []model.DetectionRecord{
		{ID: "a", RoastIndex: 82, RoastLabel: roast.Light, Confidence: 0.91, Advisory: "适合手冲, pour-over", CreatedAt: base.Add(3 * time.Hour)},
		{ID: "b", RoastIndex: 63, RoastLabel: roast.Medium, Confidence: 0.88, Advisory: "balanced", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "c", RoastIndex: 61.5, RoastLabel: roast.Medium, Confidence: 0.95, Advisory: "espresso, \"dense\"", CreatedAt: base.Add(time.Hour)},
		{ID: "d", RoastIndex: 35, RoastLabel: roast.ExtraDark, Confidence: 0.7, Advisory: "", CreatedAt: base},
	}
}

func ids(records []model.DetectionRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestCompute(t *testing.T) {
	assert.Equal(t, Stats{}, Compute(nil))

	got := Compute(fixture())
	assert.Equal(t, 4, got.Total)
	assert.Equal(t, 60.4, got.AvgIndex)
	assert.Equal(t, roast.Medium, got.MostCommon)
	assert.Equal(t, 0.86, got.AvgConfidence)
}

func TestCompute_TieGoesToFirstSeen(t *testing.T) {
	records := fixture()[:2]
	assert.Equal(t, roast.Light, Compute(records).MostCommon)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "default newest", filter: Filter{}, want: []string{"a", "b", "c", "d"}},
		{name: "oldest", filter: Filter{Sort: SortOldest}, want: []string{"d", "c", "b", "a"}},
		{name: "index asc", filter: Filter{Sort: SortIndexAsc}, want: []string{"d", "c", "b", "a"}},
		{name: "index desc", filter: Filter{Sort: SortIndexDesc}, want: []string{"a", "b", "c", "d"}},
		{name: "confidence", filter: Filter{Sort: SortConfidenceDesc}, want: []string{"c", "a", "b", "d"}},
		{name: "label", filter: Filter{Label: roast.Medium}, want: []string{"b", "c"}},
		{name: "search advisory", filter: Filter{Search: "ESPRESSO"}, want: []string{"c"}},
		{name: "search index", filter: Filter{Search: "61.5"}, want: []string{"c"}},
		{name: "search label", filter: Filter{Search: "浅烘"}, want: []string{"a"}},
		{name: "search slug", filter: Filter{Search: "extra-dark"}, want: []string{"d"}},
		{name: "no match", filter: Filter{Search: "zzz"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := fixture()
			assert.Equal(t, tt.want, ids(Apply(in, tt.filter)))
			assert.Equal(t, []string{"a", "b", "c", "d"}, ids(in), "input untouched")
		})
	}
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort("")
	require.NoError(t, err)
	assert.Equal(t, SortNewest, s)

	s, err = ParseSort(" Index_Desc ")
	require.NoError(t, err)
	assert.Equal(t, SortIndexDesc, s)

	_, err = ParseSort("random")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, fixture()[1:3]))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"2026-04-10T09:00:00Z", "63", "中烘", "88.0%", "balanced"}, rows[1])
	assert.Equal(t, "espresso, \"dense\"", rows[2][4], "quotes and commas survive")
}
