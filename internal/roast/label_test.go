package roast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		index float64
		want  Label
	}{
		{99, ExtraLight},
		{90, ExtraLight},
		{89.9, Light},
		{80, Light},
		{75, MediumLight},
		{65, Medium},
		{60, Medium},
		{55, MediumDark},
		{40, Dark},
		{39, ExtraDark},
		{0, ExtraDark},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, Classify(tc.index), "index %v", tc.index)
	}
}

func TestParseLabel(t *testing.T) {
	testCases := []struct {
		name    string
		raw     string
		want    Label
		wantErr bool
	}{
		{name: "display string", raw: "中烘", want: Medium},
		{name: "slug", raw: "medium-dark", want: MediumDark},
		{name: "slug is case insensitive", raw: " Extra-Light ", want: ExtraLight},
		{name: "unknown", raw: "burnt", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLabel(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLabelsAreOrderedLightestFirst(t *testing.T) {
	labels := Labels()
	require.Len(t, labels, 7)
	for i := 1; i < len(labels); i++ {
		assert.Greater(t, labels[i].Rank(), labels[i-1].Rank())
		assert.Less(t, labels[i].MinIndex(), labels[i-1].MinIndex())
	}
	assert.False(t, Label("bogus").Valid())
	assert.Equal(t, "", Label("bogus").Slug())
}

func TestNearTarget(t *testing.T) {
	assert.True(t, NearTarget(70, 65, 5))
	assert.True(t, NearTarget(60, 65, 5))
	assert.False(t, NearTarget(59, 65, 5))
}

func TestName(t *testing.T) {
	assert.Equal(t, "Medium Light", MediumLight.Name("en"))
	assert.Equal(t, "中浅烘", MediumLight.Name("zh"))
	assert.Equal(t, "极深烘", ExtraDark.Name("fr"))
	assert.Equal(t, "nope", Label("nope").Name("en"))
}
