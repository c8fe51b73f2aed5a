package roast

import (
	"fmt"
	"math"
	"strings"
)

// Label is one of the seven ordered roast levels. The value is the display
// string stored by the backend and the local snapshot.
type Label string

const (
	ExtraLight  Label = "极浅烘"
	Light       Label = "浅烘"
	MediumLight Label = "中浅烘"
	Medium      Label = "中烘"
	MediumDark  Label = "中深烘"
	Dark        Label = "深烘"
	ExtraDark   Label = "极深烘"
)

// level ties a label to its slug and the lowest roast index it covers.
type level struct {
	label   Label
	slug    string
	english string
	min     float64
}

// levels is ordered lightest first. A higher roast index means a lighter roast.
var levels = []level{
	{ExtraLight, "extra-light", "Extra Light", 90},
	{Light, "light", "Light", 80},
	{MediumLight, "medium-light", "Medium Light", 70},
	{Medium, "medium", "Medium", 60},
	{MediumDark, "medium-dark", "Medium Dark", 50},
	{Dark, "dark", "Dark", 40},
	{ExtraDark, "extra-dark", "Extra Dark", math.Inf(-1)},
}

// Labels returns all labels, lightest first.
func Labels() []Label {
	out := make([]Label, len(levels))
	for i, l := range levels {
		out[i] = l.label
	}
	return out
}

// Valid reports whether l is one of the seven levels.
func (l Label) Valid() bool {
	return l.Rank() >= 0
}

// Rank returns the position of l in the lightest-first order, or -1.
func (l Label) Rank() int {
	for i, lv := range levels {
		if lv.label == l {
			return i
		}
	}
	return -1
}

// Slug returns the ASCII identifier of l, or "" for an unknown label.
func (l Label) Slug() string {
	if r := l.Rank(); r >= 0 {
		return levels[r].slug
	}
	return ""
}

// Name returns the display name of l in lang ("zh" or "en"). Chinese is the
// fallback.
func (l Label) Name(lang string) string {
	if r := l.Rank(); r >= 0 && lang == "en" {
		return levels[r].english
	}
	return string(l)
}

// MinIndex returns the lowest roast index classified as l.
func (l Label) MinIndex() float64 {
	if r := l.Rank(); r >= 0 {
		return levels[r].min
	}
	return math.NaN()
}

// ParseLabel accepts either the display string or the slug.
func ParseLabel(raw string) (Label, error) {
	s := strings.TrimSpace(raw)
	for _, lv := range levels {
		if s == string(lv.label) || strings.EqualFold(s, lv.slug) {
			return lv.label, nil
		}
	}
	return "", fmt.Errorf("unknown roast level %q", raw)
}

// Classify maps a roast index to its label.
func Classify(index float64) Label {
	for _, lv := range levels {
		if index >= lv.min {
			return lv.label
		}
	}
	return ExtraDark
}

// NearTarget reports whether index lies within delta of target.
func NearTarget(index, target, delta float64) bool {
	return math.Abs(index-target) <= delta
}
