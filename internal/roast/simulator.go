package roast

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
)

// Bounds of the simulated roast index.
const (
	SimMinIndex = 20
	SimMaxIndex = 95
)

var cannedResults = []Estimate{
	{Index: 65, Label: Medium, Confidence: 0.92, Advisory: "适合制作手冲咖啡，建议研磨度为中粗"},
	{Index: 45, Label: MediumDark, Confidence: 0.88, Advisory: "苦甜平衡，适合制作意式浓缩咖啡"},
	{Index: 75, Label: MediumLight, Confidence: 0.95, Advisory: "明亮的酸味，果香突出，适合手冲或虹吸壶"},
}

// Simulator produces plausible readings without looking at the image.
// With a target it jitters ±10 around it; without one it returns one of a few
// canned still-image results.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator creates a Simulator seeded with seed.
func NewSimulator(seed uint64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Detect implements Detector.
func (s *Simulator) Detect(ctx context.Context, req Request) (Estimate, error) {
	if err := ctx.Err(); err != nil {
		return Estimate{}, err
	}
	if len(req.Image) == 0 {
		return Estimate{}, errors.New("empty image")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.TargetIndex <= 0 {
		return cannedResults[s.rng.IntN(len(cannedResults))], nil
	}

	base := req.TargetIndex + (s.rng.Float64()-0.5)*20
	index := math.Max(SimMinIndex, math.Min(SimMaxIndex, math.Round(base)))
	temp := 180 + s.rng.Float64()*40
	return Estimate{
		Index:       index,
		Label:       Classify(index),
		Confidence:  0.85 + s.rng.Float64()*0.1,
		Temperature: &temp,
	}, nil
}
