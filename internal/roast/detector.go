// Package roast holds the roast level vocabulary and the detector boundary.
// The detector itself is an opaque scoring function; Simulator stands in for
// it during development and tests.
package roast

import "context"

// Request is one frame handed to a Detector.
type Request struct {
	Image []byte
	// TargetIndex is the index the user is roasting towards. Real classifiers
	// ignore it; Simulator uses it to centre its readings.
	TargetIndex float64
}

// Estimate is the output of a Detector.
type Estimate struct {
	Index       float64
	Label       Label
	Confidence  float64
	Temperature *float64
	Advisory    string
}

// Detector scores an image of roasting beans.
type Detector interface {
	Detect(ctx context.Context, req Request) (Estimate, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, req Request) (Estimate, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, req Request) (Estimate, error) {
	return f(ctx, req)
}
