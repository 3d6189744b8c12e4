package gesture

import (
	"github.com/ayusman/mudra/internal/detector"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// minPalmScale rejects hands collapsed to a point by the landmark model.
const minPalmScale = 1e-4

// Observation holds the scalar features derived from one hand in one tick.
type Observation struct {
	Hand detector.Handedness

	// PinchDistance is |thumb tip - index tip| in palm lengths.
	PinchDistance float64
	// HoldDistance is |thumb tip - middle tip| in palm lengths.
	HoldDistance float64
	// Openness is the mean fingertip to wrist distance in palm lengths.
	Openness float64

	PinchPoint r3.Vec
	HoldPoint  r3.Vec
	PalmCenter r3.Vec
}

var fingertips = [...]int{detector.IndexTip, detector.MiddleTip, detector.RingTip, detector.PinkyTip}

var palmPoints = [...]int{detector.Wrist, detector.IndexMCP, detector.MiddleMCP, detector.RingMCP, detector.PinkyMCP}

// Observe computes the features of a hand. It returns false for malformed or
// degenerate hands, which the classifier treats as absent.
func Observe(hand *detector.HandLandmarks) (Observation, bool) {
	if !hand.Valid() || hand.PalmScale() < minPalmScale {
		return Observation{}, false
	}
	n := hand.Normalize()

	obs := Observation{
		Hand:          hand.Handedness,
		PinchDistance: dist(n, detector.ThumbTip, detector.IndexTip),
		HoldDistance:  dist(n, detector.ThumbTip, detector.MiddleTip),
		PinchPoint:    midpoint(hand, detector.ThumbTip, detector.IndexTip),
		HoldPoint:     midpoint(hand, detector.ThumbTip, detector.MiddleTip),
	}

	var open float64
	for _, tip := range fingertips {
		open += dist(n, detector.Wrist, tip)
	}
	obs.Openness = open / float64(len(fingertips))

	var c r3.Vec
	for _, i := range palmPoints {
		c = r3.Add(c, hand.Points[i].Vec())
	}
	obs.PalmCenter = r3.Scale(1/float64(len(palmPoints)), c)

	return obs, true
}

// Feature returns the raw feature value and representative point for a type.
func (o Observation) Feature(t Type) (float64, r3.Vec) {
	switch t {
	case TypeFist:
		return o.Openness, o.PalmCenter
	case TypeHoldPinch:
		return o.HoldDistance, o.HoldPoint
	default:
		return o.PinchDistance, o.PinchPoint
	}
}

// strength maps a feature into 0..1 against the release threshold.
func strength(value float64, th Thresholds) float64 {
	s := 1 - value/th.Release
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func flat(v r3.Vec) r2.Vec {
	return r2.Vec{X: v.X, Y: v.Y}
}

func dist(h *detector.HandLandmarks, a, b int) float64 {
	return r3.Norm(r3.Sub(h.Points[a].Vec(), h.Points[b].Vec()))
}

func midpoint(h *detector.HandLandmarks, a, b int) r3.Vec {
	return r3.Scale(0.5, r3.Add(h.Points[a].Vec(), h.Points[b].Vec()))
}
