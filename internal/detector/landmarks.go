// Package detector provides hand landmark types and the detector interface that
// feeds landmark frames into the gesture classifier.
package detector

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels which hand a set of landmarks belongs to.
type Handedness string

const (
	HandLeft    Handedness = "Left"
	HandRight   Handedness = "Right"
	HandUnknown Handedness = "Unknown"
)

// ParseHandedness maps a detector label to a Handedness. Anything that is not
// recognisably left or right is HandUnknown.
func ParseHandedness(label string) Handedness {
	switch label {
	case "Left", "left", "L", "l":
		return HandLeft
	case "Right", "right", "R", "r":
		return HandRight
	default:
		return HandUnknown
	}
}

// Opposite returns the other hand. HandUnknown stays unknown.
func (h Handedness) Opposite() Handedness {
	switch h {
	case HandLeft:
		return HandRight
	case HandRight:
		return HandLeft
	default:
		return h
	}
}

// Point3D represents a normalized image-space point. X and Y are in 0..1,
// Z is depth relative to the wrist.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec returns the point as an r3.Vec.
func (p Point3D) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

func (p Point3D) finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0) && !math.IsInf(p.Z, 0)
}

// HandLandmarks represents one detected hand. A well-formed hand carries exactly
// NumLandmarks points; sources may deliver fewer, which Valid reports.
type HandLandmarks struct {
	Points     []Point3D  `json:"points"`
	Handedness Handedness `json:"handedness"`
	Score      float64    `json:"score"`
}

// NewHandLandmarks returns a hand with NumLandmarks zeroed points.
func NewHandLandmarks(handedness Handedness, score float64) HandLandmarks {
	return HandLandmarks{
		Points:     make([]Point3D, NumLandmarks),
		Handedness: handedness,
		Score:      score,
	}
}

// Valid reports whether the hand has exactly NumLandmarks finite points.
func (h *HandLandmarks) Valid() bool {
	if h == nil || len(h.Points) != NumLandmarks {
		return false
	}
	for _, p := range h.Points {
		if !p.finite() {
			return false
		}
	}
	return true
}

// Normalize normalizes the hand landmarks relative to wrist position and hand size.
// The normalized landmarks have the wrist at origin (0,0,0) and are scaled
// so that the distance from wrist to middle finger MCP is 1.0.
// Returns nil for a nil or malformed hand. A degenerate hand (zero palm scale)
// is returned translated but unscaled.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if !h.Valid() {
		return nil
	}

	normalized := &HandLandmarks{
		Points:     make([]Point3D, NumLandmarks),
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist].Vec()
	for i := 0; i < NumLandmarks; i++ {
		v := r3.Sub(h.Points[i].Vec(), wrist)
		normalized.Points[i] = Point3D{X: v.X, Y: v.Y, Z: v.Z}
	}

	scale := h.PalmScale()
	if scale < 1e-10 {
		return normalized
	}

	for i := 0; i < NumLandmarks; i++ {
		v := r3.Scale(1/scale, normalized.Points[i].Vec())
		normalized.Points[i] = Point3D{X: v.X, Y: v.Y, Z: v.Z}
	}

	return normalized
}

// PalmScale returns the wrist to middle-MCP distance, the reference length
// used to make hand features independent of distance from the camera.
func (h *HandLandmarks) PalmScale() float64 {
	if h == nil || len(h.Points) <= MiddleMCP {
		return 0
	}
	return r3.Norm(r3.Sub(h.Points[MiddleMCP].Vec(), h.Points[Wrist].Vec()))
}
