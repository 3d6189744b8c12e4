// Package gesture turns per-tick hand landmark frames into debounced,
// hysteresis-protected gesture events.
package gesture

import (
	"github.com/ayusman/mudra/internal/detector"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Type identifies a gesture kind.
type Type string

const (
	// TypePinch is the thumb tip touching the index tip.
	TypePinch Type = "pinch"
	// TypeFist is all four fingers curled into the palm.
	TypeFist Type = "fist"
	// TypeHoldPinch is the thumb touching the middle tip; it charges while held.
	TypeHoldPinch Type = "hold_pinch"
)

// Types lists every gesture type the classifier tracks, in evaluation order.
var Types = []Type{TypeFist, TypePinch, TypeHoldPinch}

// State is a gesture lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateStarted State = "started"
	StateActive  State = "active"
	StateEnded   State = "ended"
)

// Key addresses one state machine. Hands are matched by label, never by
// their position in the frame.
type Key struct {
	Hand detector.Handedness
	Type Type
}

// Frame is one tick of landmark input.
type Frame struct {
	Hands       []detector.HandLandmarks `json:"hands"`
	TimestampMs int64                    `json:"timestamp_ms"`
}

// EventData carries the gesture specific payload of an event.
type EventData struct {
	// Position is the representative point in normalized image space (0..1).
	Position r2.Vec `json:"position"`
	// Position3D keeps the relative depth of the representative point.
	Position3D r3.Vec `json:"position_3d"`
	// Distance is the raw feature value (palm-relative distance or openness).
	Distance float64 `json:"distance"`
	// Strength is the feature normalized into 0..1, 1 being fully engaged.
	Strength float64 `json:"strength"`
	// HoldDuration is the time spent in started/active, in seconds.
	HoldDuration float64 `json:"hold_duration"`
	// ChargeIntensity is min(1, HoldDuration/MaxCharge) for hold gestures.
	ChargeIntensity float64 `json:"charge_intensity"`
	// Forced is set on ENDED events caused by the hand disappearing.
	Forced bool `json:"forced,omitempty"`
}

// Event is emitted once per transition and once per active tick.
type Event struct {
	Type      Type                `json:"type"`
	State     State               `json:"state"`
	Hand      detector.Handedness `json:"hand"`
	Timestamp int64               `json:"timestamp"`
	Data      EventData           `json:"data"`
}

// Status is the current view of one gesture on one hand.
type Status struct {
	State    State
	Strength float64
	Position r2.Vec
}

// Engaged reports whether the gesture is started or active.
func (s Status) Engaged() bool {
	return s.State == StateStarted || s.State == StateActive
}
