// Package effect maps gesture events onto field simulator commands and
// feedback cues.
package effect

import (
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/field"
	"gonum.org/v1/gonum/spatial/r2"
)

// CueKind names a feedback notification for renderers, audio and plugins.
type CueKind string

const (
	CueRipple       CueKind = "ripple"
	CueFieldStart   CueKind = "field_start"
	CueFieldEnd     CueKind = "field_end"
	CueChargeBegin  CueKind = "charge_begin"
	CueChargeUpdate CueKind = "charge_update"
	CueBurst        CueKind = "burst"
)

// CueKinds lists every cue kind.
var CueKinds = []CueKind{CueRipple, CueFieldStart, CueFieldEnd, CueChargeBegin, CueChargeUpdate, CueBurst}

// Cue is a feedback notification. Position is normalized and already
// mirrored the way the simulator sees it. Slot is only meaningful for field cues.
type Cue struct {
	Kind      CueKind             `json:"kind"`
	Hand      detector.Handedness `json:"hand"`
	Slot      field.Slot          `json:"slot"`
	Position  r2.Vec              `json:"position"`
	Intensity float64             `json:"intensity"`
	Timestamp int64               `json:"timestamp"`
}

// CueSink receives cues on the tick goroutine. Implementations must not block.
type CueSink interface {
	Cue(c Cue)
}

// CueFunc adapts a function to CueSink.
type CueFunc func(c Cue)

// Cue calls f(c).
func (f CueFunc) Cue(c Cue) { f(c) }

// Sinks fans a cue out to every sink in order.
type Sinks []CueSink

// Cue delivers c to each sink.
func (s Sinks) Cue(c Cue) {
	for _, sink := range s {
		sink.Cue(c)
	}
}

// Discard drops every cue.
var Discard CueSink = CueFunc(func(Cue) {})
