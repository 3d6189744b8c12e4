// Package field simulates a spring-damper point lattice driven by ripple
// waves and continuous force fields.
package field

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// MeshPoint is one lattice point. Rest never changes after the lattice is built.
type MeshPoint struct {
	Position  r2.Vec
	Rest      r2.Vec
	Velocity  r2.Vec
	Pinned    bool
	Intensity float64
}

// Ripple is a ring expanding from Center. Start and EndedAt are simulator time.
type Ripple struct {
	Center   r2.Vec
	Start    float64
	EndedAt  float64
	Strength float64
	Active   bool
}

// Slot names one of the continuous force fields. Each slot holds at most one
// live field.
type Slot int

const (
	SlotRepulsion Slot = iota
	SlotAttraction
	SlotVortex
	numSlots
)

// Slots lists every slot.
var Slots = [numSlots]Slot{SlotRepulsion, SlotAttraction, SlotVortex}

func (s Slot) String() string {
	switch s {
	case SlotRepulsion:
		return "repulsion"
	case SlotAttraction:
		return "attraction"
	case SlotVortex:
		return "vortex"
	}
	return fmt.Sprintf("slot(%d)", int(s))
}

func (s Slot) valid() bool {
	return s >= 0 && s < numSlots
}

// kind is the force a slot holds when set.
func (s Slot) kind() ForceKind {
	switch s {
	case SlotRepulsion:
		return ForceRepulsion
	case SlotAttraction:
		return ForceAttraction
	case SlotVortex:
		return ForceVortex
	}
	return ForceNone
}

// ForceKind tags a Force. ForceNone is an empty slot.
type ForceKind int

const (
	ForceNone ForceKind = iota
	ForceRepulsion
	ForceAttraction
	ForceVortex
)

func (k ForceKind) String() string {
	switch k {
	case ForceNone:
		return "none"
	case ForceRepulsion:
		return "repulsion"
	case ForceAttraction:
		return "attraction"
	case ForceVortex:
		return "vortex"
	}
	return fmt.Sprintf("force(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k ForceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Force is a live field. Center is in pixels.
type Force struct {
	Kind   ForceKind `json:"kind"`
	Center r2.Vec    `json:"center"`
}

// Snapshot is a read-only copy of the render state.
type Snapshot struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Cols   int `json:"cols"`
	Rows   int `json:"rows"`
	Count  int `json:"count"`

	// Positions holds x,y pairs in pixels, one pair per point.
	Positions []float32 `json:"positions"`
	// Intensities holds one value in 0..1 per point.
	Intensities []float32 `json:"intensities"`

	ActiveRipples int             `json:"active_ripples"`
	Forces        [numSlots]Force `json:"forces"`
}

// Stats summarizes simulator activity.
type Stats struct {
	Time          float64
	Steps         int
	Points        int
	ActiveRipples int
	TotalRipples  int
	KineticEnergy float64
	LiveForces    int
	PeakIntensity float64
}
