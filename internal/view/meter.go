package view

import (
	"github.com/charmbracelet/harmonica"
	"gonum.org/v1/gonum/spatial/r2"
)

// Meter follows a target value with a critically damped spring, so the
// charge bar settles without overshoot.
type Meter struct {
	spring harmonica.Spring
	pos    float64
	vel    float64
	target float64
}

// NewMeter creates a Meter stepped fps times per second.
func NewMeter(fps int, frequency, damping float64) *Meter {
	return &Meter{spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)}
}

// SetTarget moves the equilibrium.
func (m *Meter) SetTarget(v float64) { m.target = v }

// Target returns the equilibrium.
func (m *Meter) Target() float64 { return m.target }

// Snap jumps to v with no velocity.
func (m *Meter) Snap(v float64) {
	m.pos, m.vel, m.target = v, 0, v
}

// Step advances one frame and returns the smoothed value.
func (m *Meter) Step() float64 {
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
	return m.pos
}

// Value returns the current smoothed value.
func (m *Meter) Value() float64 { return m.pos }

// Marker is a screen position smoothed on both axes. Force markers use it
// so a jittery hand does not make the ring shake.
type Marker struct {
	x, y    *Meter
	visible bool
}

// NewMarker creates a Marker with the given spring parameters.
func NewMarker(fps int, frequency, damping float64) *Marker {
	return &Marker{
		x: NewMeter(fps, frequency, damping),
		y: NewMeter(fps, frequency, damping),
	}
}

// Follow sets the target. A marker that was hidden jumps straight there.
func (m *Marker) Follow(p r2.Vec) {
	if !m.visible {
		m.x.Snap(p.X)
		m.y.Snap(p.Y)
		m.visible = true
		return
	}
	m.x.SetTarget(p.X)
	m.y.SetTarget(p.Y)
}

// Hide stops drawing the marker.
func (m *Marker) Hide() { m.visible = false }

// Visible reports whether the marker is shown.
func (m *Marker) Visible() bool { return m.visible }

// Step advances one frame and returns the smoothed position.
func (m *Marker) Step() r2.Vec {
	return r2.Vec{X: m.x.Step(), Y: m.y.Step()}
}
