package field

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/mudra/internal/monitoring"
	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrNotInitialized is returned when the simulator is used before Resize.
	ErrNotInitialized = errors.New("field simulator not initialized")
	// ErrDisposed is returned by every operation after Dispose.
	ErrDisposed = errors.New("field simulator disposed")
)

const minDistance = 1e-9

// Simulator owns the lattice, the ripples and the force slots. It is not
// safe for concurrent use; one goroutine drives every method.
type Simulator struct {
	cfg Config

	width, height int
	cols, rows    int
	points        []MeshPoint
	ripples       []Ripple
	forces        [numSlots]Force

	time  float64
	steps int

	// dirty is set by Step and cleared when the render buffers are synced.
	dirty       bool
	positions   []float32
	intensities []float32

	initialized bool
	disposed    bool
}

// New creates a simulator. Resize must be called before it can step.
func New(cfg Config) *Simulator {
	return &Simulator{cfg: cfg}
}

// Config returns the simulator constants.
func (s *Simulator) Config() Config {
	return s.cfg
}

func (s *Simulator) check() error {
	if s.disposed {
		return ErrDisposed
	}
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Resize discards the lattice and builds a new one covering width x height
// pixels. Ripples and force fields are dropped with it.
func (s *Simulator) Resize(width, height int) error {
	if s.disposed {
		return ErrDisposed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid viewport %dx%d", width, height)
	}

	spacing := s.cfg.Spacing
	cols := int(float64(width)/spacing) + 1
	rows := int(float64(height)/spacing) + 1
	offX := (float64(width) - float64(cols-1)*spacing) / 2
	offY := (float64(height) - float64(rows-1)*spacing) / 2

	points := make([]MeshPoint, 0, cols*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			rest := r2.Vec{X: offX + float64(c)*spacing, Y: offY + float64(r)*spacing}
			points = append(points, MeshPoint{
				Position: rest,
				Rest:     rest,
				Pinned:   r == 0 || c == 0 || r == rows-1 || c == cols-1,
			})
		}
	}

	s.width, s.height = width, height
	s.cols, s.rows = cols, rows
	s.points = points
	s.ripples = s.ripples[:0]
	s.forces = [numSlots]Force{}
	s.positions = make([]float32, 2*len(points))
	s.intensities = make([]float32, len(points))
	s.dirty = true
	s.initialized = true

	monitoring.Logf("field: lattice %dx%d (%d points) for %dx%d viewport", cols, rows, len(points), width, height)
	return nil
}

// toPixels maps a normalized viewport coordinate to pixels.
func (s *Simulator) toPixels(v r2.Vec) r2.Vec {
	return r2.Vec{X: v.X * float64(s.width), Y: v.Y * float64(s.height)}
}

// TriggerRipple starts a unit-strength ripple at a normalized origin.
func (s *Simulator) TriggerRipple(origin r2.Vec) error {
	return s.addRipple(origin, 1)
}

// TriggerBurst starts a ripple whose strength grows with a 0..1 charge.
func (s *Simulator) TriggerBurst(origin r2.Vec, intensity float64) error {
	intensity = clamp01(intensity)
	return s.addRipple(origin, 1+intensity*s.cfg.BurstGain)
}

func (s *Simulator) addRipple(origin r2.Vec, strength float64) error {
	if err := s.check(); err != nil {
		return err
	}
	s.evict(s.cfg.MaxRipples - 1)
	s.ripples = append(s.ripples, Ripple{
		Center:   s.toPixels(origin),
		Start:    s.time,
		Strength: strength,
		Active:   true,
	})
	return nil
}

// evict removes the oldest active ripples until at most keep remain active.
func (s *Simulator) evict(keep int) {
	for s.activeRipples() > keep {
		for i := range s.ripples {
			if s.ripples[i].Active {
				s.ripples = append(s.ripples[:i], s.ripples[i+1:]...)
				break
			}
		}
	}
}

func (s *Simulator) activeRipples() int {
	n := 0
	for i := range s.ripples {
		if s.ripples[i].Active {
			n++
		}
	}
	return n
}

// SetForceField places a slot's field at a normalized center, replacing any
// field already in the slot.
func (s *Simulator) SetForceField(slot Slot, center r2.Vec) error {
	if err := s.check(); err != nil {
		return err
	}
	if !slot.valid() {
		return fmt.Errorf("unknown force slot %d", int(slot))
	}
	s.forces[slot] = Force{Kind: slot.kind(), Center: s.toPixels(center)}
	return nil
}

// ClearForceField empties a slot. Clearing an empty slot is a no-op.
func (s *Simulator) ClearForceField(slot Slot) error {
	if err := s.check(); err != nil {
		return err
	}
	if !slot.valid() {
		return fmt.Errorf("unknown force slot %d", int(slot))
	}
	s.forces[slot] = Force{Kind: ForceNone}
	return nil
}

// Step advances the simulation by dt seconds.
func (s *Simulator) Step(dt float64) error {
	if err := s.check(); err != nil {
		return err
	}
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}
	s.time += dt
	s.steps++

	s.decay()
	s.applyRipples()
	if s.steps%s.cfg.PruneInterval == 0 {
		s.prune()
	}
	s.evict(s.cfg.MaxRipples)
	s.relax()
	s.applyForces()

	s.dirty = true
	return nil
}

func (s *Simulator) decay() {
	for i := range s.points {
		s.points[i].Intensity *= s.cfg.IntensityDecay
	}
}

// applyRipples measures ring distance from rest positions so the ring stays
// round while the mesh is displaced.
func (s *Simulator) applyRipples() {
	width := s.cfg.RippleWidth
	for ri := range s.ripples {
		r := &s.ripples[ri]
		if !r.Active {
			continue
		}

		elapsed := s.time - r.Start
		if elapsed >= s.cfg.RippleDuration {
			r.Active = false
			r.EndedAt = s.time
			continue
		}

		radius := elapsed * s.cfg.RippleSpeed
		fade := 1 - elapsed/s.cfg.RippleDuration

		for i := range s.points {
			p := &s.points[i]
			if p.Pinned {
				continue
			}

			offset := r2.Sub(p.Rest, r.Center)
			d := r2.Norm(offset)
			ring := math.Abs(d - radius)
			if ring > width {
				continue
			}

			amount := (1 - ring/width) * fade * r.Strength
			if v := math.Min(1, amount); v > p.Intensity {
				p.Intensity = v
			}
			if d > minDistance {
				p.Velocity = r2.Add(p.Velocity, r2.Scale(amount*s.cfg.RippleForce/d, offset))
			}
		}
	}
}

// prune drops ripples that have been inactive for at least PruneAfter.
func (s *Simulator) prune() {
	kept := s.ripples[:0]
	for _, r := range s.ripples {
		if !r.Active && s.time-r.EndedAt >= s.cfg.PruneAfter {
			continue
		}
		kept = append(kept, r)
	}
	s.ripples = kept
}

func (s *Simulator) relax() {
	k, damping := s.cfg.Stiffness, s.cfg.Damping
	for i := range s.points {
		p := &s.points[i]
		if p.Pinned {
			continue
		}
		p.Velocity = r2.Add(p.Velocity, r2.Scale(k, r2.Sub(p.Rest, p.Position)))
		p.Velocity = r2.Scale(damping, p.Velocity)
		p.Position = r2.Add(p.Position, p.Velocity)
	}
}

// applyForces evaluates each live field against current positions.
func (s *Simulator) applyForces() {
	radius := s.cfg.InteractionRadius
	for _, f := range s.forces {
		var strength, glow float64
		switch f.Kind {
		case ForceNone:
			continue
		case ForceRepulsion:
			strength, glow = s.cfg.RepulsionStrength, s.cfg.RepulsionGlow
		case ForceAttraction:
			strength, glow = s.cfg.AttractionStrength, s.cfg.AttractionGlow
		case ForceVortex:
			strength, glow = s.cfg.VortexStrength, s.cfg.VortexGlow
		default:
			panic(fmt.Sprintf("field: unhandled force kind %v", f.Kind))
		}

		for i := range s.points {
			p := &s.points[i]
			if p.Pinned {
				continue
			}

			offset := r2.Sub(p.Position, f.Center)
			d := r2.Norm(offset)
			if d >= radius || d < minDistance {
				continue
			}
			falloff := 1 - d/radius
			dir := r2.Scale(1/d, offset)

			var dv r2.Vec
			switch f.Kind {
			case ForceRepulsion:
				dv = r2.Scale(falloff*strength, dir)
			case ForceAttraction:
				dv = r2.Scale(-falloff*strength, dir)
			case ForceVortex:
				dv = r2.Scale(falloff*strength, r2.Vec{X: -dir.Y, Y: dir.X})
			}
			p.Velocity = r2.Add(p.Velocity, dv)
			p.Intensity = math.Min(1, p.Intensity+falloff*glow)
		}
	}
}

// Snapshot copies the render buffers, syncing them first if a step happened
// since the last sync.
func (s *Simulator) Snapshot() (Snapshot, error) {
	if err := s.check(); err != nil {
		return Snapshot{}, err
	}
	if s.dirty {
		s.sync()
	}

	snap := Snapshot{
		Width:         s.width,
		Height:        s.height,
		Cols:          s.cols,
		Rows:          s.rows,
		Count:         len(s.points),
		Positions:     make([]float32, len(s.positions)),
		Intensities:   make([]float32, len(s.intensities)),
		ActiveRipples: s.activeRipples(),
		Forces:        s.forces,
	}
	copy(snap.Positions, s.positions)
	copy(snap.Intensities, s.intensities)
	return snap, nil
}

func (s *Simulator) sync() {
	for i, p := range s.points {
		s.positions[2*i] = float32(p.Position.X)
		s.positions[2*i+1] = float32(p.Position.Y)
		s.intensities[i] = float32(p.Intensity)
	}
	s.dirty = false
}

// Reset returns every point to rest with no velocity or glow, and drops all
// ripples and force fields.
func (s *Simulator) Reset() error {
	if err := s.check(); err != nil {
		return err
	}
	for i := range s.points {
		p := &s.points[i]
		p.Position = p.Rest
		p.Velocity = r2.Vec{}
		p.Intensity = 0
	}
	s.ripples = s.ripples[:0]
	s.forces = [numSlots]Force{}
	s.dirty = true
	return nil
}

// Dispose releases the lattice. Every later call fails with ErrDisposed.
func (s *Simulator) Dispose() {
	if s.disposed {
		return
	}
	s.points = nil
	s.ripples = nil
	s.forces = [numSlots]Force{}
	s.positions = nil
	s.intensities = nil
	s.initialized = false
	s.disposed = true
	monitoring.Logf("field: disposed after %d steps", s.steps)
}

// Stats reports the current activity of the simulator.
func (s *Simulator) Stats() (Stats, error) {
	if err := s.check(); err != nil {
		return Stats{}, err
	}
	st := Stats{
		Time:          s.time,
		Steps:         s.steps,
		Points:        len(s.points),
		ActiveRipples: s.activeRipples(),
		TotalRipples:  len(s.ripples),
	}
	for _, p := range s.points {
		st.KineticEnergy += 0.5 * r2.Norm2(p.Velocity)
		st.PeakIntensity = math.Max(st.PeakIntensity, p.Intensity)
	}
	for _, f := range s.forces {
		if f.Kind != ForceNone {
			st.LiveForces++
		}
	}
	return st, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
