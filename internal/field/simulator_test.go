package field

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	testWidth  = 400
	testHeight = 300
	frame      = 1.0 / 60
)

func newTestSimulator(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	require.NoError(t, cfg.Validate())
	s := New(cfg)
	require.NoError(t, s.Resize(testWidth, testHeight))
	return s
}

func stepN(t *testing.T, s *Simulator, n int, dt float64) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, s.Step(dt))
	}
}

// pointAt returns the index of the lattice point resting at col, row.
func pointAt(s *Simulator, col, row int) int {
	return row*s.cols + col
}

func TestSimulator_Lifecycle(t *testing.T) {
	s := New(DefaultConfig())

	assert.ErrorIs(t, s.Step(frame), ErrNotInitialized)
	assert.ErrorIs(t, s.TriggerRipple(r2.Vec{X: 0.5, Y: 0.5}), ErrNotInitialized)
	assert.ErrorIs(t, s.SetForceField(SlotVortex, r2.Vec{}), ErrNotInitialized)
	_, err := s.Snapshot()
	assert.ErrorIs(t, err, ErrNotInitialized)

	assert.Error(t, s.Resize(0, 100))
	require.NoError(t, s.Resize(testWidth, testHeight))
	require.NoError(t, s.Step(frame))

	s.Dispose()
	s.Dispose()

	assert.ErrorIs(t, s.Step(frame), ErrDisposed)
	assert.ErrorIs(t, s.Resize(testWidth, testHeight), ErrDisposed)
	assert.ErrorIs(t, s.Reset(), ErrDisposed)
	assert.ErrorIs(t, s.TriggerBurst(r2.Vec{}, 1), ErrDisposed)
	assert.ErrorIs(t, s.ClearForceField(SlotRepulsion), ErrDisposed)
	_, err = s.Stats()
	assert.ErrorIs(t, err, ErrDisposed)
	assert.Nil(t, s.points)
	assert.Nil(t, s.ripples)
}

func TestSimulator_Lattice(t *testing.T) {
	s := newTestSimulator(t, DefaultConfig())

	assert.Equal(t, 21, s.cols)
	assert.Equal(t, 16, s.rows)
	require.Len(t, s.points, s.cols*s.rows)

	for r := 0; r < s.rows; r++ {
		for c := 0; c < s.cols; c++ {
			p := s.points[pointAt(s, c, r)]
			boundary := r == 0 || c == 0 || r == s.rows-1 || c == s.cols-1
			assert.Equal(t, boundary, p.Pinned, "point %d,%d", c, r)
			assert.Equal(t, p.Rest, p.Position)
			assert.Zero(t, p.Velocity)
		}
	}

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, len(s.points), snap.Count)
	assert.Len(t, snap.Positions, 2*snap.Count)
	assert.Len(t, snap.Intensities, snap.Count)

	t.Run("resize rebuilds", func(t *testing.T) {
		require.NoError(t, s.TriggerRipple(r2.Vec{X: 0.5, Y: 0.5}))
		require.NoError(t, s.SetForceField(SlotAttraction, r2.Vec{X: 0.5, Y: 0.5}))

		require.NoError(t, s.Resize(200, 100))

		assert.Len(t, s.points, 11*6)
		st, err := s.Stats()
		require.NoError(t, err)
		assert.Zero(t, st.TotalRipples)
		assert.Zero(t, st.LiveForces)
	})
}

func TestSimulator_PinnedPointsNeverMove(t *testing.T) {
	s := newTestSimulator(t, DefaultConfig())

	require.NoError(t, s.SetForceField(SlotRepulsion, r2.Vec{X: 0.02, Y: 0.02}))
	require.NoError(t, s.SetForceField(SlotAttraction, r2.Vec{X: 0.98, Y: 0.5}))
	require.NoError(t, s.SetForceField(SlotVortex, r2.Vec{X: 0.5, Y: 0.99}))

	for i := 0; i < 300; i++ {
		if i%20 == 0 {
			require.NoError(t, s.TriggerBurst(r2.Vec{X: 0, Y: float64(i%3) / 2}, 1))
		}
		require.NoError(t, s.Step(frame))
	}

	moved := 0
	for _, p := range s.points {
		if p.Pinned {
			assert.Equal(t, p.Rest, p.Position)
			assert.Zero(t, p.Velocity)
			continue
		}
		if p.Position != p.Rest {
			moved++
		}
	}
	assert.Positive(t, moved, "expected interior points to be displaced")
}

func TestSimulator_Reset(t *testing.T) {
	s := newTestSimulator(t, DefaultConfig())

	require.NoError(t, s.TriggerRipple(r2.Vec{X: 0.3, Y: 0.3}))
	require.NoError(t, s.SetForceField(SlotVortex, r2.Vec{X: 0.5, Y: 0.5}))
	stepN(t, s, 40, frame)

	require.NoError(t, s.Reset())

	for _, p := range s.points {
		assert.Equal(t, p.Rest, p.Position)
		assert.Zero(t, p.Velocity)
		assert.Zero(t, p.Intensity)
	}

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Zero(t, snap.ActiveRipples)
	for _, f := range snap.Forces {
		assert.Equal(t, ForceNone, f.Kind)
	}
	for i, v := range snap.Intensities {
		assert.Zero(t, v, "intensity %d", i)
	}

	// The mesh stays at rest once nothing drives it.
	stepN(t, s, 10, frame)
	st, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.KineticEnergy)
}

func TestSimulator_RippleExpiresAndIsPruned(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RippleDuration = 2
	cfg.PruneAfter = 1
	cfg.PruneInterval = 4
	s := newTestSimulator(t, cfg)

	stepN(t, s, 3, 0.25)
	require.NoError(t, s.TriggerRipple(r2.Vec{X: 0.5, Y: 0.5}))

	stepN(t, s, 7, 0.25)
	require.Len(t, s.ripples, 1)
	assert.True(t, s.ripples[0].Active, "ripple should live until its duration elapses")

	require.NoError(t, s.Step(0.25))
	require.Len(t, s.ripples, 1)
	assert.False(t, s.ripples[0].Active)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Zero(t, snap.ActiveRipples)

	stepN(t, s, 8, 0.25)
	st, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.TotalRipples, "inactive ripple should be pruned")
}

func TestSimulator_MaxRipplesEvictsOldest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRipples = 4
	s := newTestSimulator(t, cfg)

	for i := 0; i < 7; i++ {
		require.NoError(t, s.TriggerRipple(r2.Vec{X: float64(i) / 10, Y: 0.5}))
		require.NoError(t, s.Step(frame))
	}

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 4, snap.ActiveRipples)

	var centers []float64
	for _, r := range s.ripples {
		if r.Active {
			centers = append(centers, r.Center.X)
		}
	}
	assert.InDeltaSlice(t, []float64{120, 160, 200, 240}, centers, 1e-9)
}

func TestSimulator_IntensityIsMaxHold(t *testing.T) {
	single := newTestSimulator(t, DefaultConfig())
	double := newTestSimulator(t, DefaultConfig())

	origin := r2.Vec{X: 0.5, Y: 0.5}
	require.NoError(t, single.TriggerRipple(origin))
	require.NoError(t, double.TriggerRipple(origin))
	require.NoError(t, double.TriggerRipple(origin))

	for i := 0; i < 10; i++ {
		require.NoError(t, single.Step(frame))
		require.NoError(t, double.Step(frame))
	}

	a, err := single.Snapshot()
	require.NoError(t, err)
	b, err := double.Snapshot()
	require.NoError(t, err)

	lit := 0
	for i := range a.Intensities {
		assert.InDelta(t, a.Intensities[i], b.Intensities[i], 1e-6, "point %d", i)
		assert.LessOrEqual(t, b.Intensities[i], float32(1))
		if a.Intensities[i] > 0 {
			lit++
		}
	}
	assert.Positive(t, lit)
}

func TestSimulator_IntensityDecays(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RippleDuration = 0.1
	s := newTestSimulator(t, cfg)

	require.NoError(t, s.TriggerRipple(r2.Vec{X: 0.5, Y: 0.5}))
	stepN(t, s, 3, 0.05)
	require.Zero(t, s.activeRipples())

	before := make([]float64, len(s.points))
	for i, p := range s.points {
		before[i] = p.Intensity
	}
	require.NoError(t, s.Step(frame))

	for i, p := range s.points {
		assert.InDelta(t, before[i]*cfg.IntensityDecay, p.Intensity, 1e-12)
	}
}

func TestSimulator_BurstStrength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BurstGain = 2
	s := newTestSimulator(t, cfg)

	require.NoError(t, s.TriggerBurst(r2.Vec{X: 0.5, Y: 0.5}, 0.5))
	require.NoError(t, s.TriggerBurst(r2.Vec{X: 0.5, Y: 0.5}, 7))
	require.NoError(t, s.TriggerRipple(r2.Vec{X: 0.5, Y: 0.5}))

	require.Len(t, s.ripples, 3)
	assert.InDelta(t, 2.0, s.ripples[0].Strength, 1e-12)
	assert.InDelta(t, 3.0, s.ripples[1].Strength, 1e-12)
	assert.InDelta(t, 1.0, s.ripples[2].Strength, 1e-12)
	assert.Equal(t, r2.Vec{X: 200, Y: 150}, s.ripples[0].Center)
}

func TestSimulator_ForceDirections(t *testing.T) {
	center := r2.Vec{X: 0.5, Y: 0.5}

	tests := []struct {
		slot  Slot
		check func(t *testing.T, radial, v r2.Vec)
	}{
		{SlotRepulsion, func(t *testing.T, radial, v r2.Vec) {
			assert.Positive(t, r2.Dot(radial, v), "repulsion should push outward")
		}},
		{SlotAttraction, func(t *testing.T, radial, v r2.Vec) {
			assert.Negative(t, r2.Dot(radial, v), "attraction should pull inward")
		}},
		{SlotVortex, func(t *testing.T, radial, v r2.Vec) {
			assert.InDelta(t, 0, r2.Dot(radial, v), 1e-12, "vortex should be tangential")
			assert.Positive(t, r2.Norm(v))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.slot.String(), func(t *testing.T) {
			s := newTestSimulator(t, DefaultConfig())
			require.NoError(t, s.SetForceField(tt.slot, center))
			require.NoError(t, s.Step(frame))

			p := s.points[pointAt(s, 11, 7)]
			require.Equal(t, r2.Vec{X: 220, Y: 140}, p.Rest)

			tt.check(t, r2.Unit(r2.Sub(p.Rest, r2.Vec{X: 200, Y: 150})), p.Velocity)
			assert.Positive(t, p.Intensity, "fields should leave a glow")

			far := s.points[pointAt(s, 19, 14)]
			assert.Zero(t, far.Velocity, "points outside the radius are untouched")
		})
	}

	t.Run("unknown slot", func(t *testing.T) {
		s := newTestSimulator(t, DefaultConfig())
		assert.Error(t, s.SetForceField(Slot(9), center))
		assert.Error(t, s.ClearForceField(Slot(-1)))
	})
}

func TestSimulator_ClearedForceLeavesNoResidue(t *testing.T) {
	s := newTestSimulator(t, DefaultConfig())
	cfg := s.Config()

	require.NoError(t, s.SetForceField(SlotRepulsion, r2.Vec{X: 0.5, Y: 0.5}))
	stepN(t, s, 15, frame)
	require.NoError(t, s.ClearForceField(SlotRepulsion))

	for n := 0; n < 5; n++ {
		prev := make([]MeshPoint, len(s.points))
		copy(prev, s.points)

		require.NoError(t, s.Step(frame))

		for i, p := range s.points {
			if p.Pinned {
				continue
			}
			q := prev[i]
			v := r2.Scale(cfg.Damping, r2.Add(q.Velocity, r2.Scale(cfg.Stiffness, r2.Sub(q.Rest, q.Position))))
			pos := r2.Add(q.Position, v)
			assert.InDelta(t, v.X, p.Velocity.X, 1e-12)
			assert.InDelta(t, v.Y, p.Velocity.Y, 1e-12)
			assert.InDelta(t, pos.X, p.Position.X, 1e-12)
			assert.InDelta(t, pos.Y, p.Position.Y, 1e-12)
			assert.InDelta(t, q.Intensity*cfg.IntensityDecay, p.Intensity, 1e-12)
		}
	}
}

func TestSimulator_StableAtSixtyHertz(t *testing.T) {
	s := newTestSimulator(t, DefaultConfig())

	require.NoError(t, s.SetForceField(SlotVortex, r2.Vec{X: 0.5, Y: 0.5}))
	require.NoError(t, s.SetForceField(SlotAttraction, r2.Vec{X: 0.3, Y: 0.5}))
	for i := 0; i < 600; i++ {
		if i%15 == 0 {
			require.NoError(t, s.TriggerBurst(r2.Vec{X: 0.7, Y: 0.4}, 1))
		}
		require.NoError(t, s.Step(frame))
	}

	for _, p := range s.points {
		require.False(t, math.IsNaN(p.Position.X) || math.IsNaN(p.Position.Y))
		assert.Less(t, r2.Norm(r2.Sub(p.Position, p.Rest)), float64(testWidth))
	}

	require.NoError(t, s.ClearForceField(SlotVortex))
	require.NoError(t, s.ClearForceField(SlotAttraction))
	stepN(t, s, 1200, frame)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Less(t, st.KineticEnergy, 1e-3, "energy should dissipate once forces stop")
}

func TestSimulator_SnapshotIsLazyCopy(t *testing.T) {
	s := newTestSimulator(t, DefaultConfig())

	require.NoError(t, s.SetForceField(SlotRepulsion, r2.Vec{X: 0.5, Y: 0.5}))
	require.NoError(t, s.Step(frame))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	i := pointAt(s, 11, 7)
	assert.Equal(t, float32(s.points[i].Position.X), snap.Positions[2*i])
	assert.Equal(t, ForceRepulsion, snap.Forces[SlotRepulsion].Kind)
	assert.Equal(t, r2.Vec{X: 200, Y: 150}, snap.Forces[SlotRepulsion].Center)

	snap.Positions[2*i] = -1
	again, err := s.Snapshot()
	require.NoError(t, err)
	assert.NotEqual(t, float32(-1), again.Positions[2*i], "snapshots must not alias internal buffers")

	// Without a step in between the buffers are not rebuilt.
	s.points[i].Position.X = 9999
	stale, err := s.Snapshot()
	require.NoError(t, err)
	assert.NotEqual(t, float32(9999), stale.Positions[2*i])

	require.NoError(t, s.Step(frame))
	fresh, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, float32(s.points[i].Position.X), fresh.Positions[2*i])
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"spacing", func(c *Config) { c.Spacing = 0 }},
		{"damping at one", func(c *Config) { c.Damping = 1 }},
		{"stiffness", func(c *Config) { c.Stiffness = 0 }},
		{"decay", func(c *Config) { c.IntensityDecay = 1.2 }},
		{"max ripples", func(c *Config) { c.MaxRipples = 0 }},
		{"ripple width", func(c *Config) { c.RippleWidth = -3 }},
		{"radius", func(c *Config) { c.InteractionRadius = 0 }},
		{"strength", func(c *Config) { c.VortexStrength = -1 }},
		{"prune interval", func(c *Config) { c.PruneInterval = 0 }},
	}

	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
