// Package engine couples the gesture classifier, the effect mapper and the
// field simulator into one per-tick step.
package engine

import (
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/effect"
	"github.com/ayusman/mudra/internal/field"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/monitoring"
	"gonum.org/v1/gonum/num/quat"
)

var (
	// ErrNotStarted is returned by Tick before Start or after Stop.
	ErrNotStarted = errors.New("engine not started")
	// ErrDisposed is returned by every operation after Dispose.
	ErrDisposed = errors.New("engine disposed")
)

// Config aggregates the component configs.
type Config struct {
	Gesture gesture.Config
	Field   field.Config
	Mapper  effect.Config

	// MaxDeltaSeconds caps the step size after a stall.
	MaxDeltaSeconds float64
	// Debug logs every gesture transition.
	Debug bool
}

// DefaultConfig returns the default config of every component.
func DefaultConfig() Config {
	return Config{
		Gesture:         gesture.DefaultConfig(),
		Field:           field.DefaultConfig(),
		Mapper:          effect.DefaultConfig(),
		MaxDeltaSeconds: 0.1,
	}
}

// Validate validates every component config.
func (c Config) Validate() error {
	if err := c.Gesture.Validate(); err != nil {
		return fmt.Errorf("gesture: %w", err)
	}
	if err := c.Field.Validate(); err != nil {
		return fmt.Errorf("field: %w", err)
	}
	if err := c.Mapper.Validate(); err != nil {
		return fmt.Errorf("mapper: %w", err)
	}
	if c.MaxDeltaSeconds <= 0 {
		return fmt.Errorf("max delta must be positive, got %f", c.MaxDeltaSeconds)
	}
	return nil
}

// TickResult is everything one tick produced. It shares no memory with the
// engine and may be handed to other goroutines.
type TickResult struct {
	Seq         uint64          `json:"seq"`
	Timestamp   int64           `json:"timestamp"`
	Delta       float64         `json:"delta"`
	Events      []gesture.Event `json:"events"`
	Snapshot    field.Snapshot  `json:"snapshot"`
	Rotation    quat.Number     `json:"-"`
	HasRotation bool            `json:"-"`
}

// Engine runs classify, map, step and snapshot in that order. Like its
// components it is driven by a single goroutine.
type Engine struct {
	cfg        Config
	classifier *gesture.Classifier
	sim        *field.Simulator
	mapper     *effect.Mapper
	sinks      effect.Sinks

	lastTs   int64
	hasTs    bool
	seq      uint64
	started  bool
	disposed bool
}

// New builds an engine with a width x height lattice.
func New(cfg Config, width, height int) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sim := field.New(cfg.Field)
	if err := sim.Resize(width, height); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		classifier: gesture.NewClassifier(cfg.Gesture),
		sim:        sim,
	}
	e.mapper = effect.NewMapper(cfg.Mapper, sim, nil)
	return e, nil
}

// Config returns the engine config.
func (e *Engine) Config() Config {
	return e.cfg
}

// AddCueSink registers a sink for mapper cues.
func (e *Engine) AddCueSink(sink effect.CueSink) {
	e.sinks = append(e.sinks, sink)
	e.mapper.SetSink(e.sinks)
}

// Start enables ticking. Starting a started engine is a no-op.
func (e *Engine) Start() error {
	if e.disposed {
		return ErrDisposed
	}
	if !e.started {
		e.started = true
		monitoring.Logf("engine: started")
	}
	return nil
}

// Stop disables ticking. Nothing is in flight between ticks, so there is
// nothing to cancel.
func (e *Engine) Stop() {
	if e.started {
		e.started = false
		monitoring.Logf("engine: stopped after %d ticks", e.seq)
	}
}

// Running reports whether Tick will accept frames.
func (e *Engine) Running() bool {
	return e.started && !e.disposed
}

// Tick processes one landmark frame.
func (e *Engine) Tick(frame gesture.Frame) (*TickResult, error) {
	if e.disposed {
		return nil, ErrDisposed
	}
	if !e.started {
		return nil, ErrNotStarted
	}

	dt := e.delta(frame.TimestampMs)

	res, err := e.classifier.Detect(frame, frame.TimestampMs)
	if err != nil {
		return nil, err
	}
	if e.cfg.Debug {
		for _, ev := range res.Events {
			if ev.State != gesture.StateActive {
				monitoring.Logf("engine: %s %s %s at %d (charge %.2f, forced %v)",
					ev.Hand, ev.Type, ev.State, ev.Timestamp, ev.Data.ChargeIntensity, ev.Data.Forced)
			}
		}
	}

	if err := e.mapper.Apply(res.Events); err != nil {
		return nil, err
	}
	if err := e.sim.Step(dt); err != nil {
		return nil, err
	}
	snap, err := e.sim.Snapshot()
	if err != nil {
		return nil, err
	}

	e.seq++
	out := &TickResult{
		Seq:       e.seq,
		Timestamp: frame.TimestampMs,
		Delta:     dt,
		Events:    res.Events,
		Snapshot:  snap,
	}
	out.Rotation, out.HasRotation = res.CombinedRotation()
	return out, nil
}

// delta returns the clamped step in seconds since the previous frame.
func (e *Engine) delta(ts int64) float64 {
	defer func() {
		e.lastTs = ts
		e.hasTs = true
	}()
	if !e.hasTs || ts <= e.lastTs {
		return 0
	}
	dt := float64(ts-e.lastTs) / 1000
	if dt > e.cfg.MaxDeltaSeconds {
		return e.cfg.MaxDeltaSeconds
	}
	return dt
}

// Reset snaps the field back to rest. Gesture state is kept, so a held
// force field is re-applied on its next active tick.
func (e *Engine) Reset() error {
	if e.disposed {
		return ErrDisposed
	}
	return e.sim.Reset()
}

// Resize rebuilds the lattice for a new viewport.
func (e *Engine) Resize(width, height int) error {
	if e.disposed {
		return ErrDisposed
	}
	return e.sim.Resize(width, height)
}

// Snapshot returns the current render state without stepping.
func (e *Engine) Snapshot() (field.Snapshot, error) {
	if e.disposed {
		return field.Snapshot{}, ErrDisposed
	}
	return e.sim.Snapshot()
}

// Stats returns simulator statistics.
func (e *Engine) Stats() (field.Stats, error) {
	if e.disposed {
		return field.Stats{}, ErrDisposed
	}
	return e.sim.Stats()
}

// Dispose tears down the classifier and the simulator. The engine cannot be
// restarted afterwards.
func (e *Engine) Dispose() {
	if e.disposed {
		return
	}
	e.Stop()
	e.classifier.Dispose()
	e.sim.Dispose()
	e.sinks = nil
	e.mapper.SetSink(nil)
	e.disposed = true
}
