package effect

import (
	"fmt"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/field"
	"github.com/ayusman/mudra/internal/gesture"
	"gonum.org/v1/gonum/spatial/r2"
)

// Commander is the part of the field simulator the mapper drives.
type Commander interface {
	TriggerRipple(origin r2.Vec) error
	TriggerBurst(origin r2.Vec, intensity float64) error
	SetForceField(slot field.Slot, center r2.Vec) error
	ClearForceField(slot field.Slot) error
}

// Config selects the hand roles.
type Config struct {
	// PrimaryHand owns attraction and charge; the opposite hand owns
	// repulsion and vortex.
	PrimaryHand detector.Handedness
	// MirrorX flips normalized x so a selfie camera moves the field the way
	// the user moves.
	MirrorX bool
}

// DefaultConfig returns a right-handed, mirrored mapping.
func DefaultConfig() Config {
	return Config{PrimaryHand: detector.HandRight, MirrorX: true}
}

// Validate checks the primary hand is left or right.
func (c Config) Validate() error {
	if c.PrimaryHand != detector.HandLeft && c.PrimaryHand != detector.HandRight {
		return fmt.Errorf("primary hand must be Left or Right, got %q", c.PrimaryHand)
	}
	return nil
}

type role int

const (
	roleNone role = iota
	rolePrimary
	roleSecondary
)

// Mapper translates gesture events into simulator commands and cues.
type Mapper struct {
	cfg  Config
	cmd  Commander
	sink CueSink
}

// NewMapper creates a mapper. A nil sink discards cues.
func NewMapper(cfg Config, cmd Commander, sink CueSink) *Mapper {
	if sink == nil {
		sink = Discard
	}
	return &Mapper{cfg: cfg, cmd: cmd, sink: sink}
}

// Config returns the mapper configuration.
func (m *Mapper) Config() Config {
	return m.cfg
}

// SetSink replaces the cue sink.
func (m *Mapper) SetSink(sink CueSink) {
	if sink == nil {
		sink = Discard
	}
	m.sink = sink
}

func (m *Mapper) role(hand detector.Handedness) role {
	switch {
	case hand == m.cfg.PrimaryHand:
		return rolePrimary
	case hand == detector.HandLeft || hand == detector.HandRight:
		return roleSecondary
	}
	return roleNone
}

func (m *Mapper) position(e gesture.Event) r2.Vec {
	p := e.Data.Position
	if m.cfg.MirrorX {
		p.X = 1 - p.X
	}
	return p
}

// Apply maps one tick of events, in order. It stops at the first simulator
// error, which only happens on lifecycle misuse.
func (m *Mapper) Apply(events []gesture.Event) error {
	for _, e := range events {
		if err := m.apply(e); err != nil {
			return fmt.Errorf("map %s %s %s: %w", e.Hand, e.Type, e.State, err)
		}
	}
	return nil
}

func (m *Mapper) apply(e gesture.Event) error {
	r := m.role(e.Hand)
	switch e.Type {
	case gesture.TypePinch:
		if e.State == gesture.StateStarted {
			pos := m.position(e)
			if err := m.cmd.TriggerRipple(pos); err != nil {
				return err
			}
			m.emit(CueRipple, e, 0, pos, e.Data.Strength)
		}
		if r == roleSecondary {
			return m.force(field.SlotRepulsion, e)
		}
	case gesture.TypeFist:
		switch r {
		case rolePrimary:
			return m.force(field.SlotAttraction, e)
		case roleSecondary:
			return m.force(field.SlotVortex, e)
		}
	case gesture.TypeHoldPinch:
		if r == rolePrimary {
			return m.charge(e)
		}
	}
	return nil
}

// force keeps a slot's field in step with the gesture lifecycle.
func (m *Mapper) force(slot field.Slot, e gesture.Event) error {
	pos := m.position(e)
	switch e.State {
	case gesture.StateStarted:
		if err := m.cmd.SetForceField(slot, pos); err != nil {
			return err
		}
		m.emit(CueFieldStart, e, slot, pos, e.Data.Strength)
	case gesture.StateActive:
		return m.cmd.SetForceField(slot, pos)
	case gesture.StateEnded:
		if err := m.cmd.ClearForceField(slot); err != nil {
			return err
		}
		m.emit(CueFieldEnd, e, slot, pos, 0)
	}
	return nil
}

func (m *Mapper) charge(e gesture.Event) error {
	pos := m.position(e)
	switch e.State {
	case gesture.StateStarted:
		m.emit(CueChargeBegin, e, 0, pos, 0)
	case gesture.StateActive:
		m.emit(CueChargeUpdate, e, 0, pos, e.Data.ChargeIntensity)
	case gesture.StateEnded:
		if err := m.cmd.TriggerBurst(pos, e.Data.ChargeIntensity); err != nil {
			return err
		}
		m.emit(CueBurst, e, 0, pos, e.Data.ChargeIntensity)
	}
	return nil
}

func (m *Mapper) emit(kind CueKind, e gesture.Event, slot field.Slot, pos r2.Vec, intensity float64) {
	m.sink.Cue(Cue{
		Kind:      kind,
		Hand:      e.Hand,
		Slot:      slot,
		Position:  pos,
		Intensity: intensity,
		Timestamp: e.Timestamp,
	})
}
