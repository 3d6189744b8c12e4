package gesture

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// sample is what one machine sees of its hand in one tick.
type sample struct {
	present bool
	// suppressed marks a feature that must be read as released this tick.
	suppressed bool
	value      float64
	point      r3.Vec
}

// machine is the lifecycle of one (hand, type) pair:
// idle -> started -> active -> ended -> idle. Started may go straight to
// ended when the gesture is released or the hand is lost on the next tick.
type machine struct {
	key Key

	state         State
	sustained     int
	cooldownUntil int64
	startedAt     int64
	hold          float64
	charge        float64
	lastPoint     r3.Vec
	lastStrength  float64
}

func newMachine(key Key) *machine {
	return &machine{key: key, state: StateIdle}
}

func (m *machine) engaged() bool {
	return m.state == StateStarted || m.state == StateActive
}

// step advances the machine by one tick. dt is in seconds, now in
// milliseconds. It returns the event to emit, if any.
func (m *machine) step(s sample, now int64, dt float64, cfg *Config) (Event, bool) {
	if m.state == StateEnded {
		m.state = StateIdle
	}

	th := cfg.thresholds(m.key.Type)

	switch m.state {
	case StateIdle:
		if !s.present || s.suppressed || s.value > th.Engage {
			m.sustained = 0
			return Event{}, false
		}

		m.sustained++
		if m.sustained < cfg.MinSustainedFrames || now < m.cooldownUntil {
			return Event{}, false
		}

		str := strength(s.value, th)
		if m.key.Type != TypeFist && cfg.MinStartStrength > 0 && str < cfg.MinStartStrength {
			return Event{}, false
		}

		m.state = StateStarted
		m.startedAt = now
		m.hold = 0
		m.charge = 0
		m.lastPoint = s.point
		m.lastStrength = str
		return m.event(StateStarted, now, s.value, false), true

	case StateStarted, StateActive:
		m.hold += dt
		if m.key.Type == TypeHoldPinch {
			m.charge = chargeIntensity(m.hold, cfg.MaxChargeMs)
		}

		if !s.present {
			return m.end(now, m.lastStrength, cfg, true), true
		}

		m.lastPoint = s.point
		if s.suppressed || s.value >= th.Release {
			return m.end(now, s.value, cfg, false), true
		}

		m.lastStrength = strength(s.value, th)
		m.state = StateActive
		return m.event(StateActive, now, s.value, false), true
	}

	return Event{}, false
}

// end moves the machine to ended, arms the cooldown and reports the final
// captured charge.
func (m *machine) end(now int64, value float64, cfg *Config, forced bool) Event {
	m.state = StateEnded
	m.sustained = 0
	m.cooldownUntil = now + cfg.CooldownMs
	return m.event(StateEnded, now, value, forced)
}

func (m *machine) event(state State, now int64, value float64, forced bool) Event {
	return Event{
		Type:      m.key.Type,
		State:     state,
		Hand:      m.key.Hand,
		Timestamp: now,
		Data: EventData{
			Position:        flat(m.lastPoint),
			Position3D:      m.lastPoint,
			Distance:        value,
			Strength:        m.lastStrength,
			HoldDuration:    m.hold,
			ChargeIntensity: m.charge,
			Forced:          forced,
		},
	}
}

func (m *machine) status() Status {
	return Status{
		State:    m.state,
		Strength: m.lastStrength,
		Position: flat(m.lastPoint),
	}
}

func chargeIntensity(hold float64, maxChargeMs int64) float64 {
	c := hold * 1000 / float64(maxChargeMs)
	if c > 1 {
		return 1
	}
	return c
}
