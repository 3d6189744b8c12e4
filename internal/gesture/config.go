package gesture

import "fmt"

// Thresholds is a hysteresis band for one feature. Features are distances, so
// a value at or below Engage is a candidate and a value at or above Release
// ends the gesture. Release must be greater than Engage.
type Thresholds struct {
	Engage  float64
	Release float64
}

// Config holds classifier tuning.
type Config struct {
	Pinch     Thresholds
	HoldPinch Thresholds
	Fist      Thresholds

	// MinSustainedFrames is how many consecutive candidate ticks promote idle to started.
	MinSustainedFrames int
	// CooldownMs blocks a new STARTED for the same (hand, type) after ENDED.
	CooldownMs int64
	// MaxChargeMs is the hold time at which charge intensity saturates.
	MaxChargeMs int64
	// MinStartStrength gates STARTED for pinch types; 0 disables the gate.
	MinStartStrength float64
}

// DefaultConfig returns a Config tuned for MediaPipe landmarks at ~30-60 Hz.
func DefaultConfig() Config {
	return Config{
		Pinch:              Thresholds{Engage: 0.35, Release: 0.5},
		HoldPinch:          Thresholds{Engage: 0.35, Release: 0.5},
		Fist:               Thresholds{Engage: 1.3, Release: 1.7},
		MinSustainedFrames: 3,
		CooldownMs:         250,
		MaxChargeMs:        2000,
		MinStartStrength:   0,
	}
}

// Validate checks the threshold ordering and limits.
func (c Config) Validate() error {
	for name, th := range map[string]Thresholds{"pinch": c.Pinch, "hold_pinch": c.HoldPinch, "fist": c.Fist} {
		if th.Engage <= 0 {
			return fmt.Errorf("%s engage threshold must be positive, got %f", name, th.Engage)
		}
		if th.Release <= th.Engage {
			return fmt.Errorf("%s release threshold %f must exceed engage %f", name, th.Release, th.Engage)
		}
	}
	if c.MinSustainedFrames < 1 {
		return fmt.Errorf("min sustained frames must be at least 1, got %d", c.MinSustainedFrames)
	}
	if c.CooldownMs < 0 {
		return fmt.Errorf("cooldown must not be negative, got %d", c.CooldownMs)
	}
	if c.MaxChargeMs <= 0 {
		return fmt.Errorf("max charge time must be positive, got %d", c.MaxChargeMs)
	}
	if c.MinStartStrength < 0 || c.MinStartStrength > 1 {
		return fmt.Errorf("min start strength must be within 0..1, got %f", c.MinStartStrength)
	}
	return nil
}

func (c Config) thresholds(t Type) Thresholds {
	switch t {
	case TypeFist:
		return c.Fist
	case TypeHoldPinch:
		return c.HoldPinch
	default:
		return c.Pinch
	}
}
