package field

import (
	"errors"
	"fmt"
)

// Config holds the simulator constants. Distances are in pixels, times in
// seconds and per-tick factors are applied once per Step.
type Config struct {
	Spacing float64

	Stiffness float64
	Damping   float64

	RippleSpeed    float64
	RippleWidth    float64
	RippleDuration float64
	RippleForce    float64
	MaxRipples     int
	// BurstGain scales a burst ripple's strength by the released charge.
	BurstGain float64

	IntensityDecay float64

	InteractionRadius  float64
	RepulsionStrength  float64
	AttractionStrength float64
	VortexStrength     float64
	RepulsionGlow      float64
	AttractionGlow     float64
	VortexGlow         float64

	// PruneAfter is how long a ripple stays inactive before it is dropped.
	PruneAfter float64
	// PruneInterval is the number of steps between prune passes.
	PruneInterval int
}

// DefaultConfig returns constants tuned for a ~60 Hz tick.
func DefaultConfig() Config {
	return Config{
		Spacing:            20,
		Stiffness:          0.03,
		Damping:            0.92,
		RippleSpeed:        400,
		RippleWidth:        40,
		RippleDuration:     2,
		RippleForce:        0.5,
		MaxRipples:         8,
		BurstGain:          1.5,
		IntensityDecay:     0.95,
		InteractionRadius:  150,
		RepulsionStrength:  1.5,
		AttractionStrength: 1.2,
		VortexStrength:     1,
		RepulsionGlow:      0.1,
		AttractionGlow:     0.2,
		VortexGlow:         0.1,
		PruneAfter:         1,
		PruneInterval:      30,
	}
}

// Validate reports the first constant outside its stable range.
func (c Config) Validate() error {
	switch {
	case c.Spacing <= 0:
		return fmt.Errorf("spacing must be positive, got %f", c.Spacing)
	case c.Stiffness <= 0 || c.Stiffness >= 1:
		return fmt.Errorf("stiffness must be within (0, 1), got %f", c.Stiffness)
	case c.Damping <= 0 || c.Damping >= 1:
		return fmt.Errorf("damping must be within (0, 1), got %f", c.Damping)
	case c.IntensityDecay <= 0 || c.IntensityDecay >= 1:
		return fmt.Errorf("intensity decay must be within (0, 1), got %f", c.IntensityDecay)
	case c.RippleSpeed <= 0:
		return fmt.Errorf("ripple speed must be positive, got %f", c.RippleSpeed)
	case c.RippleWidth <= 0:
		return fmt.Errorf("ripple width must be positive, got %f", c.RippleWidth)
	case c.RippleDuration <= 0:
		return fmt.Errorf("ripple duration must be positive, got %f", c.RippleDuration)
	case c.RippleForce < 0:
		return errors.New("ripple force must not be negative")
	case c.MaxRipples < 1:
		return fmt.Errorf("max ripples must be at least 1, got %d", c.MaxRipples)
	case c.BurstGain < 0:
		return errors.New("burst gain must not be negative")
	case c.InteractionRadius <= 0:
		return fmt.Errorf("interaction radius must be positive, got %f", c.InteractionRadius)
	case c.RepulsionStrength < 0 || c.AttractionStrength < 0 || c.VortexStrength < 0:
		return errors.New("force strengths must not be negative")
	case c.RepulsionGlow < 0 || c.AttractionGlow < 0 || c.VortexGlow < 0:
		return errors.New("force glow must not be negative")
	case c.PruneAfter < 0:
		return errors.New("prune delay must not be negative")
	case c.PruneInterval < 1:
		return fmt.Errorf("prune interval must be at least 1, got %d", c.PruneInterval)
	}
	return nil
}
