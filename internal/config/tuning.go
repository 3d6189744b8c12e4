// Package config loads the JSON tuning file that overrides the engine
// defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/effect"
	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/field"
	"github.com/ayusman/mudra/internal/gesture"
)

// DefaultConfigPath is the repository copy of the default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// TuningConfig holds every tunable constant. Nil fields keep the component
// default, so partial files are safe. The same schema is served and accepted
// by /api/settings.
type TuningConfig struct {
	// Gesture params
	PinchEngage        *float64 `json:"pinch_engage,omitempty"`
	PinchRelease       *float64 `json:"pinch_release,omitempty"`
	HoldPinchEngage    *float64 `json:"hold_pinch_engage,omitempty"`
	HoldPinchRelease   *float64 `json:"hold_pinch_release,omitempty"`
	FistEngage         *float64 `json:"fist_engage,omitempty"`
	FistRelease        *float64 `json:"fist_release,omitempty"`
	MinSustainedFrames *int     `json:"min_sustained_frames,omitempty"`
	Cooldown           *string  `json:"cooldown,omitempty"`   // duration string like "250ms"
	MaxCharge          *string  `json:"max_charge,omitempty"` // duration string like "2s"
	MinStartStrength   *float64 `json:"min_start_strength,omitempty"`

	// Field params
	GridSpacing        *float64 `json:"grid_spacing,omitempty"`
	Stiffness          *float64 `json:"stiffness,omitempty"`
	Damping            *float64 `json:"damping,omitempty"`
	RippleSpeed        *float64 `json:"ripple_speed,omitempty"`
	RippleWidth        *float64 `json:"ripple_width,omitempty"`
	RippleDuration     *string  `json:"ripple_duration,omitempty"`
	RippleForce        *float64 `json:"ripple_force,omitempty"`
	MaxRipples         *int     `json:"max_ripples,omitempty"`
	BurstGain          *float64 `json:"burst_gain,omitempty"`
	IntensityDecay     *float64 `json:"intensity_decay,omitempty"`
	InteractionRadius  *float64 `json:"interaction_radius,omitempty"`
	RepulsionStrength  *float64 `json:"repulsion_strength,omitempty"`
	AttractionStrength *float64 `json:"attraction_strength,omitempty"`
	VortexStrength     *float64 `json:"vortex_strength,omitempty"`

	// Mapping params
	PrimaryHand *string `json:"primary_hand,omitempty"`
	MirrorX     *bool   `json:"mirror_x,omitempty"`

	// Engine params
	MaxDelta *string `json:"max_delta,omitempty"`
	Debug    *bool   `json:"debug,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with every field unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to the
// component defaults.
func DefaultTuningConfig() *TuningConfig {
	g := gesture.DefaultConfig()
	f := field.DefaultConfig()
	m := effect.DefaultConfig()
	e := engine.DefaultConfig()

	return &TuningConfig{
		PinchEngage:        ptrFloat64(g.Pinch.Engage),
		PinchRelease:       ptrFloat64(g.Pinch.Release),
		HoldPinchEngage:    ptrFloat64(g.HoldPinch.Engage),
		HoldPinchRelease:   ptrFloat64(g.HoldPinch.Release),
		FistEngage:         ptrFloat64(g.Fist.Engage),
		FistRelease:        ptrFloat64(g.Fist.Release),
		MinSustainedFrames: ptrInt(g.MinSustainedFrames),
		Cooldown:           ptrString((time.Duration(g.CooldownMs) * time.Millisecond).String()),
		MaxCharge:          ptrString((time.Duration(g.MaxChargeMs) * time.Millisecond).String()),
		MinStartStrength:   ptrFloat64(g.MinStartStrength),

		GridSpacing:        ptrFloat64(f.Spacing),
		Stiffness:          ptrFloat64(f.Stiffness),
		Damping:            ptrFloat64(f.Damping),
		RippleSpeed:        ptrFloat64(f.RippleSpeed),
		RippleWidth:        ptrFloat64(f.RippleWidth),
		RippleDuration:     ptrString(seconds(f.RippleDuration).String()),
		RippleForce:        ptrFloat64(f.RippleForce),
		MaxRipples:         ptrInt(f.MaxRipples),
		BurstGain:          ptrFloat64(f.BurstGain),
		IntensityDecay:     ptrFloat64(f.IntensityDecay),
		InteractionRadius:  ptrFloat64(f.InteractionRadius),
		RepulsionStrength:  ptrFloat64(f.RepulsionStrength),
		AttractionStrength: ptrFloat64(f.AttractionStrength),
		VortexStrength:     ptrFloat64(f.VortexStrength),

		PrimaryHand: ptrString(string(m.PrimaryHand)),
		MirrorX:     ptrBool(m.MirrorX),

		MaxDelta: ptrString(seconds(e.MaxDeltaSeconds).String()),
		Debug:    ptrBool(e.Debug),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseTuningConfig(data)
}

// ParseTuningConfig parses and validates tuning JSON.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("config too large: %d bytes (max %d)", len(data), maxFileSize)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate parses every duration and checks the resulting component configs.
func (c *TuningConfig) Validate() error {
	for name, d := range map[string]*string{
		"cooldown":        c.Cooldown,
		"max_charge":      c.MaxCharge,
		"ripple_duration": c.RippleDuration,
		"max_delta":       c.MaxDelta,
	} {
		if d == nil || *d == "" {
			continue
		}
		if _, err := time.ParseDuration(*d); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
		}
	}

	if c.PrimaryHand != nil {
		if h := detector.ParseHandedness(*c.PrimaryHand); h == detector.HandUnknown {
			return fmt.Errorf("primary_hand must be Left or Right, got %q", *c.PrimaryHand)
		}
	}

	return c.EngineConfig().Validate()
}

// Merge returns a copy of c with every field set in o overriding it.
func (c *TuningConfig) Merge(o *TuningConfig) *TuningConfig {
	out := *c
	if o == nil {
		return &out
	}

	replace(&out.PinchEngage, o.PinchEngage)
	replace(&out.PinchRelease, o.PinchRelease)
	replace(&out.HoldPinchEngage, o.HoldPinchEngage)
	replace(&out.HoldPinchRelease, o.HoldPinchRelease)
	replace(&out.FistEngage, o.FistEngage)
	replace(&out.FistRelease, o.FistRelease)
	replace(&out.MinSustainedFrames, o.MinSustainedFrames)
	replace(&out.Cooldown, o.Cooldown)
	replace(&out.MaxCharge, o.MaxCharge)
	replace(&out.MinStartStrength, o.MinStartStrength)

	replace(&out.GridSpacing, o.GridSpacing)
	replace(&out.Stiffness, o.Stiffness)
	replace(&out.Damping, o.Damping)
	replace(&out.RippleSpeed, o.RippleSpeed)
	replace(&out.RippleWidth, o.RippleWidth)
	replace(&out.RippleDuration, o.RippleDuration)
	replace(&out.RippleForce, o.RippleForce)
	replace(&out.MaxRipples, o.MaxRipples)
	replace(&out.BurstGain, o.BurstGain)
	replace(&out.IntensityDecay, o.IntensityDecay)
	replace(&out.InteractionRadius, o.InteractionRadius)
	replace(&out.RepulsionStrength, o.RepulsionStrength)
	replace(&out.AttractionStrength, o.AttractionStrength)
	replace(&out.VortexStrength, o.VortexStrength)

	replace(&out.PrimaryHand, o.PrimaryHand)
	replace(&out.MirrorX, o.MirrorX)
	replace(&out.MaxDelta, o.MaxDelta)
	replace(&out.Debug, o.Debug)
	return &out
}

func replace[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// GetCooldown returns the cooldown or the default.
func (c *TuningConfig) GetCooldown() time.Duration {
	return duration(c.Cooldown, time.Duration(gesture.DefaultConfig().CooldownMs)*time.Millisecond)
}

// GetMaxCharge returns the charge saturation time or the default.
func (c *TuningConfig) GetMaxCharge() time.Duration {
	return duration(c.MaxCharge, time.Duration(gesture.DefaultConfig().MaxChargeMs)*time.Millisecond)
}

// GetRippleDuration returns the ripple lifetime or the default.
func (c *TuningConfig) GetRippleDuration() time.Duration {
	return duration(c.RippleDuration, seconds(field.DefaultConfig().RippleDuration))
}

// GetMaxDelta returns the step clamp or the default.
func (c *TuningConfig) GetMaxDelta() time.Duration {
	return duration(c.MaxDelta, seconds(engine.DefaultConfig().MaxDeltaSeconds))
}

func duration(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

func overlay[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// GestureConfig overlays the set gesture fields on gesture.DefaultConfig.
func (c *TuningConfig) GestureConfig() gesture.Config {
	g := gesture.DefaultConfig()
	overlay(&g.Pinch.Engage, c.PinchEngage)
	overlay(&g.Pinch.Release, c.PinchRelease)
	overlay(&g.HoldPinch.Engage, c.HoldPinchEngage)
	overlay(&g.HoldPinch.Release, c.HoldPinchRelease)
	overlay(&g.Fist.Engage, c.FistEngage)
	overlay(&g.Fist.Release, c.FistRelease)
	overlay(&g.MinSustainedFrames, c.MinSustainedFrames)
	overlay(&g.MinStartStrength, c.MinStartStrength)
	g.CooldownMs = c.GetCooldown().Milliseconds()
	g.MaxChargeMs = c.GetMaxCharge().Milliseconds()
	return g
}

// FieldConfig overlays the set field fields on field.DefaultConfig.
func (c *TuningConfig) FieldConfig() field.Config {
	f := field.DefaultConfig()
	overlay(&f.Spacing, c.GridSpacing)
	overlay(&f.Stiffness, c.Stiffness)
	overlay(&f.Damping, c.Damping)
	overlay(&f.RippleSpeed, c.RippleSpeed)
	overlay(&f.RippleWidth, c.RippleWidth)
	overlay(&f.RippleForce, c.RippleForce)
	overlay(&f.MaxRipples, c.MaxRipples)
	overlay(&f.BurstGain, c.BurstGain)
	overlay(&f.IntensityDecay, c.IntensityDecay)
	overlay(&f.InteractionRadius, c.InteractionRadius)
	overlay(&f.RepulsionStrength, c.RepulsionStrength)
	overlay(&f.AttractionStrength, c.AttractionStrength)
	overlay(&f.VortexStrength, c.VortexStrength)
	f.RippleDuration = c.GetRippleDuration().Seconds()
	return f
}

// MapperConfig overlays the set mapping fields on effect.DefaultConfig.
func (c *TuningConfig) MapperConfig() effect.Config {
	m := effect.DefaultConfig()
	if c.PrimaryHand != nil {
		m.PrimaryHand = detector.ParseHandedness(*c.PrimaryHand)
	}
	overlay(&m.MirrorX, c.MirrorX)
	return m
}

// EngineConfig assembles the full engine config.
func (c *TuningConfig) EngineConfig() engine.Config {
	e := engine.DefaultConfig()
	e.Gesture = c.GestureConfig()
	e.Field = c.FieldConfig()
	e.Mapper = c.MapperConfig()
	e.MaxDeltaSeconds = c.GetMaxDelta().Seconds()
	overlay(&e.Debug, c.Debug)
	return e
}
