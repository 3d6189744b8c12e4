package detector

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// Detector turns one camera frame into the hands seen in it.
type Detector interface {
	// Detect returns the hands in frame, or an empty slice when there are
	// none. Hands are not guaranteed to keep their position in the slice
	// across calls.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config tunes the landmark service.
type Config struct {
	// MaxHands caps the hands returned per frame. The most confident hands
	// are kept.
	MaxHands int
	// MinConfidence drops hands scored below it.
	MinConfidence float64
	// MinTrackingConf is passed to the service's tracker.
	MinTrackingConf float64

	// Script is the service entry point. Empty searches the install
	// locations.
	Script string
	// Python is the interpreter. Empty prefers a virtualenv near the binary
	// and falls back to python3.
	Python string

	// ResponseTimeout bounds one frame round trip. A service that misses it
	// is killed and restarted on the next frame.
	ResponseTimeout time.Duration
	// IdleTimeout stops the service after this long without frames. Zero
	// keeps it running.
	IdleTimeout time.Duration

	// SwapHandedness exchanges Left and Right for cameras whose image is not
	// mirrored.
	SwapHandedness bool
}

// DefaultConfig returns two hands at 0.5 confidence with a 2s round trip and
// a 30s idle shutdown.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		ResponseTimeout: 2 * time.Second,
		IdleTimeout:     30 * time.Second,
	}
}

// Validate checks the ranges.
func (c Config) Validate() error {
	if c.MaxHands < 1 {
		return fmt.Errorf("max hands must be at least 1, got %d", c.MaxHands)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0,1], got %g", c.MinConfidence)
	}
	if c.MinTrackingConf < 0 || c.MinTrackingConf > 1 {
		return fmt.Errorf("min tracking confidence must be in [0,1], got %g", c.MinTrackingConf)
	}
	if c.ResponseTimeout < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}
