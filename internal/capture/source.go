package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/monitoring"
	"github.com/ayusman/mudra/internal/timeutil"
)

// ErrSourceClosed is returned by Next after Close.
var ErrSourceClosed = errors.New("landmark source closed")

// SourceConfig controls how camera frames become landmark frames.
type SourceConfig struct {
	// MotionThreshold is the percentage of changed pixels below which the
	// previous hands are reused instead of running the detector. Zero
	// disables the gate.
	MotionThreshold float64
	// MaxReuse bounds how many consecutive still frames may reuse the last
	// detection before the detector runs anyway.
	MaxReuse int
}

// DefaultSourceConfig returns a gate that skips detection below 0.5% change
// for at most 5 frames.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		MotionThreshold: 0.5,
		MaxReuse:        5,
	}
}

// SourceStats counts what the source has done since it was created.
type SourceStats struct {
	Frames     int
	Detections int
	Reused     int
	Failures   int
}

// LandmarkSource turns camera frames into timestamped landmark frames.
type LandmarkSource struct {
	cfg   SourceConfig
	cam   Camera
	det   detector.Detector
	gate  *MotionGate
	clock timeutil.Clock
	start time.Time

	mu     sync.Mutex
	last   []detector.HandLandmarks
	have   bool
	reused int
	stats  SourceStats
	closed bool
}

// NewLandmarkSource wires a camera and detector together. Timestamps are
// milliseconds since construction on clock.
func NewLandmarkSource(cfg SourceConfig, cam Camera, det detector.Detector, clock timeutil.Clock) *LandmarkSource {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &LandmarkSource{
		cfg:   cfg,
		cam:   cam,
		det:   det,
		clock: clock,
		start: clock.Now(),
	}
	if cfg.MotionThreshold > 0 {
		s.gate = NewMotionGate(cfg.MotionThreshold)
	}
	return s
}

// Next reads one camera frame and returns the hands seen in it. The camera is
// opened on first use.
func (s *LandmarkSource) Next() (gesture.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return gesture.Frame{}, ErrSourceClosed
	}

	if !s.cam.IsOpen() {
		if err := s.cam.Open(); err != nil {
			return gesture.Frame{}, err
		}
	}

	mat, err := s.cam.ReadFrame()
	if err != nil {
		s.stats.Failures++
		return gesture.Frame{}, fmt.Errorf("read frame: %w", err)
	}
	defer mat.Close()

	ts := s.clock.Since(s.start).Milliseconds()
	s.stats.Frames++

	still := false
	if s.gate != nil {
		still = !s.gate.Check(mat).Moved
	}

	if still && s.have && s.reused < s.cfg.MaxReuse {
		s.reused++
		s.stats.Reused++
		return gesture.Frame{Hands: copyHands(s.last), TimestampMs: ts}, nil
	}

	hands, err := s.det.Detect(mat)
	if err != nil {
		s.stats.Failures++
		s.have = false
		return gesture.Frame{}, fmt.Errorf("detect hands: %w", err)
	}

	s.stats.Detections++
	s.last = hands
	s.have = true
	s.reused = 0

	return gesture.Frame{Hands: copyHands(hands), TimestampMs: ts}, nil
}

// Stats returns a copy of the counters.
func (s *LandmarkSource) Stats() SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close releases the camera, the gate and the detector. It is safe to call
// more than once.
func (s *LandmarkSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.gate != nil {
		s.gate.Close()
	}

	var errs []error
	if err := s.cam.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close camera: %w", err))
	}
	if err := s.det.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}

	monitoring.Logf("capture: source closed after %d frames (%d detections, %d reused)",
		s.stats.Frames, s.stats.Detections, s.stats.Reused)
	return errors.Join(errs...)
}

func copyHands(hands []detector.HandLandmarks) []detector.HandLandmarks {
	if len(hands) == 0 {
		return nil
	}
	out := make([]detector.HandLandmarks, len(hands))
	copy(out, hands)
	return out
}
