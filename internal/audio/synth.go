// Package audio turns effect cues into short synthesized tones.
package audio

import (
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/effect"
	"github.com/ayusman/mudra/internal/field"
	"github.com/ayusman/mudra/internal/monitoring"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

// Config controls the synthesizer.
type Config struct {
	SampleRate beep.SampleRate
	// Volume is the master level in 0..1.
	Volume float64
	// Buffer is the speaker buffer length.
	Buffer time.Duration
}

// DefaultConfig returns 44.1kHz output at half volume with a 100ms buffer.
func DefaultConfig() Config {
	return Config{
		SampleRate: beep.SampleRate(44100),
		Volume:     0.5,
		Buffer:     100 * time.Millisecond,
	}
}

const (
	rippleLength = 140 * time.Millisecond
	burstLength  = 450 * time.Millisecond
	droneFade    = 80 * time.Millisecond

	chargeLow  = 180.0
	chargeHigh = 720.0
)

// slotPitch is the drone fundamental of each force field.
var slotPitch = map[field.Slot]float64{
	field.SlotRepulsion:  330,
	field.SlotAttraction: 110,
	field.SlotVortex:     220,
}

// Synth mixes cue tones. Cue is called from the tick goroutine and Stream
// from the speaker goroutine; both take the same lock.
type Synth struct {
	mu     sync.Mutex
	cfg    Config
	mixer  *beep.Mixer
	fields map[field.Slot]*drone
	charge *drone
	cues   int

	started bool
}

// New creates a Synth. It produces samples through Stream; call Start to
// route it to the default output device.
func New(cfg Config) *Synth {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultConfig().SampleRate
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultConfig().Buffer
	}
	return &Synth{
		cfg:    cfg,
		mixer:  &beep.Mixer{},
		fields: make(map[field.Slot]*drone),
	}
}

// Start initializes the speaker and plays the synth on it.
func (s *Synth) Start() error {
	rate := s.cfg.SampleRate
	if err := speaker.Init(rate, rate.N(s.cfg.Buffer)); err != nil {
		return err
	}
	speaker.Play(s)

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	monitoring.Logf("audio: speaker started at %d Hz", int(rate))
	return nil
}

// Close silences every voice and releases the speaker.
func (s *Synth) Close() {
	s.mu.Lock()
	s.mixer.Clear()
	s.fields = make(map[field.Slot]*drone)
	s.charge = nil
	started := s.started
	s.started = false
	s.mu.Unlock()

	if started {
		speaker.Clear()
	}
}

// Cue implements effect.CueSink.
func (s *Synth) Cue(c effect.Cue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rate := s.cfg.SampleRate
	s.cues++

	switch c.Kind {
	case effect.CueRipple:
		// Higher on screen sounds higher.
		base := 520 + 360*(1-c.Position.Y)
		tone := newSweep(base*1.2, base, rippleLength, 5*time.Millisecond, 100*time.Millisecond, rate)
		s.play(tone, 0.6, c.Position.X)

	case effect.CueFieldStart:
		if d, ok := s.fields[c.Slot]; ok {
			d.stop()
		}
		d := newDrone(slotPitch[c.Slot], droneFade, rate)
		s.fields[c.Slot] = d
		s.play(d, 0.25, c.Position.X)

	case effect.CueFieldEnd:
		if d, ok := s.fields[c.Slot]; ok {
			d.stop()
			delete(s.fields, c.Slot)
		}

	case effect.CueChargeBegin:
		if s.charge != nil {
			s.charge.stop()
		}
		s.charge = newDrone(chargeLow, droneFade, rate)
		s.play(s.charge, 0.3, c.Position.X)

	case effect.CueChargeUpdate:
		if s.charge != nil {
			s.charge.target = chargeLow + (chargeHigh-chargeLow)*c.Intensity
		}

	case effect.CueBurst:
		if s.charge != nil {
			s.charge.stop()
			s.charge = nil
		}
		top := chargeLow + (chargeHigh-chargeLow)*c.Intensity
		tone := newSweep(top*1.5, 60, burstLength, 2*time.Millisecond, 300*time.Millisecond, rate)
		s.play(tone, 0.4+0.6*c.Intensity, c.Position.X)
	}
}

// play adds a voice at level, panned by the normalized x position.
func (s *Synth) play(v beep.Streamer, level, x float64) {
	s.mixer.Add(pan(volume(v, level*s.cfg.Volume), 2*x-1))
}

// Stream implements beep.Streamer.
func (s *Synth) Stream(samples [][2]float64) (n int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mixer.Stream(samples)
}

// Err implements beep.Streamer.
func (s *Synth) Err() error { return nil }

// Voices returns the number of tones currently sounding.
func (s *Synth) Voices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mixer.Len()
}

// Cues returns the number of cues received.
func (s *Synth) Cues() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cues
}
