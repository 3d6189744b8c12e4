package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// sweep is a sine whose frequency glides from `from` to `to` over its
// duration, shaped by a linear attack and release.
type sweep struct {
	from, to float64
	phase    float64
	pos      int
	total    int
	attack   int
	release  int
	rate     beep.SampleRate
}

func newSweep(from, to float64, d, attack, release time.Duration, rate beep.SampleRate) *sweep {
	return &sweep{
		from:    from,
		to:      to,
		total:   rate.N(d),
		attack:  rate.N(attack),
		release: rate.N(release),
		rate:    rate,
	}
}

func (s *sweep) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if s.pos >= s.total {
			return i, i > 0
		}
		t := float64(s.pos) / float64(s.total)
		freq := s.from + (s.to-s.from)*t

		v := math.Sin(2*math.Pi*s.phase) * gain(s.pos, s.total, s.attack, s.release)
		samples[i][0] = v
		samples[i][1] = v

		s.phase += freq / float64(s.rate)
		s.phase -= math.Floor(s.phase)
		s.pos++
	}
	return len(samples), true
}

func (s *sweep) Err() error { return nil }

// gain is the attack/release envelope at pos.
func gain(pos, total, attack, release int) float64 {
	g := 1.0
	if attack > 0 && pos < attack {
		g = float64(pos) / float64(attack)
	}
	if release > 0 && pos >= total-release {
		r := float64(total-pos) / float64(release)
		if r < g {
			g = r
		}
	}
	return math.Max(g, 0)
}

// drone is an open-ended tone for held gestures. Its pitch glides towards
// target and it fades out once stopped, then drains from the mixer.
type drone struct {
	freq    float64
	target  float64
	level   float64
	phase   float64
	stopped bool
	fade    float64 // level change per sample
	glide   float64 // fraction of the pitch gap closed per sample
	rate    beep.SampleRate
}

func newDrone(freq float64, fade time.Duration, rate beep.SampleRate) *drone {
	return &drone{
		freq:   freq,
		target: freq,
		fade:   1 / float64(max(rate.N(fade), 1)),
		glide:  8 / float64(rate),
		rate:   rate,
	}
}

func (d *drone) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if d.stopped {
			d.level -= d.fade
			if d.level <= 0 {
				return i, i > 0
			}
		} else if d.level < 1 {
			d.level = math.Min(1, d.level+d.fade)
		}
		d.freq += (d.target - d.freq) * d.glide

		// A fifth above the fundamental gives the drone some body.
		v := (0.7*math.Sin(2*math.Pi*d.phase) + 0.3*math.Sin(3*math.Pi*d.phase)) * d.level
		samples[i][0] = v
		samples[i][1] = v

		d.phase += d.freq / float64(d.rate)
		d.phase -= 2 * math.Floor(d.phase/2)
	}
	return len(samples), true
}

func (d *drone) Err() error { return nil }

func (d *drone) stop() { d.stopped = true }

// volume scales s linearly; zero or less is silent.
func volume(s beep.Streamer, v float64) beep.Streamer {
	if v <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(v)}
}

// pan places s between the left (-1) and right (+1) channels.
func pan(s beep.Streamer, p float64) beep.Streamer {
	return &effects.Pan{Streamer: s, Pan: math.Max(-1, math.Min(1, p))}
}
