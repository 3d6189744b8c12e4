package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func solidFrame(t *testing.T, value float64) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	if value > 0 {
		m.SetTo(gocv.NewScalar(value, value, value, 0))
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMotionGate_FirstFramePrimes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	g := NewMotionGate(1.0)
	defer g.Close()

	frame := solidFrame(t, 0)
	if m := g.Check(&frame); !m.Moved {
		t.Errorf("first frame should count as moved, got %+v", m)
	}
	if m := g.Check(&frame); m.Moved || m.ChangePercent != 0 {
		t.Errorf("identical frame should be still, got %+v", m)
	}
}

func TestMotionGate_DetectsChange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	g := NewMotionGate(1.0)
	defer g.Close()

	black := solidFrame(t, 0)
	white := solidFrame(t, 255)

	g.Check(&black)
	m := g.Check(&white)
	if !m.Moved {
		t.Errorf("black to white should be motion, got %+v", m)
	}
	if m.ChangePercent < 50 {
		t.Errorf("ChangePercent = %f, want > 50", m.ChangePercent)
	}

	// The white frame is the new baseline.
	if m := g.Check(&white); m.Moved {
		t.Errorf("repeated white frame should be still, got %+v", m)
	}
}

func TestMotionGate_ResetReprimes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	g := NewMotionGate(1.0)
	defer g.Close()

	frame := solidFrame(t, 0)
	g.Check(&frame)
	g.Reset()

	if m := g.Check(&frame); !m.Moved {
		t.Error("first frame after Reset should count as moved")
	}
}

func TestMotionGate_EmptyFrame(t *testing.T) {
	g := NewMotionGate(1.0)
	defer g.Close()

	if m := g.Check(nil); m.Moved {
		t.Error("nil frame should not be motion")
	}
	empty := gocv.NewMat()
	defer empty.Close()
	if m := g.Check(&empty); m.Moved {
		t.Error("empty frame should not be motion")
	}
}

func TestMotionGate_SetThreshold(t *testing.T) {
	g := NewMotionGate(1.0)
	defer g.Close()

	tests := []struct {
		set  float64
		want float64
	}{
		{set: 5, want: 5},
		{set: 0.25, want: 0.25},
		{set: 0, want: 0.25},
		{set: -1, want: 0.25},
	}
	for _, tt := range tests {
		g.SetThreshold(tt.set)
		if got := g.Threshold(); got != tt.want {
			t.Errorf("SetThreshold(%v): Threshold() = %v, want %v", tt.set, got, tt.want)
		}
	}
}

func TestMotionGate_CloseTwice(t *testing.T) {
	g := NewMotionGate(1.0)
	g.Close()
	g.Close()
}
