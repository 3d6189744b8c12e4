package gesture

import (
	"math"
	"testing"

	"github.com/ayusman/mudra/internal/detector"
	"gonum.org/v1/gonum/num/quat"
)

func aboutZ(angle float64) quat.Number {
	return quat.Number{Real: math.Cos(angle / 2), Kmag: math.Sin(angle / 2)}
}

// rotateZ rotates a hand about its wrist in the image plane.
func rotateZ(h detector.HandLandmarks, angle float64) detector.HandLandmarks {
	out := detector.Translate(h, 0, 0)
	w := h.Points[detector.Wrist]
	sin, cos := math.Sincos(angle)
	for i, p := range h.Points {
		dx, dy := p.X-w.X, p.Y-w.Y
		out.Points[i] = detector.Point3D{X: w.X + dx*cos - dy*sin, Y: w.Y + dx*sin + dy*cos, Z: p.Z}
	}
	return out
}

func TestAverageRotation_DoubleCover(t *testing.T) {
	a := aboutZ(170 * math.Pi / 180)
	b := aboutZ(-170 * math.Pi / 180)

	if dot(a, b) >= 0 {
		t.Fatalf("test quaternions should lie on opposite hemispheres, dot=%f", dot(a, b))
	}

	avg := AverageRotation(a, b)

	if got := RotationAngle(avg); math.Abs(got-math.Pi) > 1e-6 {
		t.Errorf("expected a half turn, got %f rad", got)
	}
	if math.Abs(quat.Abs(avg)-1) > 1e-9 {
		t.Errorf("expected unit quaternion, got norm %f", quat.Abs(avg))
	}
}

func TestAverageRotation_NegatedInputIsSameRotation(t *testing.T) {
	a := aboutZ(0.4)
	b := aboutZ(0.8)

	want := AverageRotation(a, b)
	got := AverageRotation(a, quat.Scale(-1, b))

	if math.Abs(math.Abs(dot(want, got))-1) > 1e-9 {
		t.Errorf("negating an input changed the average: %v vs %v", want, got)
	}
	if angle := RotationAngle(want); math.Abs(angle-0.6) > 1e-9 {
		t.Errorf("expected 0.6 rad, got %f", angle)
	}
}

func TestSlerp_Endpoints(t *testing.T) {
	a := aboutZ(0.2)
	b := aboutZ(1.4)

	if d := dot(Slerp(a, b, 0), a); math.Abs(d-1) > 1e-9 {
		t.Errorf("t=0 should return a, dot=%f", d)
	}
	if d := dot(Slerp(a, b, 1), b); math.Abs(d-1) > 1e-9 {
		t.Errorf("t=1 should return b, dot=%f", d)
	}
	if d := dot(Slerp(a, a, 0.5), a); math.Abs(d-1) > 1e-9 {
		t.Errorf("slerp of equal inputs should be the input, dot=%f", d)
	}
}

func TestHandOrientation(t *testing.T) {
	open := detector.OpenPalmLandmarks()

	q, ok := HandOrientation(&open)
	if !ok {
		t.Fatal("expected orientation for a well formed hand")
	}
	if math.Abs(quat.Abs(q)-1) > 1e-9 {
		t.Errorf("expected unit quaternion, got norm %f", quat.Abs(q))
	}

	t.Run("translation invariant", func(t *testing.T) {
		moved := detector.Translate(open, 0.2, -0.1)
		qm, _ := HandOrientation(&moved)
		if d := math.Abs(dot(q, qm)); math.Abs(d-1) > 1e-9 {
			t.Errorf("expected identical orientation, dot=%f", d)
		}
	})

	t.Run("tracks in-plane rotation", func(t *testing.T) {
		turned := rotateZ(open, math.Pi/2)
		qt, ok := HandOrientation(&turned)
		if !ok {
			t.Fatal("expected orientation")
		}
		rel := quat.Mul(qt, quat.Conj(q))
		if got := RotationAngle(rel); math.Abs(got-math.Pi/2) > 1e-6 {
			t.Errorf("expected quarter turn, got %f rad", got)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		short := detector.HandLandmarks{Points: open.Points[:10]}
		if _, ok := HandOrientation(&short); ok {
			t.Error("expected no orientation for a short hand")
		}
		flat := detector.NewHandLandmarks(detector.HandRight, 1)
		if _, ok := HandOrientation(&flat); ok {
			t.Error("expected no orientation for a collapsed hand")
		}
	})
}

func TestClassifier_CombinedRotation(t *testing.T) {
	d := newDriver(t, DefaultConfig())

	right := detector.OpenPalmLandmarks()
	left := detector.WithHandedness(rotateZ(right, 0.5), detector.HandLeft)

	res := d.tick(right)
	if _, ok := res.CombinedRotation(); ok {
		t.Error("expected no combined rotation with one hand")
	}

	res = d.tick(right, left)
	got, ok := res.CombinedRotation()
	if !ok {
		t.Fatal("expected combined rotation with both hands")
	}

	qr, _ := HandOrientation(&right)
	rel := quat.Mul(got, quat.Conj(qr))
	if angle := RotationAngle(rel); math.Abs(angle-0.25) > 1e-6 {
		t.Errorf("expected the average to sit 0.25 rad from the right hand, got %f", angle)
	}
}
