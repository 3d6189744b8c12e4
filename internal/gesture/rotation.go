package gesture

import (
	"math"

	"github.com/ayusman/mudra/internal/detector"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// HandOrientation returns the unit quaternion of the palm frame. The frame's
// Y axis runs from the wrist to the middle MCP, X runs across the knuckles from
// the pinky to the index MCP and Z is their normal.
func HandOrientation(hand *detector.HandLandmarks) (quat.Number, bool) {
	if !hand.Valid() {
		return quat.Number{}, false
	}
	p := hand.Points

	y := r3.Sub(p[detector.MiddleMCP].Vec(), p[detector.Wrist].Vec())
	across := r3.Sub(p[detector.IndexMCP].Vec(), p[detector.PinkyMCP].Vec())
	z := r3.Cross(across, y)

	if r3.Norm(y) < minPalmScale || r3.Norm(z) < minPalmScale*minPalmScale {
		return quat.Number{}, false
	}
	y = r3.Unit(y)
	z = r3.Unit(z)
	x := r3.Cross(y, z)

	return fromBasis(x, y, z), true
}

// fromBasis converts the rotation matrix with columns x, y, z to a quaternion.
func fromBasis(x, y, z r3.Vec) quat.Number {
	m00, m01, m02 := x.X, y.X, z.X
	m10, m11, m12 := x.Y, y.Y, z.Y
	m20, m21, m22 := x.Z, y.Z, z.Z

	var q quat.Number
	switch tr := m00 + m11 + m22; {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		q = quat.Number{Real: s / 4, Imag: (m21 - m12) / s, Jmag: (m02 - m20) / s, Kmag: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = quat.Number{Real: (m21 - m12) / s, Imag: s / 4, Jmag: (m01 + m10) / s, Kmag: (m02 + m20) / s}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = quat.Number{Real: (m02 - m20) / s, Imag: (m01 + m10) / s, Jmag: s / 4, Kmag: (m12 + m21) / s}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = quat.Number{Real: (m10 - m01) / s, Imag: (m02 + m20) / s, Jmag: (m12 + m21) / s, Kmag: s / 4}
	}
	return normalize(q)
}

// AverageRotation returns the rotation halfway between a and b along the
// shorter arc.
func AverageRotation(a, b quat.Number) quat.Number {
	return Slerp(a, b, 0.5)
}

// Slerp interpolates between unit quaternions a and b. q and -q encode the
// same rotation, so b is flipped when the pair lies on opposite hemispheres.
func Slerp(a, b quat.Number, t float64) quat.Number {
	a = normalize(a)
	b = normalize(b)

	d := dot(a, b)
	if d < 0 {
		b = quat.Scale(-1, b)
		d = -d
	}

	if d > 0.9995 {
		return normalize(quat.Add(a, quat.Scale(t, quat.Sub(b, a))))
	}

	theta0 := math.Acos(d)
	theta := theta0 * t
	s1 := math.Sin(theta) / math.Sin(theta0)
	s0 := math.Cos(theta) - d*s1
	return normalize(quat.Add(quat.Scale(s0, a), quat.Scale(s1, b)))
}

// RotationAngle returns the rotation angle of a unit quaternion in radians,
// in the range 0..pi.
func RotationAngle(q quat.Number) float64 {
	q = normalize(q)
	w := math.Abs(q.Real)
	if w > 1 {
		w = 1
	}
	return 2 * math.Acos(w)
}

func dot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}
