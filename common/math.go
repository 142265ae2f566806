package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Epsilon is the tolerance used when comparing poses and blend weights.
const Epsilon = 1e-4

func Lerp(a, b, t float32) float32 {
	return a + t*(b-a)
}

func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Clamp01(v float32) float32 {
	return Clamp(v, 0, 1)
}

// Remap maps v from [lo, hi] onto [0, 1], clamped. A degenerate range maps to 0.
func Remap(v, lo, hi float32) float32 {
	if hi-lo == 0 {
		return 0
	}
	return Clamp01((v - lo) / (hi - lo))
}

func LerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return mgl32.Vec3{
		Lerp(a[0], b[0], t),
		Lerp(a[1], b[1], t),
		Lerp(a[2], b[2], t),
	}
}

// Slerp interpolates along the shorter arc between two unit quaternions.
// Nearly parallel inputs fall back to a normalized lerp.
func Slerp(a, b mgl32.Quat, t float32) mgl32.Quat {
	dot := a.Dot(b)
	if dot < 0 {
		b = mgl32.Quat{W: -b.W, V: b.V.Mul(-1)}
		dot = -dot
	}
	if dot > 1-Epsilon {
		return mgl32.Quat{
			W: Lerp(a.W, b.W, t),
			V: LerpVec3(a.V, b.V, t),
		}.Normalize()
	}
	dot = Clamp(dot, -1, 1)
	theta := float32(math.Acos(float64(dot)))
	sin := float32(math.Sin(float64(theta)))
	wa := float32(math.Sin(float64((1-t)*theta))) / sin
	wb := float32(math.Sin(float64(t*theta))) / sin
	return a.Scale(wa).Add(b.Scale(wb)).Normalize()
}

// QuatEqual reports whether two rotations are equal within tol, treating q and -q as the same rotation.
func QuatEqual(a, b mgl32.Quat, tol float32) bool {
	d := a.Dot(b)
	if d < 0 {
		d = -d
	}
	return d >= 1-tol
}

// PlanarAngle returns the rotation about Z of a transform's X axis.
func PlanarAngle(m mgl32.Mat4) float32 {
	x := m.Col(0)
	return float32(math.Atan2(float64(x[1]), float64(x[0])))
}
