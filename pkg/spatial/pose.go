// Package spatial provides rigid-body pose algebra for planar robot motion.
//
// A Pose is a 4x4 homogeneous transform (orthonormal rotation block plus a
// translation column). Poses compose by matrix multiplication and all of the
// scalar extractions the controllers need (distance, bearing, yaw) are 2D:
// the robot drives on a plane even though transforms are carried in 3D.
package spatial

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Pose is a rigid-body position and orientation expressed as a homogeneous
// transform. The zero value is the identity pose.
type Pose struct {
	m *mat.Dense
}

// matrix returns the backing 4x4, treating the zero value as identity.
func (p Pose) matrix() *mat.Dense {
	if p.m == nil {
		return identityMatrix()
	}
	return p.m
}

func identityMatrix() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

// Identity returns the identity pose.
func Identity() Pose {
	return Pose{m: identityMatrix()}
}

// FromXYYaw builds a planar pose: translation (x, y, 0) with a rotation of
// yaw radians about the vertical axis.
func FromXYYaw(x, y, yaw float64) Pose {
	c, s := math.Cos(yaw), math.Sin(yaw)
	return Pose{m: mat.NewDense(4, 4, []float64{
		c, -s, 0, x,
		s, c, 0, y,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})}
}

// FromTranslationRPY builds a pose from a translation vector and intrinsic
// roll-pitch-yaw angles (rotations applied about the body X, then Y, then Z
// axes).
func FromTranslationRPY(tx, ty, tz, roll, pitch, yaw float64) Pose {
	cr, sr := math.Cos(roll), math.Sin(roll)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cy, sy := math.Cos(yaw), math.Sin(yaw)

	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cr, -sr,
		0, sr, cr,
	})
	ry := mat.NewDense(3, 3, []float64{
		cp, 0, sp,
		0, 1, 0,
		-sp, 0, cp,
	})
	rz := mat.NewDense(3, 3, []float64{
		cy, -sy, 0,
		sy, cy, 0,
		0, 0, 1,
	})

	var r mat.Dense
	r.Mul(rx, ry)
	r.Mul(&r, rz)
	return fromRotationTranslation(&r, tx, ty, tz)
}

// FromQuaternion builds a pose from a unit quaternion (w, x, y, z order) and
// a translation vector. The quaternion is normalized before use so the
// rotation block stays orthonormal even for slightly denormalized input.
func FromQuaternion(qw, qx, qy, qz, tx, ty, tz float64) Pose {
	n := math.Sqrt(qw*qw + qx*qx + qy*qy + qz*qz)
	if n == 0 {
		// Degenerate input; fall back to identity rotation.
		return FromTranslationRPY(tx, ty, tz, 0, 0, 0)
	}
	w, x, y, z := qw/n, qx/n, qy/n, qz/n

	r := mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
	return fromRotationTranslation(r, tx, ty, tz)
}

func fromRotationTranslation(r *mat.Dense, tx, ty, tz float64) Pose {
	m := identityMatrix()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, r.At(i, j))
		}
	}
	m.Set(0, 3, tx)
	m.Set(1, 3, ty)
	m.Set(2, 3, tz)
	return Pose{m: m}
}

// Compose returns p·q: q expressed on top of p.
func (p Pose) Compose(q Pose) Pose {
	var out mat.Dense
	out.Mul(p.matrix(), q.matrix())
	return Pose{m: &out}
}

// Inverse returns the transform mapping back through p. It is built
// analytically from the transpose of the rotation block, which keeps the
// result orthonormal where a generic matrix inverse would accumulate error.
func (p Pose) Inverse() Pose {
	m := p.matrix()
	out := identityMatrix()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i, j, m.At(j, i))
		}
	}
	// -Rᵀ·t
	for i := 0; i < 3; i++ {
		v := 0.0
		for j := 0; j < 3; j++ {
			v -= out.At(i, j) * m.At(j, 3)
		}
		out.Set(i, 3, v)
	}
	return Pose{m: out}
}

// Relative returns q expressed in p's frame: p⁻¹·q.
func (p Pose) Relative(q Pose) Pose {
	return p.Inverse().Compose(q)
}

// X returns the translation along the global X axis.
func (p Pose) X() float64 { return p.matrix().At(0, 3) }

// Y returns the translation along the global Y axis.
func (p Pose) Y() float64 { return p.matrix().At(1, 3) }

// Z returns the translation along the global Z axis.
func (p Pose) Z() float64 { return p.matrix().At(2, 3) }

// Yaw returns the planar heading of the pose: the direction of the body
// X axis projected onto the ground plane.
func (p Pose) Yaw() float64 {
	m := p.matrix()
	return math.Atan2(m.At(1, 0), m.At(0, 0))
}

// RPY returns roll, pitch, yaw under the same intrinsic X-Y-Z convention
// FromTranslationRPY composes with, so the two invert each other.
func (p Pose) RPY() (roll, pitch, yaw float64) {
	m := p.matrix()
	pitch = math.Asin(clampUnit(m.At(0, 2)))
	roll = math.Atan2(-m.At(1, 2), m.At(2, 2))
	yaw = math.Atan2(-m.At(0, 1), m.At(0, 0))
	return roll, pitch, yaw
}

// Quaternion returns the rotation as a unit quaternion in (w, x, y, z) order.
func (p Pose) Quaternion() (w, x, y, z float64) {
	m := p.matrix()
	trace := m.At(0, 0) + m.At(1, 1) + m.At(2, 2)
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		w = s / 4
		x = (m.At(2, 1) - m.At(1, 2)) / s
		y = (m.At(0, 2) - m.At(2, 0)) / s
		z = (m.At(1, 0) - m.At(0, 1)) / s
	case m.At(0, 0) > m.At(1, 1) && m.At(0, 0) > m.At(2, 2):
		s := math.Sqrt(1+m.At(0, 0)-m.At(1, 1)-m.At(2, 2)) * 2
		w = (m.At(2, 1) - m.At(1, 2)) / s
		x = s / 4
		y = (m.At(0, 1) + m.At(1, 0)) / s
		z = (m.At(0, 2) + m.At(2, 0)) / s
	case m.At(1, 1) > m.At(2, 2):
		s := math.Sqrt(1+m.At(1, 1)-m.At(0, 0)-m.At(2, 2)) * 2
		w = (m.At(0, 2) - m.At(2, 0)) / s
		x = (m.At(0, 1) + m.At(1, 0)) / s
		y = s / 4
		z = (m.At(1, 2) + m.At(2, 1)) / s
	default:
		s := math.Sqrt(1+m.At(2, 2)-m.At(0, 0)-m.At(1, 1)) * 2
		w = (m.At(1, 0) - m.At(0, 1)) / s
		x = (m.At(0, 2) + m.At(2, 0)) / s
		y = (m.At(1, 2) + m.At(2, 1)) / s
		z = s / 4
	}
	return w, x, y, z
}

// Distance returns the planar distance from a to b.
func Distance(a, b Pose) float64 {
	rel := a.Relative(b)
	return math.Hypot(rel.X(), rel.Y())
}

// Bearing returns the global-frame angle of the line from a's position to
// b's position.
func Bearing(a, b Pose) float64 {
	return math.Atan2(b.Y()-a.Y(), b.X()-a.X())
}

// BearingFrom returns the angle to b's position as seen from a, in a's own
// frame. A value beyond ±π/2 means b lies behind a.
func BearingFrom(a, b Pose) float64 {
	rel := a.Relative(b)
	return math.Atan2(rel.Y(), rel.X())
}

// YawBetween returns the heading of b relative to a's frame.
func YawBetween(a, b Pose) float64 {
	return a.Relative(b).Yaw()
}

// Wrap normalizes an angle to (−π, π].
func Wrap(theta float64) float64 {
	w := math.Mod(theta+math.Pi, 2*math.Pi)
	if w < 0 {
		w += 2 * math.Pi
	}
	w -= math.Pi
	if w <= -math.Pi {
		w += 2 * math.Pi
	}
	return w
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
