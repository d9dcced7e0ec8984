package units

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidUnitDirection reports a vector that was required to be unit
// length but was not, or that cannot be normalised at all.
var ErrInvalidUnitDirection = errors.New("invalid unit direction")

// UnitTolerance is the allowed deviation of |v| from 1 for a vector that is
// claimed to already be a unit direction.
const UnitTolerance = 1e-6

// Vec3 is a three-component vector whose components all carry unit T.
type Vec3[T Scalar] struct {
	X, Y, Z T
}

// Position is a location in astronomical units.
type Position = Vec3[AU]

// Velocity is a velocity in km/s.
type Velocity = Vec3[KmPerSec]

// ScenePosition is a location in renderer scene units.
type ScenePosition = Vec3[SceneUnits]

// V3 builds a vector from its components.
func V3[T Scalar](x, y, z T) Vec3[T] { return Vec3[T]{X: x, Y: y, Z: z} }

// Add returns v + o.
func (v Vec3[T]) Add(o Vec3[T]) Vec3[T] { return Vec3[T]{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3[T]) Sub(o Vec3[T]) Vec3[T] { return Vec3[T]{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

// Scale multiplies every component by a dimensionless factor.
func (v Vec3[T]) Scale(k float64) Vec3[T] {
	return Vec3[T]{X: T(float64(v.X) * k), Y: T(float64(v.Y) * k), Z: T(float64(v.Z) * k)}
}

// Dot returns the dot product. The result carries unit T squared and is
// therefore returned as a bare float64.
func (v Vec3[T]) Dot(o Vec3[T]) float64 {
	return float64(v.X)*float64(o.X) + float64(v.Y)*float64(o.Y) + float64(v.Z)*float64(o.Z)
}

// Norm returns the Euclidean length of v.
func (v Vec3[T]) Norm() T { return T(math.Sqrt(v.Dot(v))) }

// DistanceTo returns |v - o|.
func (v Vec3[T]) DistanceTo(o Vec3[T]) T { return v.Sub(o).Norm() }

// Direction returns the unit direction of v. ok is false for the zero vector.
func (v Vec3[T]) Direction() (Direction, bool) {
	d, err := Normalize(float64(v.X), float64(v.Y), float64(v.Z))
	return d, err == nil
}

// LerpVec interpolates each component of a and b.
func LerpVec[T Scalar](a, b Vec3[T], alpha float64) Vec3[T] {
	return Vec3[T]{X: Lerp(a.X, b.X, alpha), Y: Lerp(a.Y, b.Y, alpha), Z: Lerp(a.Z, b.Z, alpha)}
}

// Direction is a dimensionless unit vector. The zero value is not a valid
// direction; construct one with Normalize, UnitDirection or FromSpherical.
type Direction struct {
	x, y, z float64
}

var (
	// AxisX is the +X unit direction.
	AxisX = Direction{x: 1}
	// AxisY is the +Y unit direction.
	AxisY = Direction{y: 1}
	// AxisZ is the +Z unit direction.
	AxisZ = Direction{z: 1}
)

// Normalize renormalises (x, y, z) into a Direction. It fails only for the
// zero vector or non-finite input.
func Normalize(x, y, z float64) (Direction, error) {
	n := math.Sqrt(x*x + y*y + z*z)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Direction{}, fmt.Errorf("%w: cannot normalise (%g, %g, %g)", ErrInvalidUnitDirection, x, y, z)
	}
	return Direction{x: x / n, y: y / n, z: z / n}, nil
}

// UnitDirection accepts (x, y, z) only if it is already unit length within
// UnitTolerance. The returned Direction is still renormalised.
func UnitDirection(x, y, z float64) (Direction, error) {
	n := math.Sqrt(x*x + y*y + z*z)
	if math.Abs(n-1) > UnitTolerance {
		return Direction{}, fmt.Errorf("%w: |v| = %g", ErrInvalidUnitDirection, n)
	}
	return Normalize(x, y, z)
}

// MustDirection is Normalize for literals known to be non-zero. It panics on
// the zero vector.
func MustDirection(x, y, z float64) Direction {
	d, err := Normalize(x, y, z)
	if err != nil {
		panic(err)
	}
	return d
}

// FromSpherical builds a direction from a polar angle theta (0 at +Z) and
// an azimuth phi (0 at +X, π/2 at +Y).
func FromSpherical(theta, phi Radians) Direction {
	st := theta.Sin()
	return MustDirection(st*phi.Cos(), st*phi.Sin(), theta.Cos())
}

// X returns the x component.
func (d Direction) X() float64 { return d.x }

// Y returns the y component.
func (d Direction) Y() float64 { return d.y }

// Z returns the z component.
func (d Direction) Z() float64 { return d.z }

// Components returns the three components.
func (d Direction) Components() (x, y, z float64) { return d.x, d.y, d.z }

// IsZero reports whether d is the invalid zero value.
func (d Direction) IsZero() bool { return d.x == 0 && d.y == 0 && d.z == 0 }

// Neg returns the opposite direction.
func (d Direction) Neg() Direction { return Direction{x: -d.x, y: -d.y, z: -d.z} }

// Dot returns the cosine of the angle between d and o.
func (d Direction) Dot(o Direction) float64 { return d.x*o.x + d.y*o.y + d.z*o.z }

// Cross returns the normalised cross product d × o. ok is false when the
// two directions are parallel.
func (d Direction) Cross(o Direction) (Direction, bool) {
	c, err := Normalize(
		d.y*o.z-d.z*o.y,
		d.z*o.x-d.x*o.z,
		d.x*o.y-d.y*o.x,
	)
	return c, err == nil
}

// AngleTo returns the angle between d and o in [0, π].
func (d Direction) AngleTo(o Direction) Radians {
	return Radians(math.Acos(Clamp(d.Dot(o), -1, 1)))
}

// Spherical returns the polar angle and azimuth of d.
func (d Direction) Spherical() (theta, phi Radians) {
	theta = Radians(math.Acos(Clamp(d.z, -1, 1)))
	phi = NormalizeRadians(Radians(math.Atan2(d.y, d.x)))
	return theta, phi
}

// Norm returns |d|, which is 1 within floating-point tolerance.
func (d Direction) Norm() float64 { return math.Sqrt(d.Dot(d)) }

// Scaled returns the vector of length r along d.
func Scaled[T Scalar](d Direction, r T) Vec3[T] {
	return Vec3[T]{X: T(d.x * float64(r)), Y: T(d.y * float64(r)), Z: T(d.z * float64(r))}
}

// LerpDirection interpolates two directions component-wise and renormalises
// the result. When the blend degenerates to the zero vector (antipodal
// inputs at alpha 0.5) the nearer endpoint is returned.
func LerpDirection(a, b Direction, alpha float64) Direction {
	switch alpha {
	case 0:
		return a
	case 1:
		return b
	}
	d, err := Normalize(
		a.x*(1-alpha)+b.x*alpha,
		a.y*(1-alpha)+b.y*alpha,
		a.z*(1-alpha)+b.z*alpha,
	)
	if err != nil {
		if alpha < 0.5 {
			return a
		}
		return b
	}
	return d
}

// String formats the direction for logs.
func (d Direction) String() string {
	return fmt.Sprintf("(%.6f, %.6f, %.6f)", d.x, d.y, d.z)
}
