// Package frames converts vectors between the sun-centric ecliptic frame
// (HEE J2000) and the ISM-relative apex frame, plus the equatorial and
// galactic frames used to place catalogued stars. All transforms are pure
// functions of their arguments.
package frames

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/heliosphere-sim/units"
)

// Frame identifies a coordinate frame.
type Frame int

const (
	// SunCentric is the heliocentric ecliptic frame of J2000.
	SunCentric Frame = iota
	// Apex is the ISM-relative frame whose +X axis points at the heliosphere
	// nose (upwind, opposite the ISM inflow).
	Apex
)

func (f Frame) String() string {
	switch f {
	case SunCentric:
		return "sun-centric"
	case Apex:
		return "apex"
	default:
		return fmt.Sprintf("frame(%d)", int(f))
	}
}

// Mat3 is a row-major 3x3 rotation matrix.
type Mat3 [3][3]float64

// Identity is the identity rotation.
var Identity = Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// Transpose returns mᵀ, which is the inverse of a rotation.
func (m Mat3) Transpose() Mat3 {
	var out Mat3
	for i := range 3 {
		for j := range 3 {
			out[i][j] = m[j][i]
		}
	}
	return out
}

// Mul returns m·o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var out Mat3
	for i := range 3 {
		for j := range 3 {
			for k := range 3 {
				out[i][j] += m[i][k] * o[k][j]
			}
		}
	}
	return out
}

// Apply rotates v.
func Apply[T units.Scalar](m Mat3, v units.Vec3[T]) units.Vec3[T] {
	x, y, z := float64(v.X), float64(v.Y), float64(v.Z)
	return units.Vec3[T]{
		X: T(m[0][0]*x + m[0][1]*y + m[0][2]*z),
		Y: T(m[1][0]*x + m[1][1]*y + m[1][2]*z),
		Z: T(m[2][0]*x + m[2][1]*y + m[2][2]*z),
	}
}

// ApplyDirection rotates a direction and renormalises the result.
func ApplyDirection(m Mat3, d units.Direction) units.Direction {
	x, y, z := d.Components()
	return units.MustDirection(
		m[0][0]*x+m[0][1]*y+m[0][2]*z,
		m[1][0]*x+m[1][1]*y+m[1][2]*z,
		m[2][0]*x+m[2][1]*y+m[2][2]*z,
	)
}

// ApexBasis returns the rotation taking sun-centric vectors into the apex
// frame for the given ISM inflow direction. Its rows are the apex axes
// expressed in sun-centric coordinates: +X at the nose (-inflow), +Z as
// close to ecliptic north as the nose allows, +Y completing a right-handed
// set.
func ApexBasis(inflow units.Direction) Mat3 {
	nose := inflow.Neg()
	north := units.AxisZ
	if math.Abs(nose.Dot(north)) > 1-1e-9 {
		north = units.AxisY
	}
	y, _ := north.Cross(nose)
	z, _ := nose.Cross(y)

	nx, ny, nz := nose.Components()
	yx, yy, yz := y.Components()
	zx, zy, zz := z.Components()
	return Mat3{
		{nx, ny, nz},
		{yx, yy, yz},
		{zx, zy, zz},
	}
}

// SunCentricToApex expresses a sun-centric vector in the apex frame.
func SunCentricToApex[T units.Scalar](v units.Vec3[T], inflow units.Direction) units.Vec3[T] {
	return Apply(ApexBasis(inflow), v)
}

// ApexToSunCentric is the inverse of SunCentricToApex.
func ApexToSunCentric[T units.Scalar](v units.Vec3[T], inflow units.Direction) units.Vec3[T] {
	return Apply(ApexBasis(inflow).Transpose(), v)
}

// Convert moves v from one frame to another. Converting a frame to itself
// returns v unchanged.
func Convert[T units.Scalar](v units.Vec3[T], from, to Frame, inflow units.Direction) units.Vec3[T] {
	switch {
	case from == to:
		return v
	case from == SunCentric && to == Apex:
		return SunCentricToApex(v, inflow)
	default:
		return ApexToSunCentric(v, inflow)
	}
}
