package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/soniakeys/meeus/v3/kepler"
	"github.com/soniakeys/unit"

	"github.com/signalsfoundry/heliosphere-sim/units"
)

// ErrOrbitInvalid reports orbital elements that do not describe a bound
// ellipse.
var ErrOrbitInvalid = errors.New("invalid orbital elements")

// keplerPlaces is the decimal precision requested from the iterative
// Kepler solver.
const keplerPlaces = 10

// OrbitalElements is a two-body heliocentric ellipse referred to the J2000
// ecliptic. The mean anomaly advances linearly from its J2000 value.
type OrbitalElements struct {
	SemiMajorAxis units.AU
	Eccentricity  float64
	Inclination   units.Radians
	// AscendingNode is the longitude of the ascending node.
	AscendingNode units.Radians
	// Perihelion is the argument of perihelion.
	Perihelion units.Radians
	// MeanAnomaly is the mean anomaly at J2000.
	MeanAnomaly units.Radians
	// MeanMotion is in radians per day.
	MeanMotion float64
}

// NewOrbitalElements builds elements from the usual tabulated form: angles
// in degrees, the mean longitude at J2000 and the sidereal period in
// Julian years.
func NewOrbitalElements(a units.AU, e float64, incl, node, perihelion, meanLongitude units.Degrees, periodYears float64) OrbitalElements {
	return OrbitalElements{
		SemiMajorAxis: a,
		Eccentricity:  e,
		Inclination:   incl.Radians(),
		AscendingNode: node.Radians(),
		Perihelion:    perihelion.Radians(),
		MeanAnomaly:   (meanLongitude - perihelion - node).Radians(),
		MeanMotion:    2 * math.Pi / (periodYears * float64(units.DaysPerJulianYear)),
	}
}

// Validate checks for a positive semi-major axis, an eccentricity in
// [0, 1) and a positive mean motion.
func (o OrbitalElements) Validate() error {
	switch {
	case !(o.SemiMajorAxis > 0):
		return fmt.Errorf("%w: semi-major axis %v", ErrOrbitInvalid, o.SemiMajorAxis)
	case !(o.Eccentricity >= 0 && o.Eccentricity < 1):
		return fmt.Errorf("%w: eccentricity %v", ErrOrbitInvalid, o.Eccentricity)
	case !(o.MeanMotion > 0):
		return fmt.Errorf("%w: mean motion %v", ErrOrbitInvalid, o.MeanMotion)
	}
	return nil
}

// PositionAt returns the heliocentric ecliptic position at jd.
func (o OrbitalElements) PositionAt(jd units.JulianDate) units.Position {
	m := unit.Angle(float64(o.MeanAnomaly) + o.MeanMotion*float64(jd.Sub(units.J2000))).Mod1()
	ecc, err := kepler.Kepler2b(o.Eccentricity, m, keplerPlaces)
	if err != nil {
		ecc = kepler.Kepler3(o.Eccentricity, m)
	}
	nu := kepler.True(ecc, o.Eccentricity)
	r := kepler.Radius(ecc, o.Eccentricity, float64(o.SemiMajorAxis))
	return o.toEcliptic(units.Radians(nu.Rad()), r)
}

// PositionAtAnomaly returns the point of the ellipse at true anomaly nu.
func (o OrbitalElements) PositionAtAnomaly(nu units.Radians) units.Position {
	e := o.Eccentricity
	r := float64(o.SemiMajorAxis) * (1 - e*e) / (1 + e*nu.Cos())
	return o.toEcliptic(nu, r)
}

// Path samples the closed ellipse at n evenly spaced true anomalies. The
// first point is repeated at the end.
func (o OrbitalElements) Path(n int) []units.Position {
	if n < 3 {
		n = 3
	}
	out := make([]units.Position, n+1)
	for i := 0; i < n; i++ {
		out[i] = o.PositionAtAnomaly(units.Radians(2 * math.Pi * float64(i) / float64(n)))
	}
	out[n] = out[0]
	return out
}

// Period is the sidereal period.
func (o OrbitalElements) Period() units.Days {
	return units.Days(2 * math.Pi / o.MeanMotion)
}

func (o OrbitalElements) toEcliptic(nu units.Radians, r float64) units.Position {
	u := nu + o.Perihelion
	xo, yo := r*u.Cos(), r*u.Sin()
	sn, cn := o.AscendingNode.Sin(), o.AscendingNode.Cos()
	si, ci := o.Inclination.Sin(), o.Inclination.Cos()
	return units.V3(
		units.AU(xo*cn-yo*ci*sn),
		units.AU(xo*sn+yo*ci*cn),
		units.AU(yo*si),
	)
}
