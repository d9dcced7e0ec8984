package frames

import (
	"math"

	"github.com/soniakeys/meeus/v3/nutation"

	"github.com/signalsfoundry/heliosphere-sim/units"
)

// Reference directions used by overlays and the default dataset fallback.
const (
	// InflowLongitude and InflowLatitude give the upwind ISM direction in
	// ecliptic J2000 coordinates (IBEX).
	InflowLongitude units.Degrees = 255.4
	InflowLatitude  units.Degrees = 5.2

	// SolarApexRA and SolarApexDec give the solar apex in equatorial
	// coordinates.
	SolarApexRA  units.Degrees = 277.0
	SolarApexDec units.Degrees = 30.0
)

// equatorialToGalactic is the IAU J2000 rotation from ICRS equatorial to
// galactic coordinates.
var equatorialToGalactic = Mat3{
	{-0.0548755604162154, -0.8734370902348850, -0.4838350155487132},
	{+0.4941094278755837, -0.4448296299600112, +0.7469822444972189},
	{-0.8676661490190047, -0.1980763734312015, +0.4559837761750669},
}

// Obliquity returns the mean obliquity of the ecliptic at jd.
func Obliquity(jd units.JulianDate) units.Radians {
	return units.Radians(nutation.MeanObliquity(float64(jd)).Rad())
}

// EclipticToEquatorial returns the rotation from ecliptic to equatorial
// coordinates at jd.
func EclipticToEquatorial(jd units.JulianDate) Mat3 {
	eps := Obliquity(jd)
	c, s := eps.Cos(), eps.Sin()
	return Mat3{
		{1, 0, 0},
		{0, c, -s},
		{0, s, c},
	}
}

// EquatorialToEcliptic is the inverse of EclipticToEquatorial.
func EquatorialToEcliptic(jd units.JulianDate) Mat3 {
	return EclipticToEquatorial(jd).Transpose()
}

// EquatorialToGalactic returns the J2000 equatorial to galactic rotation.
func EquatorialToGalactic() Mat3 { return equatorialToGalactic }

// GalacticToEquatorial is the inverse of EquatorialToGalactic.
func GalacticToEquatorial() Mat3 { return equatorialToGalactic.Transpose() }

// EclipticToGalactic chains ecliptic → equatorial → galactic at J2000.
func EclipticToGalactic() Mat3 {
	return equatorialToGalactic.Mul(EclipticToEquatorial(units.J2000))
}

// SphericalDirection builds a direction from a longitude-like angle and a
// latitude-like angle (RA/Dec, ecliptic λ/β, galactic l/b).
func SphericalDirection(lon, lat units.Degrees) units.Direction {
	l, b := lon.Radians(), lat.Radians()
	return units.MustDirection(b.Cos()*l.Cos(), b.Cos()*l.Sin(), b.Sin())
}

// LonLat is the inverse of SphericalDirection; lon is wrapped into [0, 360).
func LonLat(d units.Direction) (lon, lat units.Degrees) {
	x, y, z := d.Components()
	lon = units.NormalizeDegrees(units.Radians(math.Atan2(y, x)).Degrees())
	lat = units.Radians(math.Asin(units.Clamp(z, -1, 1))).Degrees()
	return lon, lat
}

// RADecToEcliptic converts equatorial RA/Dec at distance into a J2000
// ecliptic position.
func RADecToEcliptic(ra, dec units.Degrees, distance units.AU) units.Position {
	eq := units.Scaled(SphericalDirection(ra, dec), distance)
	return Apply(EquatorialToEcliptic(units.J2000), eq)
}

// DefaultInflowDirection is the ISM flow direction toward the Sun, i.e. the
// opposite of the upwind nose at (InflowLongitude, InflowLatitude).
func DefaultInflowDirection() units.Direction {
	return SphericalDirection(InflowLongitude, InflowLatitude).Neg()
}

// SolarApexDirection is the Sun's motion relative to nearby stars,
// expressed in the J2000 ecliptic frame.
func SolarApexDirection() units.Direction {
	return ApplyDirection(EquatorialToEcliptic(units.J2000), SphericalDirection(SolarApexRA, SolarApexDec))
}

// PrimeMeridian is the direction from Earth's centre to the equator under
// the Greenwich meridian at jd, in the ecliptic frame.
func PrimeMeridian(jd units.JulianDate) units.Direction {
	theta := jd.GreenwichSiderealAngle()
	eq := units.MustDirection(theta.Cos(), theta.Sin(), 0)
	return ApplyDirection(EquatorialToEcliptic(jd), eq)
}

// AngularSeparation returns the great-circle separation between two
// longitude/latitude pairs using the haversine formula.
func AngularSeparation(lon1, lat1, lon2, lat2 units.Degrees) units.Degrees {
	l1, b1 := lon1.Radians(), lat1.Radians()
	l2, b2 := lon2.Radians(), lat2.Radians()
	dLat := float64(b2 - b1)
	dLon := float64(l2 - l1)
	a := math.Pow(math.Sin(dLat/2), 2) + b1.Cos()*b2.Cos()*math.Pow(math.Sin(dLon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return units.Radians(c).Degrees()
}
