// Package units defines the nominal scalar and vector types shared by the
// heliosphere core. Each physical quantity has its own named type so that
// mixing, for example, a distance with a speed is rejected by the compiler.
// Conversions between kinds are explicit named functions.
package units

import (
	"math"
	"sort"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/soniakeys/meeus/v3/julian"
)

// Scalar is satisfied by every nominal unit type in this package.
type Scalar interface {
	~float64
}

// AU is a distance in astronomical units.
type AU float64

// Kilometers is a distance in kilometres.
type Kilometers float64

// KmPerSec is a speed in kilometres per second.
type KmPerSec float64

// Radians is an angle in radians.
type Radians float64

// Degrees is an angle in degrees.
type Degrees float64

// JulianDate is an absolute instant expressed as a Julian Date.
type JulianDate float64

// Days is a span of Julian days.
type Days float64

// Megayears is time since the reference stellar epoch (zero-age main
// sequence) in millions of years. The dataset time axis uses this unit.
type Megayears float64

// SceneUnits is a distance in the host renderer's scene space.
type SceneUnits float64

// Kelvin is a temperature.
type Kelvin float64

// Nanotesla is a magnetic field strength.
type Nanotesla float64

// PerCubicCm is a number density in particles per cm³.
type PerCubicCm float64

// Ratio is a dimensionless quantity such as a radius ratio or a rate
// normalised to its present-day value.
type Ratio float64

const (
	// KilometersPerAU is the IAU 2012 astronomical unit.
	KilometersPerAU = 149_597_870.7
	// AUPerParsec is the number of astronomical units in one parsec.
	AUPerParsec = 206_264.806
	// J2000 is the Julian Date of the J2000.0 epoch.
	J2000 JulianDate = 2_451_545.0
	// DaysPerJulianYear is the length of a Julian year.
	DaysPerJulianYear Days = 365.25
)

// Radians converts degrees to radians.
func (d Degrees) Radians() Radians { return Radians(float64(d) * math.Pi / 180) }

// Degrees converts radians to degrees.
func (r Radians) Degrees() Degrees { return Degrees(float64(r) * 180 / math.Pi) }

// Cos returns the cosine of the angle.
func (r Radians) Cos() float64 { return math.Cos(float64(r)) }

// Sin returns the sine of the angle.
func (r Radians) Sin() float64 { return math.Sin(float64(r)) }

// NormalizeDegrees wraps d into [0, 360).
func NormalizeDegrees(d Degrees) Degrees {
	out := math.Mod(float64(d), 360)
	if out < 0 {
		out += 360
	}
	return Degrees(out)
}

// NormalizeRadians wraps r into [0, 2π).
func NormalizeRadians(r Radians) Radians {
	out := math.Mod(float64(r), 2*math.Pi)
	if out < 0 {
		out += 2 * math.Pi
	}
	return Radians(out)
}

// Kilometers converts astronomical units to kilometres.
func (a AU) Kilometers() Kilometers { return Kilometers(float64(a) * KilometersPerAU) }

// AU converts kilometres to astronomical units.
func (k Kilometers) AU() AU { return AU(float64(k) / KilometersPerAU) }

// ParsecsToAU converts a distance in parsecs to astronomical units.
func ParsecsToAU(pc float64) AU { return AU(pc * AUPerParsec) }

// ToScene converts a distance to scene units using scale scene units per AU.
func (a AU) ToScene(scale float64) SceneUnits { return SceneUnits(float64(a) * scale) }

// AUPerDay converts a speed to AU per day, the integration unit used when
// advancing positions along Julian-Date time steps.
func (v KmPerSec) AUPerDay() float64 { return float64(v) * 86400 / KilometersPerAU }

// JulianDateFromTime converts a wall-clock instant to a Julian Date.
func JulianDateFromTime(t time.Time) JulianDate {
	t = t.UTC()
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()
	jd := satellite.JDay(year, int(month), day, hour, minute, sec)
	return JulianDate(jd + float64(t.Nanosecond())/1e9/86400)
}

// CalendarToJulianDate converts a Gregorian calendar date at 0h UT.
func CalendarToJulianDate(year, month int, day float64) JulianDate {
	return JulianDate(julian.CalendarGregorianToJD(year, month, day))
}

// Time converts the Julian Date back to a UTC instant.
func (jd JulianDate) Time() time.Time {
	return julian.JDToTime(float64(jd)).UTC()
}

// Add advances the date by d days.
func (jd JulianDate) Add(d Days) JulianDate { return jd + JulianDate(d) }

// Sub returns the span jd - other.
func (jd JulianDate) Sub(other JulianDate) Days { return Days(jd - other) }

// GreenwichSiderealAngle returns the Greenwich mean sidereal time at jd as
// an angle in [0, 2π): the rotation of Earth's prime meridian from the
// vernal equinox.
func (jd JulianDate) GreenwichSiderealAngle() Radians {
	return NormalizeRadians(Radians(satellite.ThetaG_JD(float64(jd))))
}

// DecimalYear returns the approximate calendar year, e.g. 2012.65.
func (jd JulianDate) DecimalYear() float64 {
	return 2000 + float64(jd.Sub(J2000)/DaysPerJulianYear)
}

// Lerp linearly interpolates between a and b; alpha 0 yields a exactly and
// alpha 1 yields b exactly.
func Lerp[T Scalar](a, b T, alpha float64) T {
	switch alpha {
	case 0:
		return a
	case 1:
		return b
	}
	return T(float64(a)*(1-alpha) + float64(b)*alpha)
}

// Clamp limits v to [lo, hi].
func Clamp[T Scalar](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Bracket binary-searches the ascending samples for t. It returns the
// indices of the samples around t with lo <= hi and the blend factor alpha
// in [0, 1]. Times outside the sampled range clamp to the nearest end with
// alpha 0, as do exact hits. NaN clamps to the first sample.
func Bracket[T Scalar](samples []T, t T) (lo, hi int, alpha float64) {
	n := len(samples)
	switch {
	case n == 0, t != t:
		return 0, 0, 0
	case t <= samples[0]:
		return 0, 0, 0
	case t >= samples[n-1]:
		return n - 1, n - 1, 0
	}
	hi = sort.Search(n, func(i int) bool { return samples[i] >= t })
	if samples[hi] == t {
		return hi, hi, 0
	}
	lo = hi - 1
	alpha = float64(t-samples[lo]) / float64(samples[hi]-samples[lo])
	return lo, hi, alpha
}
