// Package surface turns a heliosphere parameter set into a queryable radius
// function and triangulated meshes for the heliopause and the termination
// shock.
package surface

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/signalsfoundry/heliosphere-sim/model"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

// ErrInvalidResolution is returned for mesh grids too coarse to close.
var ErrInvalidResolution = errors.New("invalid mesh resolution")

// NormalEpsilon is the angular step used for finite-difference normals.
const NormalEpsilon units.Radians = 0.01

// minFactor keeps radii strictly positive for extreme shape coefficients.
const minFactor = 0.1

// Kind selects which boundary a query refers to.
type Kind int

const (
	Heliopause Kind = iota
	TerminationShock
)

func (k Kind) String() string {
	switch k {
	case Heliopause:
		return "heliopause"
	case TerminationShock:
		return "termination-shock"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Surface evaluates one parameter set. It never mutates the parameters.
type Surface struct {
	params model.HeliosphereParameters
	nose   units.Direction
}

// New builds a surface for p. The nose points against the inflow.
func New(p model.HeliosphereParameters) *Surface {
	nose := p.Inflow.Neg()
	if nose.IsZero() {
		nose = units.AxisX
	}
	return &Surface{params: p.Clone(), nose: nose}
}

// Parameters returns a copy of the parameter set.
func (s *Surface) Parameters() model.HeliosphereParameters { return s.params.Clone() }

// Nose returns the upwind direction.
func (s *Surface) Nose() units.Direction { return s.nose }

// RadiusAt returns the heliopause radius in the direction given by polar
// angle theta (from +Z) and azimuth phi (from +X toward +Y).
func (s *Surface) RadiusAt(theta, phi units.Radians) units.AU {
	return s.radiusToward(units.FromSpherical(theta, phi))
}

// TerminationShockRadius is RadiusAt scaled by the shock ratio, which is
// capped at 1 so the shock never lies outside the heliopause.
func (s *Surface) TerminationShockRadius(theta, phi units.Radians) units.AU {
	return s.shockFrom(s.RadiusAt(theta, phi))
}

// Radius dispatches on kind.
func (s *Surface) Radius(kind Kind, theta, phi units.Radians) units.AU {
	if kind == TerminationShock {
		return s.TerminationShockRadius(theta, phi)
	}
	return s.RadiusAt(theta, phi)
}

// RadiusToward returns the radius of kind along d.
func (s *Surface) RadiusToward(kind Kind, d units.Direction) units.AU {
	r := s.radiusToward(d)
	if kind == TerminationShock {
		return s.shockFrom(r)
	}
	return r
}

func (s *Surface) shockFrom(hp units.AU) units.AU {
	ratio := units.Clamp(s.params.ShockRatio, 0, 1)
	return units.AU(float64(hp) * float64(ratio))
}

// SamplePoint returns the point on the surface of kind at (theta, phi).
func (s *Surface) SamplePoint(kind Kind, theta, phi units.Radians) units.Position {
	return units.Scaled(units.FromSpherical(theta, phi), s.Radius(kind, theta, phi))
}

// RandomPoint samples a direction uniformly on the sphere and returns the
// surface point of kind along it.
func (s *Surface) RandomPoint(rng *rand.Rand, kind Kind) units.Position {
	z := 2*rng.Float64() - 1
	theta := units.Radians(math.Acos(z))
	phi := units.Radians(2 * math.Pi * rng.Float64())
	return s.SamplePoint(kind, theta, phi)
}

func (s *Surface) radiusToward(d units.Direction) units.AU {
	cosAlpha := units.Clamp(d.Dot(s.nose), -1, 1)
	rNose := float64(s.params.HeliopauseNose)

	var factor float64
	switch s.params.Morphology {
	case model.MorphologyCroissant:
		factor = s.croissant(cosAlpha, d.Z())
	case model.MorphologyBubble:
		factor = s.bubble(cosAlpha)
	default:
		factor = cometary(cosAlpha,
			s.params.ShapeCoefficient(0),
			s.params.ShapeCoefficient(1),
			s.params.ShapeCoefficient(2))
	}
	return units.AU(rNose * factor)
}

// cometary is a quadratic in cos(alpha) arranged so the nose factor is a0
// and the factor grows by a1 + a2 toward the tail.
func cometary(cosAlpha, a0, a1, a2 float64) float64 {
	u := (1 - cosAlpha) / 2
	return math.Max(a0+a1*u+a2*u*u, minFactor)
}

// croissant takes the default cometary profile, stretches only the tail by
// the asymmetry coefficient, flattens toward the poles and splits the tail
// into two lobes.
func (s *Surface) croissant(cosAlpha, cosTheta float64) float64 {
	asymmetry := s.params.ShapeCoefficient(0)
	flattening := s.params.ShapeCoefficient(1)
	spread := s.params.ShapeCoefficient(2)

	def := model.DefaultShape(model.MorphologyCometary)
	base := cometary(cosAlpha, def[0], def[1], def[2])

	tail := 1 + (asymmetry-1)*math.Max(0, -cosAlpha)
	latitude := 1 - flattening*cosTheta*cosTheta
	lobes := 1.0
	if alpha := math.Acos(cosAlpha); alpha > math.Pi/2 {
		lobes = 1 + spread*math.Sin(2*(alpha-math.Pi/2))
	}
	return math.Max(base*tail*latitude*lobes, minFactor)
}

// bubble perturbs a sphere by a cos(alpha) term, normalised so the nose
// radius equals R_nose. A zero coefficient gives a perfect sphere.
func (s *Surface) bubble(cosAlpha float64) float64 {
	a := s.params.ShapeCoefficient(0)
	if a == 0 {
		return 1
	}
	return math.Max((1+a*cosAlpha)/(1+a), minFactor)
}
