package model

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/heliosphere-sim/units"
)

// Morphology is the closed set of heliosphere shape models.
type Morphology int

const (
	// MorphologyCometary is the present-day shape: a blunt nose with a long
	// tail swept downwind.
	MorphologyCometary Morphology = iota
	// MorphologyCroissant is a cometary base flattened toward the poles
	// with a bifurcated tail.
	MorphologyCroissant
	// MorphologyBubble is near-spherical.
	MorphologyBubble
)

// String returns the dataset name of the morphology.
func (m Morphology) String() string {
	switch m {
	case MorphologyCometary:
		return "cometary"
	case MorphologyCroissant:
		return "croissant"
	case MorphologyBubble:
		return "bubble"
	default:
		return fmt.Sprintf("morphology(%d)", int(m))
	}
}

// ParseMorphology maps a dataset morphology tag to a Morphology.
func ParseMorphology(s string) (Morphology, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cometary":
		return MorphologyCometary, nil
	case "croissant", "flattened":
		return MorphologyCroissant, nil
	case "bubble", "spherical", "near-spherical":
		return MorphologyBubble, nil
	default:
		return 0, fmt.Errorf("unknown morphology %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Morphology) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Morphology) UnmarshalText(b []byte) error {
	parsed, err := ParseMorphology(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// DefaultShape returns the shape coefficients used when a parameter set
// carries fewer coefficients than its morphology reads.
func DefaultShape(m Morphology) []float64 {
	switch m {
	case MorphologyCroissant:
		return []float64{1.5, 0.7, 0.3}
	case MorphologyBubble:
		return []float64{0.1}
	default:
		return []float64{1.0, 2.5, 0.5}
	}
}

// HeliosphereParameters describes the heliosphere at one simulated instant.
// Values are built fresh by the dataset loader for every query and must be
// treated as immutable once returned.
type HeliosphereParameters struct {
	// HeliopauseNose is the heliopause radius in the upwind direction.
	HeliopauseNose units.AU
	// ShockRatio is termination-shock radius over heliopause radius.
	ShockRatio units.Ratio
	// Inflow is the direction the ISM flows toward the Sun.
	Inflow units.Direction

	ISMDensity     units.PerCubicCm
	ISMTemperature units.Kelvin
	ISMField       units.Nanotesla

	// WindMassLoss is the solar mass-loss rate relative to today.
	WindMassLoss units.Ratio
	WindSpeed    units.KmPerSec

	Morphology Morphology
	Shape      []float64

	// Fallback marks a substituted parameter set used when the stored epoch
	// was missing or failed to load.
	Fallback bool
}

// ShapeCoefficient returns Shape[i], or the morphology default when the
// stored array is too short.
func (p HeliosphereParameters) ShapeCoefficient(i int) float64 {
	if i < len(p.Shape) {
		return p.Shape[i]
	}
	def := DefaultShape(p.Morphology)
	if i < len(def) {
		return def[i]
	}
	return 0
}

// Clone returns a deep copy.
func (p HeliosphereParameters) Clone() HeliosphereParameters {
	out := p
	if p.Shape != nil {
		out.Shape = append([]float64(nil), p.Shape...)
	}
	return out
}

// PresentDayParameters is the physically reasonable parameter set used as a
// fallback for missing epochs: a cometary heliosphere with the heliopause
// nose at the Voyager 1 crossing distance.
func PresentDayParameters(inflow units.Direction) HeliosphereParameters {
	return HeliosphereParameters{
		HeliopauseNose: 121.6,
		ShockRatio:     0.77,
		Inflow:         inflow,
		ISMDensity:     0.1,
		ISMTemperature: 6300,
		ISMField:       0.3,
		WindMassLoss:   1,
		WindSpeed:      400,
		Morphology:     MorphologyCometary,
		Shape:          DefaultShape(MorphologyCometary),
	}
}

// Interpolate blends two parameter sets. Every scalar is linearly
// interpolated, the inflow direction is interpolated component-wise and
// renormalised, and the morphology snaps to a below alpha 0.5 and to b from
// 0.5 upward. alpha is clamped to [0, 1]; alpha 0 and 1 return exact copies
// of a and b.
func Interpolate(a, b HeliosphereParameters, alpha float64) HeliosphereParameters {
	alpha = units.Clamp(alpha, 0, 1)
	switch alpha {
	case 0:
		return a.Clone()
	case 1:
		return b.Clone()
	}

	morph := a.Morphology
	if alpha >= 0.5 {
		morph = b.Morphology
	}

	n := max(len(a.Shape), len(b.Shape))
	shape := make([]float64, n)
	for i := range n {
		var s0, s1 float64
		if i < len(a.Shape) {
			s0 = a.Shape[i]
		}
		if i < len(b.Shape) {
			s1 = b.Shape[i]
		}
		shape[i] = units.Lerp(s0, s1, alpha)
	}

	return HeliosphereParameters{
		HeliopauseNose: units.Lerp(a.HeliopauseNose, b.HeliopauseNose, alpha),
		ShockRatio:     units.Lerp(a.ShockRatio, b.ShockRatio, alpha),
		Inflow:         units.LerpDirection(a.Inflow, b.Inflow, alpha),
		ISMDensity:     units.Lerp(a.ISMDensity, b.ISMDensity, alpha),
		ISMTemperature: units.Lerp(a.ISMTemperature, b.ISMTemperature, alpha),
		ISMField:       units.Lerp(a.ISMField, b.ISMField, alpha),
		WindMassLoss:   units.Lerp(a.WindMassLoss, b.WindMassLoss, alpha),
		WindSpeed:      units.Lerp(a.WindSpeed, b.WindSpeed, alpha),
		Morphology:     morph,
		Shape:          shape,
		Fallback:       a.Fallback || b.Fallback,
	}
}
