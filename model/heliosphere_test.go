package model

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/heliosphere-sim/units"
)

func paramsWith(nose units.AU, morph Morphology) HeliosphereParameters {
	p := PresentDayParameters(units.AxisX)
	p.HeliopauseNose = nose
	p.Morphology = morph
	p.Shape = DefaultShape(morph)
	return p
}

func TestInterpolateMidpoint(t *testing.T) {
	a := paramsWith(100, MorphologyCometary)
	b := paramsWith(200, MorphologyCometary)
	mid := Interpolate(a, b, 0.5)
	if math.Abs(float64(mid.HeliopauseNose)-150) > 1e-9 {
		t.Fatalf("HeliopauseNose = %v, want 150", mid.HeliopauseNose)
	}
}

func TestInterpolateEndpointsAreExactCopies(t *testing.T) {
	a := paramsWith(100.123, MorphologyCometary)
	b := paramsWith(200.456, MorphologyBubble)

	got := Interpolate(a, b, 0)
	if got.HeliopauseNose != a.HeliopauseNose || got.Morphology != a.Morphology || got.Inflow != a.Inflow {
		t.Fatalf("alpha=0 = %+v, want %+v", got, a)
	}
	got.Shape[0] = 99
	if a.Shape[0] == 99 {
		t.Fatalf("Interpolate returned shared Shape storage")
	}

	got = Interpolate(a, b, 1)
	if got.HeliopauseNose != b.HeliopauseNose || got.Morphology != b.Morphology {
		t.Fatalf("alpha=1 = %+v, want %+v", got, b)
	}
}

func TestInterpolateMorphologySnapsAtHalf(t *testing.T) {
	a := paramsWith(100, MorphologyCometary)
	b := paramsWith(100, MorphologyBubble)
	if got := Interpolate(a, b, 0.49).Morphology; got != MorphologyCometary {
		t.Fatalf("alpha=0.49 morphology = %v, want cometary", got)
	}
	if got := Interpolate(a, b, 0.5).Morphology; got != MorphologyBubble {
		t.Fatalf("alpha=0.5 morphology = %v, want bubble", got)
	}
}

func TestInterpolateRenormalizesInflow(t *testing.T) {
	a := paramsWith(100, MorphologyCometary)
	b := paramsWith(100, MorphologyCometary)
	b.Inflow = units.AxisY
	for _, alpha := range []float64{0.1, 0.3, 0.5, 0.7} {
		got := Interpolate(a, b, alpha).Inflow
		if math.Abs(got.Norm()-1) > 1e-6 {
			t.Fatalf("alpha=%v |inflow| = %v, want 1", alpha, got.Norm())
		}
	}
}

func TestInterpolatePadsShortShape(t *testing.T) {
	a := paramsWith(100, MorphologyBubble) // one coefficient
	b := paramsWith(100, MorphologyCroissant)
	got := Interpolate(a, b, 0.5)
	if len(got.Shape) != 3 {
		t.Fatalf("len(Shape) = %d, want 3", len(got.Shape))
	}
	if math.Abs(got.Shape[2]-0.15) > 1e-12 {
		t.Fatalf("Shape[2] = %v, want 0.15", got.Shape[2])
	}
}

func TestShapeCoefficientDefaults(t *testing.T) {
	p := paramsWith(100, MorphologyCroissant)
	p.Shape = []float64{2}
	if got := p.ShapeCoefficient(0); got != 2 {
		t.Fatalf("ShapeCoefficient(0) = %v, want 2", got)
	}
	if got := p.ShapeCoefficient(1); got != 0.7 {
		t.Fatalf("ShapeCoefficient(1) = %v, want 0.7", got)
	}
}

func TestParseMorphology(t *testing.T) {
	for in, want := range map[string]Morphology{
		"cometary":  MorphologyCometary,
		"Croissant": MorphologyCroissant,
		"bubble":    MorphologyBubble,
	} {
		got, err := ParseMorphology(in)
		if err != nil || got != want {
			t.Fatalf("ParseMorphology(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMorphology("torus"); err == nil {
		t.Fatalf("expected error for unknown morphology")
	}
}

func TestValidateSamplesRequiresStrictOrder(t *testing.T) {
	ok := []TrajectorySample{{Time: 1}, {Time: 2}}
	if err := ValidateSamples(ok); err != nil {
		t.Fatalf("ValidateSamples(ok) = %v", err)
	}
	bad := []TrajectorySample{{Time: 1}, {Time: 1}}
	if err := ValidateSamples(bad); !errors.Is(err, ErrTrajectoryInvalid) {
		t.Fatalf("ValidateSamples(bad) = %v, want ErrTrajectoryInvalid", err)
	}
}
