package surface

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/heliosphere-sim/frames"
	"github.com/signalsfoundry/heliosphere-sim/model"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

func params(morph model.Morphology, shape ...float64) model.HeliosphereParameters {
	p := model.PresentDayParameters(frames.DefaultInflowDirection())
	p.Morphology = morph
	p.Shape = shape
	return p
}

func TestBubbleWithZeroCoefficientIsSphere(t *testing.T) {
	p := params(model.MorphologyBubble, 0)
	p.HeliopauseNose = 150
	s := New(p)
	for i := 0; i <= 12; i++ {
		for j := 0; j <= 24; j++ {
			theta := units.Radians(math.Pi * float64(i) / 12)
			phi := units.Radians(2 * math.Pi * float64(j) / 24)
			if got := s.RadiusAt(theta, phi); got != 150 {
				t.Fatalf("RadiusAt(%v, %v) = %v, want 150", theta, phi, got)
			}
		}
	}
}

func TestShockNeverExceedsHeliopause(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, morph := range []model.Morphology{model.MorphologyCometary, model.MorphologyCroissant, model.MorphologyBubble} {
		for trial := range 20 {
			p := params(morph)
			p.HeliopauseNose = units.AU(50 + rng.Float64()*400)
			p.ShockRatio = units.Ratio(0.5 + rng.Float64()*0.8) // some above 1
			p.Shape = []float64{rng.Float64() * 3, rng.Float64() * 3, rng.Float64()}
			s := New(p)
			for range 200 {
				theta := units.Radians(rng.Float64() * math.Pi)
				phi := units.Radians(rng.Float64() * 2 * math.Pi)
				ts, hp := s.TerminationShockRadius(theta, phi), s.RadiusAt(theta, phi)
				if ts > hp {
					t.Fatalf("%v trial %d: shock %v > heliopause %v at (%v, %v)", morph, trial, ts, hp, theta, phi)
				}
				if hp <= 0 {
					t.Fatalf("%v trial %d: non-positive radius %v", morph, trial, hp)
				}
			}
		}
	}
}

func TestCometaryNoseAndTail(t *testing.T) {
	s := New(params(model.MorphologyCometary, 1, 2.5, 0.5))
	nose := s.RadiusToward(Heliopause, s.Nose())
	tail := s.RadiusToward(Heliopause, s.Nose().Neg())
	assert.InDelta(t, 121.6, float64(nose), 1e-9)
	assert.InDelta(t, 121.6*4, float64(tail), 1e-9)

	shock := s.RadiusToward(TerminationShock, s.Nose())
	assert.InDelta(t, 121.6*0.77, float64(shock), 1e-9)
}

func TestCometaryUsesDefaultsForShortShape(t *testing.T) {
	full := New(params(model.MorphologyCometary, 1, 2.5, 0.5))
	short := New(params(model.MorphologyCometary))
	for _, theta := range []units.Radians{0.3, 1.2, 2.8} {
		assert.Equal(t, full.RadiusAt(theta, 1), short.RadiusAt(theta, 1))
	}
}

func TestCroissantFlattensTowardPoles(t *testing.T) {
	p := params(model.MorphologyCroissant, 1.5, 0.7, 0.3)
	p.Inflow = units.AxisX.Neg()
	s := New(p)

	// Perpendicular to the nose: equatorial flank versus the pole.
	flank := s.RadiusToward(Heliopause, units.AxisY)
	pole := s.RadiusToward(Heliopause, units.AxisZ)
	assert.Less(t, float64(pole), float64(flank))
	assert.InDelta(t, float64(flank)*0.3, float64(pole), 1e-9)

	nose := s.RadiusToward(Heliopause, units.AxisX)
	assert.InDelta(t, 121.6, float64(nose), 1e-9)
}

func TestBubbleNoseEqualsNoseRadius(t *testing.T) {
	s := New(params(model.MorphologyBubble, 0.2))
	assert.InDelta(t, 121.6, float64(s.RadiusToward(Heliopause, s.Nose())), 1e-9)
	assert.Less(t, float64(s.RadiusToward(Heliopause, s.Nose().Neg())), 121.6)
}

func TestGenerateMeshTopology(t *testing.T) {
	s := New(params(model.MorphologyCometary))
	m, err := s.GenerateMesh(16, 32, Heliopause)
	require.NoError(t, err)

	assert.Equal(t, 17*33, m.VertexCount())
	assert.Equal(t, 2*16*32, m.TriangleCount())
	assert.Len(t, m.Normals, len(m.Positions))
	for _, idx := range m.Indices {
		require.Less(t, int(idx), m.VertexCount())
	}
	// First quad follows the (a, b, a+1), (b, b+1, a+1) winding.
	assert.Equal(t, []uint32{0, 33, 1, 33, 34, 1}, m.Indices[:6])
}

func TestGenerateMeshNormalsAreUnitAndOutward(t *testing.T) {
	for _, morph := range []model.Morphology{model.MorphologyCometary, model.MorphologyCroissant, model.MorphologyBubble} {
		s := New(params(morph))
		m, err := s.GenerateMesh(12, 24, TerminationShock)
		require.NoError(t, err)
		for i := range m.VertexCount() {
			nx, ny, nz := float64(m.Normals[3*i]), float64(m.Normals[3*i+1]), float64(m.Normals[3*i+2])
			require.InDelta(t, 1, math.Sqrt(nx*nx+ny*ny+nz*nz), 1e-5, "%v vertex %d", morph, i)
			p := m.Vertex(i)
			dot := float64(p.X)*nx + float64(p.Y)*ny + float64(p.Z)*nz
			require.Greater(t, dot, 0.0, "%v vertex %d normal points inward", morph, i)
		}
	}
}

func TestSphereNormalsAreRadial(t *testing.T) {
	s := New(params(model.MorphologyBubble, 0))
	m, err := s.GenerateMesh(8, 16, Heliopause)
	require.NoError(t, err)
	for i := range m.VertexCount() {
		p := m.Vertex(i)
		d, ok := p.Direction()
		require.True(t, ok)
		assert.InDelta(t, d.X(), float64(m.Normals[3*i]), 1e-4)
		assert.InDelta(t, d.Y(), float64(m.Normals[3*i+1]), 1e-4)
		assert.InDelta(t, d.Z(), float64(m.Normals[3*i+2]), 1e-4)
	}
	lo, hi := m.Extent()
	assert.InDelta(t, 121.6, float64(lo), 1e-4)
	assert.InDelta(t, 121.6, float64(hi), 1e-4)
}

func TestGenerateMeshRejectsCoarseGrid(t *testing.T) {
	_, err := New(params(model.MorphologyBubble)).GenerateMesh(1, 8, Heliopause)
	if !errors.Is(err, ErrInvalidResolution) {
		t.Fatalf("err = %v, want ErrInvalidResolution", err)
	}
}

func TestRandomPointLiesOnSurface(t *testing.T) {
	s := New(params(model.MorphologyCroissant))
	rng := rand.New(rand.NewSource(3))
	for range 100 {
		p := s.RandomPoint(rng, Heliopause)
		d, ok := p.Direction()
		require.True(t, ok)
		assert.InDelta(t, float64(s.RadiusToward(Heliopause, d)), float64(p.Norm()), 1e-6)
	}
}

func TestSurfaceDoesNotAliasParameters(t *testing.T) {
	p := params(model.MorphologyCometary, 1, 2.5, 0.5)
	s := New(p)
	p.Shape[0] = 10
	assert.Equal(t, 1.0, s.Parameters().Shape[0])
}
