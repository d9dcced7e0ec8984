package starfield

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/heliosphere-sim/units"
)

func TestBVToRGB(t *testing.T) {
	blue := BVToRGB(-0.3)
	assert.Greater(t, blue[2], blue[0], "hot star should be bluer than red")

	red := BVToRGB(1.8)
	assert.Greater(t, red[0], red[2], "cool star should be redder than blue")

	for _, bv := range []float64{-5, -0.4, 0, 0.65, 1.2, 2, 9} {
		for i, c := range BVToRGB(bv) {
			if c < 0 || c > 1 || math.IsNaN(float64(c)) {
				t.Fatalf("BVToRGB(%v)[%d] = %v", bv, i, c)
			}
		}
	}
}

func TestEntryPosition(t *testing.T) {
	sirius := BrightStars()[0]
	require.Equal(t, "Sirius", sirius.Name)

	wantAU := 1000 / 379.21 * units.AUPerParsec
	assert.InDelta(t, wantAU, float64(sirius.Position().Norm()), 1e-6*wantAU)

	far := Entry{RA: 10, Dec: 20, Parallax: 0}
	assert.InDelta(t, DefaultDistanceParsecs*units.AUPerParsec, float64(far.Position().Norm()), 1)
}

func TestLoadCatalog(t *testing.T) {
	src := `[{"hip": 91262, "name": "Vega", "ra": 279.235, "dec": 38.784, "parallax": 130.23, "mag": 0.03, "bv": 0.0, "con": "Lyr"},
	         {"hip": 1, "ra": 0, "dec": 0, "parallax": 1, "mag": 7.2}]`
	entries, err := LoadCatalog(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Vega", entries[0].Name)
	assert.Equal(t, 7.2, entries[1].Mag)

	_, err = LoadCatalog(strings.NewReader(`{"hip": 1}`))
	assert.Error(t, err)
}

func TestSyntheticIsDeterministic(t *testing.T) {
	a, b := Synthetic(500, 42), Synthetic(500, 42)
	require.Equal(t, a, b)
	assert.NotEqual(t, a, Synthetic(500, 43))
	for _, e := range a {
		pc := e.DistanceParsecs()
		if pc < 1-1e-9 || pc > 500+1e-9 {
			t.Fatalf("synthetic distance %v pc outside [1, 500]", pc)
		}
	}
}

func TestNewAppliesMagnitudeLimit(t *testing.T) {
	f, err := New(BrightStars(), 1.0, 0)
	require.NoError(t, err)
	cat := f.Catalog()
	for i := range cat.Len() {
		assert.Less(t, cat.Magnitude[i], float32(1.0))
	}
	assert.Equal(t, float32(-1.46), cat.Magnitude[0], "brightest first")
	name, ok := f.Name(32349)
	assert.True(t, ok)
	assert.Equal(t, "Sirius", name)

	capped, err := New(BrightStars(), 10, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, capped.Len())

	_, err = New(BrightStars(), -5, 0)
	assert.Error(t, err)
}

func TestDrawSingleInstancedCall(t *testing.T) {
	f, err := New(Synthetic(1000, 7), 6.5, 0)
	require.NoError(t, err)

	const maxAU = units.AU(1e6)
	draw := f.Draw(0.001, maxAU, 1, nil)
	require.Equal(t, f.Len(), draw.Instances)
	require.Len(t, draw.Transforms, 16*f.Len())
	require.Len(t, draw.Colors, 4*f.Len())
	assert.Equal(t, StarMesh, draw.Mesh)

	limit := float64(maxAU) * 0.001
	for i := range draw.Instances {
		m := draw.Transforms[16*i : 16*i+16]
		r := math.Sqrt(float64(m[12]*m[12] + m[13]*m[13] + m[14]*m[14]))
		if r > limit*(1+1e-5) {
			t.Fatalf("instance %d at %v scene units, beyond %v", i, r, limit)
		}
		if m[15] != 1 || m[0] <= 0 {
			t.Fatalf("instance %d transform %v", i, m)
		}
		if a := draw.Colors[4*i+3]; a < 0 || a > 1 {
			t.Fatalf("instance %d alpha %v", i, a)
		}
	}

	again := f.Draw(0.001, maxAU, 1, draw)
	assert.Same(t, draw, again)
}

func TestVisibilityAndSize(t *testing.T) {
	assert.Equal(t, 1.0, Visibility(2, 6))
	assert.Equal(t, 0.0, Visibility(6, 6))
	assert.InDelta(t, 0.5, Visibility(5.75, 6), 1e-12)

	assert.InDelta(t, 1.0, ApparentSize(0), 1e-12)
	assert.Equal(t, 0.3, ApparentSize(20))
	assert.Equal(t, 6.0, ApparentSize(-10))
}

func TestBackgroundSphere(t *testing.T) {
	bg := BackgroundSphere(0.01, 1000, "milkyway.jpg")
	assert.InDelta(t, 10.5, float64(bg.Radius), 1e-9)
	assert.Equal(t, "milkyway.jpg", bg.Texture)
}
