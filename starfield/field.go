package starfield

import (
	"fmt"
	"math"
	"sort"

	"github.com/signalsfoundry/heliosphere-sim/soa"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

// FadeRange is the magnitude span over which stars near the limit fade out.
const FadeRange = 0.5

// Visibility is 1 for stars brighter than limit−FadeRange, 0 at or beyond
// limit, and linear in between.
func Visibility(mag, limit float64) float64 {
	switch {
	case mag >= limit:
		return 0
	case mag > limit-FadeRange:
		return (limit - mag) / FadeRange
	default:
		return 1
	}
}

// ApparentSize is the instance scale for a magnitude: 2.512^(−mag/2.5),
// clamped to [0.3, 6].
func ApparentSize(mag float64) float64 {
	return units.Clamp(math.Pow(2.512, -mag/2.5), 0.3, 6)
}

// Field is a magnitude-limited star catalog ready for instanced drawing.
type Field struct {
	catalog *soa.StarCatalog
	limit   float64
	names   map[int64]string
}

// New keeps the entries brighter than magLimit, brightest first, and stores
// at most maxStars of them. maxStars <= 0 keeps every star under the limit.
func New(entries []Entry, magLimit float64, maxStars int) (*Field, error) {
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Mag < magLimit {
			kept = append(kept, e)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Mag < kept[j].Mag })
	if maxStars > 0 && len(kept) > maxStars {
		kept = kept[:maxStars]
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no stars brighter than magnitude %.1f", magLimit)
	}

	cat, err := soa.NewStarCatalog(len(kept))
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string)
	for _, e := range kept {
		if err := cat.Append(e.HIP, e.Position(), float32(e.Mag), e.Color()); err != nil {
			return nil, err
		}
		if e.Name != "" {
			names[e.HIP] = e.Name
		}
	}
	return &Field{catalog: cat, limit: magLimit, names: names}, nil
}

// Catalog exposes the underlying arrays.
func (f *Field) Catalog() *soa.StarCatalog { return f.catalog }

// Len is the number of stars drawn.
func (f *Field) Len() int { return f.catalog.Len() }

// MagnitudeLimit is the limit the field was built with.
func (f *Field) MagnitudeLimit() float64 { return f.limit }

// Name returns the proper name of a catalogued star, if any.
func (f *Field) Name(hip int64) (string, bool) {
	n, ok := f.names[hip]
	return n, ok
}

// InstancedDraw is a single draw call covering the whole catalog.
// Transforms holds one column-major 4x4 matrix per instance; Colors holds
// RGBA with alpha set from Visibility.
type InstancedDraw struct {
	Mesh       string
	Instances  int
	Transforms []float32
	Colors     []float32
}

// StarMesh names the billboard every instance shares.
const StarMesh = "star-billboard"

// Draw fills one instanced draw for the catalog. Positions are in scene
// units (scale per AU); stars farther than maxDistance AU are pulled in
// along their direction to sit on that sphere. pointScale multiplies the
// apparent size. A non-nil draw is reused.
func (f *Field) Draw(scale float64, maxDistance units.AU, pointScale float64, draw *InstancedDraw) *InstancedDraw {
	n := f.catalog.Len()
	if draw == nil {
		draw = &InstancedDraw{}
	}
	draw.Mesh = StarMesh
	draw.Instances = n
	draw.Transforms = resize(draw.Transforms, 16*n)
	draw.Colors = resize(draw.Colors, 4*n)

	c := f.catalog
	for i := range n {
		p := c.Position(i)
		if maxDistance > 0 {
			if d := p.Norm(); d > maxDistance {
				p = p.Scale(float64(maxDistance / d))
			}
		}
		s := float32(ApparentSize(float64(c.Magnitude[i])) * pointScale)
		m := draw.Transforms[16*i : 16*i+16]
		clear(m)
		m[0], m[5], m[10], m[15] = s, s, s, 1
		m[12] = float32(p.X.ToScene(scale))
		m[13] = float32(p.Y.ToScene(scale))
		m[14] = float32(p.Z.ToScene(scale))

		col := draw.Colors[4*i : 4*i+4]
		col[0], col[1], col[2] = c.R[i], c.G[i], c.B[i]
		col[3] = float32(Visibility(float64(c.Magnitude[i]), f.limit))
	}
	return draw
}

func resize(b []float32, n int) []float32 {
	if cap(b) < n {
		return make([]float32, n)
	}
	return b[:n]
}

// Background describes the decorative sky sphere drawn behind everything.
// It has no physical meaning.
type Background struct {
	Radius   units.SceneUnits
	Segments int
	Texture  string
}

// BackgroundSphere returns a sphere just outside maxDistance.
func BackgroundSphere(scale float64, maxDistance units.AU, texture string) Background {
	return Background{
		Radius:   (maxDistance * 1.05).ToScene(scale),
		Segments: 64,
		Texture:  texture,
	}
}
