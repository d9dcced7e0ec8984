// Package starfield builds the nearby-star background: a catalog held in
// Structure-of-Arrays form and drawn with a single instanced call.
package starfield

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/signalsfoundry/heliosphere-sim/frames"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

// DefaultDistanceParsecs is assumed for entries without a usable parallax.
const DefaultDistanceParsecs = 1000.0

// Entry is one catalog record as stored on disk.
type Entry struct {
	HIP  int64  `json:"hip"`
	Name string `json:"name,omitempty"`
	// RA and Dec are J2000 equatorial, in degrees.
	RA  units.Degrees `json:"ra"`
	Dec units.Degrees `json:"dec"`
	// Parallax is in milliarcseconds.
	Parallax float64 `json:"parallax"`
	Mag      float64 `json:"mag"`
	BV       float64 `json:"bv,omitempty"`
	Con      string  `json:"con,omitempty"`
}

// DistanceParsecs is 1000/parallax, or DefaultDistanceParsecs when the
// parallax is not positive.
func (e Entry) DistanceParsecs() float64 {
	if e.Parallax <= 0 {
		return DefaultDistanceParsecs
	}
	return 1000 / e.Parallax
}

// Position places the star in the sun-centric ecliptic frame.
func (e Entry) Position() units.Position {
	return frames.RADecToEcliptic(e.RA, e.Dec, units.ParsecsToAU(e.DistanceParsecs()))
}

// Color is BVToRGB of the entry's colour index.
func (e Entry) Color() [3]float32 { return BVToRGB(e.BV) }

// LoadCatalog decodes a JSON array of entries.
func LoadCatalog(r io.Reader) ([]Entry, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode star catalog: %w", err)
	}
	return entries, nil
}

// BVToRGB maps a B−V colour index to linear RGB in [0, 1] through a
// blackbody temperature estimate (Ballesteros 2012).
func BVToRGB(bv float64) [3]float32 {
	bv = units.Clamp(bv, -0.4, 2.0)
	temp := 4600 * (1/(0.92*bv+1.7) + 1/(0.92*bv+0.62))
	r, g, b := temperatureToRGB(temp)
	return [3]float32{float32(r), float32(g), float32(b)}
}

func temperatureToRGB(temp float64) (r, g, b float64) {
	temp = units.Clamp(temp, 1000, 40000)
	t := temp / 100
	if temp < 6600 {
		r = 1
		g = units.Clamp(0.39*math.Log(t-10)-0.634, 0, 1)
		if temp > 1900 {
			b = units.Clamp(0.543*math.Log(t-10)-1.681, 0, 1)
		}
		return r, g, b
	}
	r = units.Clamp(1.269*math.Pow(t-60, -0.1332), 0, 1)
	g = units.Clamp(1.144*math.Pow(t-60, -0.0755), 0, 1)
	return r, g, 1
}

// BrightStars is the built-in list used when no catalog file is given.
func BrightStars() []Entry {
	return append([]Entry(nil), brightStars...)
}

var brightStars = []Entry{
	{HIP: 32349, Name: "Sirius", RA: 101.287, Dec: -16.716, Parallax: 379.21, Mag: -1.46, BV: 0.00, Con: "CMa"},
	{HIP: 30438, Name: "Canopus", RA: 95.988, Dec: -52.696, Parallax: 10.55, Mag: -0.72, BV: 0.15, Con: "Car"},
	{HIP: 71683, Name: "Alpha Centauri A", RA: 219.902, Dec: -60.834, Parallax: 754.81, Mag: -0.27, BV: 0.71, Con: "Cen"},
	{HIP: 69673, Name: "Arcturus", RA: 213.915, Dec: 19.182, Parallax: 88.83, Mag: -0.05, BV: 1.23, Con: "Boo"},
	{HIP: 91262, Name: "Vega", RA: 279.235, Dec: 38.784, Parallax: 130.23, Mag: 0.03, BV: 0.00, Con: "Lyr"},
	{HIP: 24436, Name: "Capella", RA: 79.172, Dec: 45.998, Parallax: 77.29, Mag: 0.08, BV: 0.80, Con: "Aur"},
	{HIP: 24608, Name: "Rigel", RA: 78.634, Dec: -8.202, Parallax: 3.78, Mag: 0.13, BV: -0.03, Con: "Ori"},
	{HIP: 37279, Name: "Procyon", RA: 114.827, Dec: 5.225, Parallax: 284.56, Mag: 0.34, BV: 0.42, Con: "CMi"},
	{HIP: 27989, Name: "Betelgeuse", RA: 88.793, Dec: 7.407, Parallax: 6.55, Mag: 0.42, BV: 1.85, Con: "Ori"},
	{HIP: 7588, Name: "Achernar", RA: 24.429, Dec: -57.237, Parallax: 22.68, Mag: 0.46, BV: -0.16, Con: "Eri"},
	{HIP: 68702, Name: "Hadar", RA: 210.956, Dec: -60.373, Parallax: 6.21, Mag: 0.61, BV: -0.23, Con: "Cen"},
	{HIP: 97649, Name: "Altair", RA: 297.696, Dec: 8.868, Parallax: 194.45, Mag: 0.77, BV: 0.22, Con: "Aql"},
	{HIP: 60718, Name: "Acrux", RA: 186.650, Dec: -63.099, Parallax: 10.17, Mag: 0.76, BV: -0.24, Con: "Cru"},
	{HIP: 21421, Name: "Aldebaran", RA: 68.980, Dec: 16.509, Parallax: 48.94, Mag: 0.85, BV: 1.54, Con: "Tau"},
	{HIP: 65474, Name: "Spica", RA: 201.298, Dec: -11.161, Parallax: 13.06, Mag: 0.97, BV: -0.23, Con: "Vir"},
	{HIP: 80763, Name: "Antares", RA: 247.352, Dec: -26.432, Parallax: 5.89, Mag: 1.06, BV: 1.83, Con: "Sco"},
	{HIP: 37826, Name: "Pollux", RA: 116.329, Dec: 28.026, Parallax: 96.74, Mag: 1.14, BV: 1.00, Con: "Gem"},
	{HIP: 113368, Name: "Fomalhaut", RA: 344.413, Dec: -29.622, Parallax: 129.81, Mag: 1.16, BV: 0.09, Con: "PsA"},
	{HIP: 25336, Name: "Bellatrix", RA: 81.283, Dec: 6.350, Parallax: 12.92, Mag: 1.64, BV: -0.22, Con: "Ori"},
	{HIP: 26727, Name: "Alnilam", RA: 84.053, Dec: -1.202, Parallax: 1.65, Mag: 1.69, BV: -0.18, Con: "Ori"},
	{HIP: 27366, Name: "Alnitak", RA: 85.190, Dec: -1.943, Parallax: 3.99, Mag: 1.77, BV: -0.21, Con: "Ori"},
	{HIP: 25930, Name: "Mintaka", RA: 83.002, Dec: -0.299, Parallax: 4.71, Mag: 2.23, BV: -0.22, Con: "Ori"},
}

// Synthetic returns n pseudo-random stars for seed: isotropic directions,
// distances between 1 and 500 pc uniform in volume, magnitudes skewed
// toward the faint end. The same (n, seed) always gives the same catalog.
func Synthetic(n int, seed int64) []Entry {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Entry, n)
	for i := range out {
		ra := 360 * rng.Float64()
		dec := math.Asin(2*rng.Float64()-1) * 180 / math.Pi
		pc := math.Cbrt(1 + rng.Float64()*(500*500*500-1))
		out[i] = Entry{
			HIP:      int64(1_000_000 + i),
			RA:       units.Degrees(ra),
			Dec:      units.Degrees(dec),
			Parallax: 1000 / pc,
			Mag:      -1.5 + 9.5*math.Sqrt(rng.Float64()),
			BV:       -0.3 + 2.1*rng.Float64(),
		}
	}
	return out
}
