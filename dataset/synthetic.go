package dataset

import (
	"context"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/signalsfoundry/heliosphere-sim/frames"
	"github.com/signalsfoundry/heliosphere-sim/model"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

// Files is an in-memory dataset keyed by resource path. It is a Source.
type Files map[string][]byte

// Fetch implements Source.
func (f Files) Fetch(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, ok := f[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return b, nil
}

// WriteDir writes every resource under dir, creating subdirectories.
func (f Files) WriteDir(dir string) error {
	for p, b := range f {
		dst := filepath.Join(dir, filepath.FromSlash(path.Clean(p)))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, b, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// PresentAge is the Sun's age at which SyntheticParameters reproduces the
// present-day parameter set.
const PresentAge units.Megayears = 4600

// SyntheticParameters is a toy stellar-evolution model of the heliosphere:
// the wind weakens with age (Ṁ ∝ t^-1.5, v ∝ t^-0.4), the Sun drifts
// through ISM density fluctuations with a 250 Myr period, and the
// heliopause stand-off follows pressure balance, R ∝ sqrt(Ṁv/ρ).
func SyntheticParameters(t units.Megayears) model.HeliosphereParameters {
	age := math.Max(float64(t), 50) / float64(PresentAge)
	mdot := units.Clamp(math.Pow(age, -1.5), 0.5, 100)
	speed := 400 * units.Clamp(math.Pow(age, -0.4), 0.8, 3)
	density := 1 + 0.5*math.Sin(2*math.Pi*float64(t-PresentAge)/250)

	p := model.PresentDayParameters(frames.DefaultInflowDirection())
	p.WindMassLoss = units.Ratio(mdot)
	p.WindSpeed = units.KmPerSec(speed)
	p.ISMDensity = units.PerCubicCm(0.1 * density)
	p.HeliopauseNose = units.AU(121.6 * math.Sqrt(mdot*speed/400/density))

	switch {
	case mdot >= 20:
		p.Morphology = model.MorphologyBubble
	case density > 1.4:
		p.Morphology = model.MorphologyCroissant
	}
	p.Shape = model.DefaultShape(p.Morphology)
	return p
}

// Generate builds a complete dataset for times using SyntheticParameters.
// times must be strictly ascending.
func Generate(times []units.Megayears) (Files, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("generate dataset: no epochs")
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return nil, fmt.Errorf("generate dataset: epoch %d (%v) does not follow %v", i, times[i], times[i-1])
		}
	}

	files := Files{}
	meta, err := EncodeMeta(Meta{
		Version: "1.0.0",
		Created: time.Now().UTC().Format(time.RFC3339),
		Units:   Units{Distance: "AU", Velocity: "km/s", Time: "MyrSinceZAMS"},
		TimeAxis: TimeAxis{
			Count:     len(times),
			Min:       times[0],
			Max:       times[len(times)-1],
			EpochFile: DefaultEpochsPath,
		},
	})
	if err != nil {
		return nil, err
	}
	files[MetaPath] = meta

	if files[DefaultEpochsPath], err = EncodeEpochs(times); err != nil {
		return nil, err
	}
	for i, t := range times {
		if files[EpochPath(i)], err = EncodeEpoch(SyntheticParameters(t)); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// UniformEpochs returns n epochs evenly spaced over [lo, hi].
func UniformEpochs(lo, hi units.Megayears, n int) []units.Megayears {
	if n <= 1 {
		return []units.Megayears{lo}
	}
	out := make([]units.Megayears, n)
	for i := range out {
		out[i] = lo + (hi-lo)*units.Megayears(i)/units.Megayears(n-1)
	}
	return out
}
