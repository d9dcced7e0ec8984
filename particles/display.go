package particles

import (
	"context"
	"fmt"
	"math"

	"github.com/signalsfoundry/heliosphere-sim/soa"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

// DisplayBuffer is the render hand-off for one frame. Positions are packed
// xyz in scene units; Sizes and Opacity have one entry per particle.
type DisplayBuffer struct {
	Positions []float32
	Sizes     []float32
	Opacity   []float32
}

// Fade maps age/lifetime to (size factor, opacity). Particles fade in over
// the first tenth of their life and out over the rest; at age == lifetime
// the opacity is zero.
func Fade(ageFraction float32) (size, opacity float32) {
	f := min(max(ageFraction, 0), 1)
	size = 1 - 0.5*f
	switch {
	case f < 0.1:
		opacity = f / 0.1
	default:
		opacity = (1 - f) / 0.9
	}
	return size, opacity
}

// Display fills buf from the current slot, scaling positions by scale
// (scene units per AU). buf is grown if needed and returned.
func (s *System) Display(ctx context.Context, scale float64, buf *DisplayBuffer) (*DisplayBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.Capacity()
	if buf == nil {
		buf = &DisplayBuffer{}
	}
	buf.Positions = grow(buf.Positions, 3*n)
	buf.Sizes = grow(buf.Sizes, n)
	buf.Opacity = grow(buf.Opacity, n)

	pos, vel := s.pos[s.read], s.vel[s.read]
	k := float32(scale)
	base := s.cfg.BaseSize
	err := s.dev.Dispatch(ctx, n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			p, v := pos.At(i), vel.At(i)
			buf.Positions[3*i], buf.Positions[3*i+1], buf.Positions[3*i+2] = p[0]*k, p[1]*k, p[2]*k
			size, alpha := Fade(p[3] / v[3])
			buf.Sizes[i] = base * size
			buf.Opacity[i] = alpha
		}
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func grow(b []float32, n int) []float32 {
	if cap(b) < n {
		return make([]float32, n)
	}
	return b[:n]
}

// ReadBack copies the current state into batch, which must hold at least
// Capacity particles. Velocities are converted to km/s using secondsPerUnit
// (seconds per simulated time unit).
func (s *System) ReadBack(batch *soa.ParticleBatch, secondsPerUnit float64, temperature units.Kelvin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.Capacity()
	if batch.Cap() < n {
		return fmt.Errorf("%w: batch holds %d, system has %d particles", soa.ErrBatchFull, batch.Cap(), n)
	}
	kmps := 0.0
	if secondsPerUnit > 0 {
		kmps = units.KilometersPerAU / secondsPerUnit
	}
	pos, vel := s.pos[s.read], s.vel[s.read]
	for i := range n {
		p, v := pos.At(i), vel.At(i)
		batch.Set(i, soa.Particle{
			Position:    units.V3(units.AU(p[0]), units.AU(p[1]), units.AU(p[2])),
			Velocity:    units.V3(units.KmPerSec(float64(v[0])*kmps), units.KmPerSec(float64(v[1])*kmps), units.KmPerSec(float64(v[2])*kmps)),
			Mass:        1,
			Age:         p[3],
			Temperature: temperature,
		})
	}
	batch.SetLen(n)
	return nil
}

// MeanAgeFraction returns the mean age/lifetime over the pool.
func (s *System) MeanAgeFraction() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, vel := s.pos[s.read], s.vel[s.read]
	var sum float64
	for i := range s.Capacity() {
		sum += float64(pos.At(i)[3] / vel.At(i)[3])
	}
	return sum / math.Max(1, float64(s.Capacity()))
}
