// Package particles advects a fixed pool of tracer particles on a compute
// device using ping-pong buffers: each step reads one position/velocity
// texture pair and writes the other, then flips which pair is current.
//
// Texel layout: position texels hold (x, y, z, age) with x, y, z in AU;
// velocity texels hold (vx, vy, vz, lifetime) in AU per simulated time
// unit. A particle whose age passes its lifetime respawns at a point drawn
// from the emission table, with its age wrapped back into [0, lifetime).
package particles

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/signalsfoundry/heliosphere-sim/internal/compute"
	"github.com/signalsfoundry/heliosphere-sim/internal/logging"
	"github.com/signalsfoundry/heliosphere-sim/surface"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

// ErrNotSeeded is returned by Update before an emitter has been set.
var ErrNotSeeded = errors.New("particle system has no emitter")

// slot names one half of the ping-pong pair.
type slot int

const (
	slotA slot = iota
	slotB
)

func (s slot) other() slot { return 1 - s }

// Config holds the particle model constants.
type Config struct {
	// TextureSize is the side of the square state textures; capacity is
	// TextureSize squared.
	TextureSize int
	// Lifetime is the mean particle lifetime in simulated time units.
	Lifetime float32
	// LifetimeJitter spreads per-particle lifetimes by this fraction.
	LifetimeJitter float32
	// RadialAcceleration pushes particles away from the Sun.
	RadialAcceleration float32
	// Damping multiplies velocity once per step.
	Damping float32
	// InitialSpeed is the outward speed at emission.
	InitialSpeed float32
	// Jitter is the random velocity added at emission, relative to
	// InitialSpeed.
	Jitter float32
	// EmitFrom selects the emitting surface.
	EmitFrom surface.Kind
	// EmissionSamples is the size of the emission point table.
	EmissionSamples int
	// BaseSize is the point size of a newborn particle.
	BaseSize float32
	Seed     int64
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		TextureSize:        64,
		Lifetime:           10,
		LifetimeJitter:     0.25,
		RadialAcceleration: 0.5,
		Damping:            0.995,
		InitialSpeed:       8,
		Jitter:             0.2,
		EmitFrom:           surface.TerminationShock,
		EmissionSamples:    2048,
		BaseSize:           2,
		Seed:               1,
	}
}

// StepRecorder receives update timings. *observability.HelioCollector
// satisfies it.
type StepRecorder interface {
	ObserveParticleStep(d time.Duration)
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the system's logger.
func WithLogger(l logging.Logger) Option {
	return func(s *System) { s.log = logging.OrNoop(l) }
}

// WithStepRecorder attaches a timing sink.
func WithStepRecorder(r StepRecorder) Option {
	return func(s *System) { s.recorder = r }
}

// System is the particle pool. Update is serialised; a second call waits
// for the first to finish writing.
type System struct {
	dev      *compute.Device
	cfg      Config
	log      logging.Logger
	recorder StepRecorder

	mu       sync.Mutex
	pos      [2]*compute.Texture
	vel      [2]*compute.Texture
	read     slot
	emission []units.Position
	steps    uint64
}

// New allocates the four state textures. Allocation failure is returned
// wrapped around compute.ErrOutOfMemory with nothing left allocated.
func New(dev *compute.Device, cfg Config, opts ...Option) (*System, error) {
	if cfg.TextureSize <= 0 {
		return nil, fmt.Errorf("particle texture size must be positive, got %d", cfg.TextureSize)
	}
	if cfg.Lifetime <= 0 {
		return nil, fmt.Errorf("particle lifetime must be positive, got %v", cfg.Lifetime)
	}
	if cfg.EmissionSamples <= 0 {
		cfg.EmissionSamples = DefaultConfig().EmissionSamples
	}
	s := &System{dev: dev, cfg: cfg, log: logging.Noop()}
	for _, opt := range opts {
		opt(s)
	}

	size := cfg.TextureSize
	for _, sl := range []slot{slotA, slotB} {
		p, err := dev.Allocate(fmt.Sprintf("particles.pos.%d", sl), size, size)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("allocate particle state: %w", err)
		}
		s.pos[sl] = p
		v, err := dev.Allocate(fmt.Sprintf("particles.vel.%d", sl), size, size)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("allocate particle state: %w", err)
		}
		s.vel[sl] = v
	}
	return s, nil
}

// Close releases the state textures.
func (s *System) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pos {
		s.dev.Release(s.pos[i])
		s.dev.Release(s.vel[i])
		s.pos[i], s.vel[i] = nil, nil
	}
}

// Capacity returns TextureSize squared. It never changes.
func (s *System) Capacity() int { return s.cfg.TextureSize * s.cfg.TextureSize }

// Steps returns the number of completed updates.
func (s *System) Steps() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// SetEmitter rebuilds the emission table from surf. Particles already in
// flight are untouched.
func (s *System) SetEmitter(surf *surface.Surface) {
	rng := rand.New(rand.NewSource(s.cfg.Seed))
	table := make([]units.Position, s.cfg.EmissionSamples)
	for i := range table {
		table[i] = surf.RandomPoint(rng, s.cfg.EmitFrom)
	}
	s.mu.Lock()
	s.emission = table
	s.mu.Unlock()
}

// Seed sets the emitter and initialises every particle on the emitting
// shell with jittered outward velocities and ages spread across the
// lifetime range, so the pool does not pulse in step at start-up.
func (s *System) Seed(surf *surface.Surface) {
	s.SetEmitter(surf)

	s.mu.Lock()
	defer s.mu.Unlock()
	rng := rand.New(rand.NewSource(s.cfg.Seed + 1))
	pos, vel := s.pos[s.read], s.vel[s.read]
	for i := range s.Capacity() {
		p := surf.RandomPoint(rng, s.cfg.EmitFrom)
		life := s.cfg.Lifetime * (1 + s.cfg.LifetimeJitter*(2*rng.Float32()-1))
		age := rng.Float32() * life
		v := s.emitVelocity(p, rng.Float32(), rng.Float32(), rng.Float32())
		pos.Set(i, [4]float32{float32(p.X), float32(p.Y), float32(p.Z), age})
		vel.Set(i, [4]float32{v[0], v[1], v[2], life})
	}
	s.steps = 0
}

// emitVelocity is the outward launch velocity at p, perturbed by three
// uniform samples.
func (s *System) emitVelocity(p units.Position, u0, u1, u2 float32) [3]float32 {
	dir, ok := p.Direction()
	if !ok {
		dir = units.AxisX
	}
	j := s.cfg.Jitter * s.cfg.InitialSpeed
	return [3]float32{
		float32(dir.X())*s.cfg.InitialSpeed + j*(2*u0-1),
		float32(dir.Y())*s.cfg.InitialSpeed + j*(2*u1-1),
		float32(dir.Z())*s.cfg.InitialSpeed + j*(2*u2-1),
	}
}

// Update advances every particle by dt. It runs the velocity pass, then the
// position pass, then flips the current slot. On error the current slot is
// left unchanged.
func (s *System) Update(ctx context.Context, dt float32) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.emission) == 0 {
		return ErrNotSeeded
	}
	if s.pos[slotA] == nil {
		return errors.New("particle system is closed")
	}

	r, w := s.read, s.read.other()
	n := s.Capacity()
	step := s.steps

	if err := s.dev.Dispatch(ctx, n, s.velocityKernel(r, w, dt, step)); err != nil {
		return fmt.Errorf("velocity pass: %w", err)
	}
	if err := s.dev.Dispatch(ctx, n, s.positionKernel(r, w, dt, step)); err != nil {
		return fmt.Errorf("position pass: %w", err)
	}
	s.read = w
	s.steps++

	if s.recorder != nil {
		s.recorder.ObserveParticleStep(time.Since(start))
	}
	return nil
}

func (s *System) velocityKernel(r, w slot, dt float32, step uint64) compute.Kernel {
	posIn, velIn, velOut := s.pos[r], s.vel[r], s.vel[w]
	accel, damping := s.cfg.RadialAcceleration, s.cfg.Damping
	return func(lo, hi int) {
		for i := lo; i < hi; i++ {
			p, v := posIn.At(i), velIn.At(i)
			life := v[3]
			if p[3]+dt >= life {
				e := s.emission[hashIndex(i, step, len(s.emission))]
				nv := s.emitVelocity(e, hash01(i, step, 1), hash01(i, step, 2), hash01(i, step, 3))
				velOut.Set(i, [4]float32{nv[0], nv[1], nv[2], life})
				continue
			}
			rx, ry, rz := radial(p[0], p[1], p[2])
			velOut.Set(i, [4]float32{
				(v[0] + accel*rx*dt) * damping,
				(v[1] + accel*ry*dt) * damping,
				(v[2] + accel*rz*dt) * damping,
				life,
			})
		}
	}
}

func (s *System) positionKernel(r, w slot, dt float32, step uint64) compute.Kernel {
	posIn, velNew, posOut := s.pos[r], s.vel[w], s.pos[w]
	return func(lo, hi int) {
		for i := lo; i < hi; i++ {
			p, v := posIn.At(i), velNew.At(i)
			life := v[3]
			age := p[3] + dt
			if age >= life {
				e := s.emission[hashIndex(i, step, len(s.emission))]
				posOut.Set(i, [4]float32{float32(e.X), float32(e.Y), float32(e.Z), float32(math.Mod(float64(age), float64(life)))})
				continue
			}
			posOut.Set(i, [4]float32{p[0] + v[0]*dt, p[1] + v[1]*dt, p[2] + v[2]*dt, age})
		}
	}
}

func radial(x, y, z float32) (float32, float32, float32) {
	n := float32(math.Sqrt(float64(x*x + y*y + z*z)))
	if n == 0 {
		return 1, 0, 0
	}
	return x / n, y / n, z / n
}

// splitmix64 finaliser; stateless per-particle randomness.
func mix(i int, step uint64, salt uint64) uint64 {
	z := uint64(i)*0x9E3779B97F4A7C15 ^ step*0xBF58476D1CE4E5B9 ^ salt*0x94D049BB133111EB
	z ^= z >> 30
	z *= 0xBF58476D1CE4E5B9
	z ^= z >> 27
	z *= 0x94D049BB133111EB
	z ^= z >> 31
	return z
}

func hash01(i int, step uint64, salt uint64) float32 {
	return float32(mix(i, step, salt)>>40) / float32(1<<24)
}

func hashIndex(i int, step uint64, n int) int {
	return int(mix(i, step, 0) % uint64(n))
}
