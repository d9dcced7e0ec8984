// Package soa holds flat structure-of-arrays buffers for particles, stars
// and trajectory samples. Every per-record slice in a store has the same
// length, equal to the store's capacity; only the first Len() entries are
// meaningful.
package soa

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/heliosphere-sim/units"
)

var (
	// ErrBatchFull is returned when appending to a store at capacity.
	ErrBatchFull = errors.New("store is at capacity")
	// ErrCapacityInvalid is returned for a non-positive capacity.
	ErrCapacityInvalid = errors.New("capacity must be positive")
)

// ParticleBatch stores tracer particles. Positions are in AU, velocities in
// km/s, ages and lifetimes in the particle system's time unit.
type ParticleBatch struct {
	capacity int
	count    int

	PosX, PosY, PosZ []float32
	VelX, VelY, VelZ []float32
	Mass             []float32
	Age              []float32
	Temperature      []float32
}

// NewParticleBatch allocates a batch with fixed capacity.
func NewParticleBatch(capacity int) (*ParticleBatch, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrCapacityInvalid, capacity)
	}
	return &ParticleBatch{
		capacity:    capacity,
		PosX:        make([]float32, capacity),
		PosY:        make([]float32, capacity),
		PosZ:        make([]float32, capacity),
		VelX:        make([]float32, capacity),
		VelY:        make([]float32, capacity),
		VelZ:        make([]float32, capacity),
		Mass:        make([]float32, capacity),
		Age:         make([]float32, capacity),
		Temperature: make([]float32, capacity),
	}, nil
}

// Cap returns the fixed capacity.
func (b *ParticleBatch) Cap() int { return b.capacity }

// Len returns the number of live particles.
func (b *ParticleBatch) Len() int { return b.count }

// Particle is one record, used for Emit and At.
type Particle struct {
	Position    units.Position
	Velocity    units.Velocity
	Mass        float32
	Age         float32
	Temperature units.Kelvin
}

// Emit appends a particle and returns its index.
func (b *ParticleBatch) Emit(p Particle) (int, error) {
	if b.count >= b.capacity {
		return -1, fmt.Errorf("%w: %d particles", ErrBatchFull, b.capacity)
	}
	i := b.count
	b.Set(i, p)
	b.count++
	return i, nil
}

// Set overwrites slot i, which must be below Cap().
func (b *ParticleBatch) Set(i int, p Particle) {
	b.PosX[i], b.PosY[i], b.PosZ[i] = float32(p.Position.X), float32(p.Position.Y), float32(p.Position.Z)
	b.VelX[i], b.VelY[i], b.VelZ[i] = float32(p.Velocity.X), float32(p.Velocity.Y), float32(p.Velocity.Z)
	b.Mass[i] = p.Mass
	b.Age[i] = p.Age
	b.Temperature[i] = float32(p.Temperature)
}

// At returns particle i.
func (b *ParticleBatch) At(i int) Particle {
	return Particle{
		Position:    units.V3(units.AU(b.PosX[i]), units.AU(b.PosY[i]), units.AU(b.PosZ[i])),
		Velocity:    units.V3(units.KmPerSec(b.VelX[i]), units.KmPerSec(b.VelY[i]), units.KmPerSec(b.VelZ[i])),
		Mass:        b.Mass[i],
		Age:         b.Age[i],
		Temperature: units.Kelvin(b.Temperature[i]),
	}
}

// SetLen marks the first n slots live. n is clamped to [0, Cap()].
func (b *ParticleBatch) SetLen(n int) {
	b.count = max(0, min(n, b.capacity))
}

// Retire removes every live particle whose age has reached lifetime by
// swapping the last live particle into its slot. It returns the number
// retired. Order of the survivors is not preserved.
func (b *ParticleBatch) Retire(lifetime float32) int {
	retired := 0
	for i := 0; i < b.count; {
		if b.Age[i] < lifetime {
			i++
			continue
		}
		last := b.count - 1
		if i != last {
			b.Set(i, b.At(last))
		}
		b.count--
		retired++
	}
	return retired
}

// Reset empties the batch without releasing storage.
func (b *ParticleBatch) Reset() { b.count = 0 }

// StarCatalog stores stars for instanced drawing. Positions are in AU in
// the sun-centric frame; colours are linear RGB in [0, 1].
type StarCatalog struct {
	capacity int
	count    int

	X, Y, Z   []float64
	Magnitude []float32
	R, G, B   []float32
	ID        []int64
}

// NewStarCatalog allocates a catalog with fixed capacity.
func NewStarCatalog(capacity int) (*StarCatalog, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrCapacityInvalid, capacity)
	}
	return &StarCatalog{
		capacity:  capacity,
		X:         make([]float64, capacity),
		Y:         make([]float64, capacity),
		Z:         make([]float64, capacity),
		Magnitude: make([]float32, capacity),
		R:         make([]float32, capacity),
		G:         make([]float32, capacity),
		B:         make([]float32, capacity),
		ID:        make([]int64, capacity),
	}, nil
}

// Cap returns the fixed capacity.
func (c *StarCatalog) Cap() int { return c.capacity }

// Len returns the number of stars stored.
func (c *StarCatalog) Len() int { return c.count }

// Append adds one star.
func (c *StarCatalog) Append(id int64, pos units.Position, magnitude float32, rgb [3]float32) error {
	if c.count >= c.capacity {
		return fmt.Errorf("%w: %d stars", ErrBatchFull, c.capacity)
	}
	i := c.count
	c.ID[i] = id
	c.X[i], c.Y[i], c.Z[i] = float64(pos.X), float64(pos.Y), float64(pos.Z)
	c.Magnitude[i] = magnitude
	c.R[i], c.G[i], c.B[i] = rgb[0], rgb[1], rgb[2]
	c.count++
	return nil
}

// Position returns the position of star i.
func (c *StarCatalog) Position(i int) units.Position {
	return units.V3(units.AU(c.X[i]), units.AU(c.Y[i]), units.AU(c.Z[i]))
}

// TrajectoryStore stores one trajectory's samples as parallel arrays.
type TrajectoryStore struct {
	Time    []float64
	X, Y, Z []float64
}

// NewTrajectoryStore copies samples (times as Julian Dates, positions in
// AU) into a store. Callers validate ordering beforehand.
func NewTrajectoryStore(times []units.JulianDate, positions []units.Position) *TrajectoryStore {
	n := min(len(times), len(positions))
	s := &TrajectoryStore{
		Time: make([]float64, n),
		X:    make([]float64, n),
		Y:    make([]float64, n),
		Z:    make([]float64, n),
	}
	for i := range n {
		s.Time[i] = float64(times[i])
		s.X[i], s.Y[i], s.Z[i] = float64(positions[i].X), float64(positions[i].Y), float64(positions[i].Z)
	}
	return s
}

// Len returns the number of samples.
func (s *TrajectoryStore) Len() int { return len(s.Time) }

// Position returns sample i.
func (s *TrajectoryStore) Position(i int) units.Position {
	return units.V3(units.AU(s.X[i]), units.AU(s.Y[i]), units.AU(s.Z[i]))
}

// At interpolates the trajectory at t, clamping at both ends.
func (s *TrajectoryStore) At(t units.JulianDate) (units.Position, bool) {
	if s.Len() == 0 {
		return units.Position{}, false
	}
	lo, hi, alpha := units.Bracket(s.Time, float64(t))
	return units.LerpVec(s.Position(lo), s.Position(hi), alpha), true
}
