// Package compute is a small data-parallel device used in place of a GPU.
// It owns RGBA float32 textures under a fixed memory budget and runs
// per-texel kernels across a pool of workers. Dispatch is synchronous: when
// it returns, every texel write has landed.
package compute

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrOutOfMemory is returned when an allocation would exceed the budget.
var ErrOutOfMemory = errors.New("compute device out of memory")

// DefaultBudget is the default device memory budget in bytes.
const DefaultBudget int64 = 256 << 20

// Channels per texel.
const Channels = 4

const bytesPerTexel = Channels * 4

// minChunk keeps tiny dispatches on one worker.
const minChunk = 1024

// Texture is a width x height grid of RGBA float32 texels stored row-major.
type Texture struct {
	Name   string
	Width  int
	Height int
	Data   []float32
}

// Texels returns Width*Height.
func (t *Texture) Texels() int { return t.Width * t.Height }

// At returns texel i.
func (t *Texture) At(i int) [Channels]float32 {
	o := i * Channels
	return [Channels]float32{t.Data[o], t.Data[o+1], t.Data[o+2], t.Data[o+3]}
}

// Set writes texel i.
func (t *Texture) Set(i int, v [Channels]float32) {
	o := i * Channels
	t.Data[o], t.Data[o+1], t.Data[o+2], t.Data[o+3] = v[0], v[1], v[2], v[3]
}

func (t *Texture) bytes() int64 { return int64(t.Texels()) * bytesPerTexel }

// Option configures a Device.
type Option func(*Device)

// WithBudget sets the memory budget in bytes.
func WithBudget(bytes int64) Option {
	return func(d *Device) { d.budget = bytes }
}

// WithWorkers sets the number of dispatch workers.
func WithWorkers(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.workers = n
		}
	}
}

// Device tracks allocations and runs kernels.
type Device struct {
	budget  int64
	workers int

	mu        sync.Mutex
	used      int64
	allocated map[*Texture]struct{}
}

// NewDevice builds a device with DefaultBudget and one worker per CPU.
func NewDevice(opts ...Option) *Device {
	d := &Device{
		budget:    DefaultBudget,
		workers:   runtime.GOMAXPROCS(0),
		allocated: make(map[*Texture]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Allocate reserves a zeroed texture.
func (d *Device) Allocate(name string, width, height int) (*Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("allocate %s: invalid size %dx%d", name, width, height)
	}
	t := &Texture{Name: name, Width: width, Height: height}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.used+t.bytes() > d.budget {
		return nil, fmt.Errorf("%w: %s needs %d bytes, %d of %d in use",
			ErrOutOfMemory, name, t.bytes(), d.used, d.budget)
	}
	t.Data = make([]float32, t.Texels()*Channels)
	d.used += t.bytes()
	d.allocated[t] = struct{}{}
	return t, nil
}

// Release returns a texture's memory to the budget. Releasing twice is a
// no-op.
func (d *Device) Release(t *Texture) {
	if t == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.allocated[t]; !ok {
		return
	}
	delete(d.allocated, t)
	d.used -= t.bytes()
	t.Data = nil
}

// Used returns the bytes currently allocated.
func (d *Device) Used() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used
}

// Kernel processes texels [lo, hi).
type Kernel func(lo, hi int)

// Dispatch runs k over n texels split across the worker pool and returns
// once every chunk has finished.
func (d *Device) Dispatch(ctx context.Context, n int, k Kernel) error {
	if n <= 0 {
		return nil
	}
	workers := min(d.workers, max(1, n/minChunk))
	if workers <= 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		k(0, n)
		return nil
	}

	chunk := (n + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			k(lo, hi)
			return nil
		})
	}
	return g.Wait()
}
