// Package timectrl is the host-side frame driver. The simulation core has
// no threads of its own; a TimeController produces frames and calls its
// listeners synchronously, one frame at a time.
package timectrl

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/heliosphere-sim/registry"
)

// SimClock gives read access to host time without depending on the
// controller type.
type SimClock interface {
	// Now returns the current host time.
	Now() time.Time
}

// Mode describes how the TimeController paces frames.
type Mode int

const (
	// RealTime waits one Tick of wall-clock time between frames.
	RealTime Mode = iota
	// Accelerated produces frames back to back, still stepping by Tick.
	Accelerated
)

// Frame is one host tick.
type Frame struct {
	Index int
	// Now is host time after this frame.
	Now time.Time
	// Dt is the step since the previous frame.
	Dt time.Duration
}

// Listener is called once per frame. A returned error stops Run.
type Listener func(ctx context.Context, f Frame) error

// TimeController drives frames and notifies registered listeners.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	frames      int
	paused      bool

	listeners []Listener
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current host time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime jumps host time without producing a frame.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	tc.mu.Unlock()
}

// Frames returns how many frames have been produced.
func (tc *TimeController) Frames() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.frames
}

// SetPaused stops or resumes time. Paused frames are still delivered with
// a zero Dt so the host keeps rendering.
func (tc *TimeController) SetPaused(paused bool) {
	tc.mu.Lock()
	tc.paused = paused
	tc.mu.Unlock()
}

// AddListener registers a callback invoked on every frame.
func (tc *TimeController) AddListener(fn Listener) {
	tc.mu.Lock()
	tc.listeners = append(tc.listeners, fn)
	tc.mu.Unlock()
}

// AddRegistry advances r by each frame's Dt.
func (tc *TimeController) AddRegistry(r *registry.Registry, onTick func(Frame, registry.TickResult)) {
	tc.AddListener(func(ctx context.Context, f Frame) error {
		res := r.Advance(ctx, f.Dt)
		if onTick != nil {
			onTick(f, res)
		}
		return nil
	})
}

// Step produces one frame and runs every listener on the calling
// goroutine.
func (tc *TimeController) Step(ctx context.Context) (Frame, error) {
	tc.mu.Lock()
	dt := tc.Tick
	if tc.paused {
		dt = 0
	}
	tc.currentTime = tc.currentTime.Add(dt)
	f := Frame{Index: tc.frames, Now: tc.currentTime, Dt: dt}
	tc.frames++
	listeners := append([]Listener(nil), tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		if err := fn(ctx, f); err != nil {
			return f, err
		}
	}
	return f, nil
}

// Run produces frames until duration of host time has elapsed (duration
// <= 0 runs until ctx is done). It returns the first listener error, or
// ctx.Err() when cancelled before the duration elapsed.
func (tc *TimeController) Run(ctx context.Context, duration time.Duration) error {
	var tick <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()
		tick = ticker.C
	}

	elapsed := time.Duration(0)
	for duration <= 0 || elapsed < duration {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := tc.Step(ctx); err != nil {
			return err
		}
		elapsed += tc.Tick
	}
	return nil
}

// Start runs the controller in a separate goroutine. The returned channel
// receives Run's result and is then closed.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- tc.Run(ctx, duration)
	}()
	return done
}
