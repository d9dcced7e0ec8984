package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/heliosphere-sim/registry"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

var start = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func TestTimeControllerSetTime(t *testing.T) {
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	if err := <-tc.Start(context.Background(), 15*time.Millisecond); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if tc.Frames() != 3 {
		t.Fatalf("Frames() = %d, want 3", tc.Frames())
	}
}

func TestRealTimeRun(t *testing.T) {
	tc := NewTimeController(start, time.Millisecond, RealTime)
	var seen []int
	tc.AddListener(func(_ context.Context, f Frame) error {
		seen = append(seen, f.Index)
		return nil
	})
	if err := tc.Run(context.Background(), 3*time.Millisecond); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(seen) != 3 || seen[0] != 0 || seen[2] != 2 {
		t.Fatalf("frames seen = %v", seen)
	}
}

func TestListenerErrorStopsRun(t *testing.T) {
	tc := NewTimeController(start, time.Second, Accelerated)
	boom := errors.New("boom")
	calls := 0
	tc.AddListener(func(_ context.Context, f Frame) error {
		calls++
		if f.Index == 1 {
			return boom
		}
		return nil
	})
	if err := tc.Run(context.Background(), time.Minute); !errors.Is(err, boom) {
		t.Fatalf("Run err = %v, want boom", err)
	}
	if calls != 2 {
		t.Fatalf("listener calls = %d, want 2", calls)
	}
}

func TestRunHonoursCancel(t *testing.T) {
	tc := NewTimeController(start, time.Second, Accelerated)
	ctx, cancel := context.WithCancel(context.Background())
	tc.AddListener(func(context.Context, Frame) error {
		cancel()
		return nil
	})
	if err := tc.Run(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if tc.Frames() != 1 {
		t.Fatalf("Frames() = %d, want 1", tc.Frames())
	}
}

func TestPausedFramesHaveZeroDt(t *testing.T) {
	tc := NewTimeController(start, time.Second, Accelerated)
	tc.SetPaused(true)
	f, err := tc.Step(context.Background())
	if err != nil {
		t.Fatalf("Step error: %v", err)
	}
	if f.Dt != 0 || !tc.Now().Equal(start) {
		t.Fatalf("paused frame dt = %v, now = %v", f.Dt, tc.Now())
	}
}

func TestAddRegistryAdvancesClock(t *testing.T) {
	r := registry.New(registry.WithRates(registry.Rates{DaysPerSecond: 1}))
	tc := NewTimeController(start, 500*time.Millisecond, Accelerated)
	ticks := 0
	tc.AddRegistry(r, func(Frame, registry.TickResult) { ticks++ })

	if err := tc.Run(context.Background(), 4*time.Second); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if ticks != 8 {
		t.Fatalf("ticks = %d, want 8", ticks)
	}
	if got := r.JulianDate().Sub(units.J2000); got != 4 {
		t.Fatalf("registry advanced %v days, want 4", got)
	}
}
