package overlays

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/heliosphere-sim/frames"
	"github.com/signalsfoundry/heliosphere-sim/internal/observability"
	"github.com/signalsfoundry/heliosphere-sim/model"
	"github.com/signalsfoundry/heliosphere-sim/registry"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

func presentRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New(registry.WithScale(0.01))
	if err := registry.RegisterDefaultMissions(r); err != nil {
		t.Fatalf("RegisterDefaultMissions: %v", err)
	}
	r.ApplyParameters(model.PresentDayParameters(frames.DefaultInflowDirection()))
	return r
}

func TestPresentDayParametersPass(t *testing.T) {
	r := presentRegistry(t)
	p, _ := r.Parameters()
	rep := NewValidator(nil, nil).Validate(context.Background(), p, r)
	if !rep.Passed() {
		t.Fatalf("present-day checks failed: %v", rep.Failures())
	}
	if len(rep.Results) != 4 {
		t.Fatalf("ran %d checks, want 4", len(rep.Results))
	}
}

func TestChecksFailOutsideTolerance(t *testing.T) {
	p := model.PresentDayParameters(frames.DefaultInflowDirection())
	p.HeliopauseNose = 127
	if HeliopauseNose(p).Passed {
		t.Fatalf("HP nose 127 AU should fail")
	}
	p.HeliopauseNose = 126.5
	if !HeliopauseNose(p).Passed {
		t.Fatalf("HP nose 126.5 AU should pass")
	}

	for _, ratio := range []units.Ratio{0.69, 0.91} {
		p.ShockRatio = ratio
		if ShockRatio(p).Passed {
			t.Fatalf("ratio %v should fail", ratio)
		}
	}
	p.ShockRatio = 0.70
	if !ShockRatio(p).Passed {
		t.Fatalf("ratio 0.70 should pass")
	}

	p.Inflow = frames.SphericalDirection(MeasuredInflowLongitude+12, MeasuredInflowLatitude).Neg()
	if InflowDirection(p).Passed {
		t.Fatalf("inflow 12° off should fail")
	}
	p.Inflow = frames.SphericalDirection(MeasuredInflowLongitude+9, MeasuredInflowLatitude).Neg()
	if !InflowDirection(p).Passed {
		t.Fatalf("inflow 9° off in longitude should pass: %v", InflowDirection(p))
	}
	p.Inflow = units.Direction{}
	if InflowDirection(p).Passed {
		t.Fatalf("unset inflow should fail")
	}
}

func TestTrackCrossingWithoutTrajectory(t *testing.T) {
	r := registry.New()
	c := Crossings()[1]
	if res := TrackCrossing(r, c, TrackTolerance, CheckVoyager1Track); res.Passed {
		t.Fatalf("missing trajectory should fail: %v", res)
	}
}

func TestValidatorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewHelioCollector(reg)
	if err != nil {
		t.Fatalf("NewHelioCollector: %v", err)
	}
	p := model.PresentDayParameters(frames.DefaultInflowDirection())
	p.ShockRatio = 0.95

	rep := NewValidator(nil, collector).Validate(context.Background(), p, nil)
	if rep.Passed() || len(rep.Failures()) != 1 {
		t.Fatalf("report = %v, want one failure", rep.Results)
	}
	if got := testutil.ToFloat64(collector.ValidationChecks.WithLabelValues(CheckShockRatio, "fail")); got != 1 {
		t.Fatalf("shock_ratio fail count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.ValidationChecks.WithLabelValues(CheckHeliopauseNose, "pass")); got != 1 {
		t.Fatalf("heliopause_nose pass count = %v, want 1", got)
	}
}

func TestBuildAllOverlays(t *testing.T) {
	r := presentRegistry(t)
	prims := Build(r, AllOn(), Options{RingSegments: 64, TrackSamples: 32, ArrowLengthAU: 200})

	if len(prims.Rings) != 4 {
		t.Fatalf("rings = %d, want 4", len(prims.Rings))
	}
	for _, ring := range prims.Rings {
		if len(ring.Points) != 65 {
			t.Fatalf("ring %s has %d points", ring.Label, len(ring.Points))
		}
		want := float64(ring.Crossing.Distance) * 0.01
		for _, pt := range ring.Points {
			if math.Abs(float64(pt.Norm())-want) > 1e-9 || pt.Z != 0 {
				t.Fatalf("ring %s point %v off the %v circle", ring.Label, pt, want)
			}
		}
		if !ring.HasMarker {
			t.Fatalf("ring %s has no spacecraft marker", ring.Label)
		}
	}
	if !strings.HasPrefix(prims.Rings[1].Label, "Voyager 1 HP 121.6 AU (2012") {
		t.Fatalf("label = %q", prims.Rings[1].Label)
	}

	if len(prims.Tracks) != 4 {
		t.Fatalf("tracks = %d, want 4", len(prims.Tracks))
	}
	for _, tr := range prims.Tracks {
		if len(tr.Points) != 32 || tr.Color == "" {
			t.Fatalf("track %s: %d points, color %q", tr.ID, len(tr.Points), tr.Color)
		}
	}

	if len(prims.Arrows) != 2 {
		t.Fatalf("arrows = %d, want 2", len(prims.Arrows))
	}
	inflow := prims.Arrows[1]
	// The inflow arrow starts upwind and points toward the Sun.
	if inflow.Tip().Norm() >= inflow.Origin.Norm() {
		t.Fatalf("inflow arrow points away from the Sun: %v -> %v", inflow.Origin, inflow.Tip())
	}
	if len(prims.Labels) != 5 {
		t.Fatalf("labels = %d, want 5", len(prims.Labels))
	}
}

func TestBuildRespectsToggles(t *testing.T) {
	r := presentRegistry(t)
	prims := Build(r, Toggles{InflowArrow: true}, DefaultOptions())
	if len(prims.Rings) != 0 || len(prims.Tracks) != 0 || len(prims.Orbits) != 0 || len(prims.Labels) != 0 {
		t.Fatalf("disabled categories produced primitives: %+v", prims)
	}
	if len(prims.Arrows) != 1 || prims.Arrows[0].Label != "ISM inflow" {
		t.Fatalf("arrows = %+v", prims.Arrows)
	}
}

func TestDistanceLabelsFallBackToSolarCycle(t *testing.T) {
	r := registry.New()
	r.SetJulianDate(registry.SolarMinimumJD.Add(registry.SolarCycleDays / 2))
	prims := Build(r, Toggles{DistanceLabels: true}, DefaultOptions())
	if len(prims.Labels) != 2 {
		t.Fatalf("labels = %+v, want termination shock and heliopause", prims.Labels)
	}
	if got, want := prims.Labels[1].Text, "HP ~130 AU (Solar Max)"; got != want {
		t.Fatalf("label = %q, want %q", got, want)
	}
	if got := float64(prims.Labels[0].Position.Norm()); math.Abs(got-100) > 1e-9 {
		t.Fatalf("termination shock label at %v, want 100", got)
	}
}

func TestPlanetOrbits(t *testing.T) {
	r := presentRegistry(t)
	if err := registry.RegisterDefaultBodies(r); err != nil {
		t.Fatalf("RegisterDefaultBodies: %v", err)
	}
	prims := Build(r, Toggles{PlanetOrbits: true}, Options{RingSegments: 64})
	if len(prims.Orbits) != 8 {
		t.Fatalf("orbits = %d, want the eight planets", len(prims.Orbits))
	}
	for _, o := range prims.Orbits {
		if len(o.Points) != 65 || o.Points[0] != o.Points[64] {
			t.Fatalf("orbit %s: %d points, closed=%v", o.ID, len(o.Points), o.Points[0] == o.Points[len(o.Points)-1])
		}
		if o.ID != registry.Earth {
			continue
		}
		for _, pt := range o.Points {
			if d := float64(pt.Norm()) / 0.01; d < 0.982 || d > 1.018 {
				t.Fatalf("earth orbit point at %v AU", d)
			}
		}
	}
}
