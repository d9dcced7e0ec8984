package overlays

import (
	"context"
	"fmt"
	"math"

	"github.com/signalsfoundry/heliosphere-sim/frames"
	"github.com/signalsfoundry/heliosphere-sim/internal/logging"
	"github.com/signalsfoundry/heliosphere-sim/model"
	"github.com/signalsfoundry/heliosphere-sim/registry"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

// Reference values for the present-day checks.
const (
	MeasuredHeliopauseNose units.AU = 121.6
	HeliopauseTolerance    units.AU = 5

	MinShockRatio units.Ratio = 0.70
	MaxShockRatio units.Ratio = 0.90

	// Upwind ISM direction from independent (Ulysses/IBEX) measurement,
	// ecliptic J2000.
	MeasuredInflowLongitude units.Degrees = 255.7
	MeasuredInflowLatitude  units.Degrees = 5.1
	InflowTolerance         units.Degrees = 10

	TrackTolerance units.AU = 5
)

// Check names, also used as metric labels.
const (
	CheckHeliopauseNose = "heliopause_nose"
	CheckShockRatio     = "shock_ratio"
	CheckInflow         = "inflow_direction"
	CheckVoyager1Track  = "voyager1_heliopause_track"
)

// Result is the outcome of one numeric assertion.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

func (r Result) String() string {
	status := "FAIL"
	if r.Passed {
		status = "PASS"
	}
	return fmt.Sprintf("%s %s: %s", status, r.Name, r.Detail)
}

// Report collects check results.
type Report struct {
	Results []Result
}

// Passed reports whether every check passed.
func (r Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// Failures returns the failed checks.
func (r Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

// HeliopauseNose checks the nose radius against the Voyager 1 crossing.
func HeliopauseNose(p model.HeliosphereParameters) Result {
	diff := math.Abs(float64(p.HeliopauseNose - MeasuredHeliopauseNose))
	return Result{
		Name:   CheckHeliopauseNose,
		Passed: diff <= float64(HeliopauseTolerance),
		Detail: fmt.Sprintf("R_HP nose %.1f AU, measured %.1f ± %.0f AU", float64(p.HeliopauseNose), float64(MeasuredHeliopauseNose), float64(HeliopauseTolerance)),
	}
}

// ShockRatio checks TS/HP lies in [MinShockRatio, MaxShockRatio].
func ShockRatio(p model.HeliosphereParameters) Result {
	return Result{
		Name:   CheckShockRatio,
		Passed: p.ShockRatio >= MinShockRatio && p.ShockRatio <= MaxShockRatio,
		Detail: fmt.Sprintf("TS/HP %.3f, allowed [%.2f, %.2f]", float64(p.ShockRatio), float64(MinShockRatio), float64(MaxShockRatio)),
	}
}

// InflowDirection checks the inflow is within InflowTolerance of the
// measured direction.
func InflowDirection(p model.HeliosphereParameters) Result {
	measured := frames.SphericalDirection(MeasuredInflowLongitude, MeasuredInflowLatitude).Neg()
	if p.Inflow.IsZero() {
		return Result{Name: CheckInflow, Detail: "inflow direction unset"}
	}
	sep := p.Inflow.AngleTo(measured).Degrees()
	lon, lat := frames.LonLat(p.Inflow.Neg())
	return Result{
		Name:   CheckInflow,
		Passed: sep <= InflowTolerance,
		Detail: fmt.Sprintf("upwind λ %.1f° β %.1f°, %.1f° from measured", float64(lon), float64(lat), float64(sep)),
	}
}

// TrackCrossing checks that the registered trajectory for c.Mission is
// within tol of c.Distance on c.Date.
func TrackCrossing(r *registry.Registry, c Crossing, tol units.AU, name string) Result {
	p, ok := r.GetSpacecraftPositionAt(c.Mission, c.Date)
	if !ok {
		return Result{Name: name, Detail: fmt.Sprintf("trajectory %q not registered", c.Mission)}
	}
	d := p.Norm()
	return Result{
		Name:   name,
		Passed: math.Abs(float64(d-c.Distance)) <= float64(tol),
		Detail: fmt.Sprintf("track at %.1f AU on crossing date, measured %.1f ± %.0f AU", float64(d), float64(c.Distance), float64(tol)),
	}
}

// ValidationRecorder counts check outcomes.
// *observability.HelioCollector satisfies it.
type ValidationRecorder interface {
	RecordValidation(check string, passed bool)
}

// Validator runs the present-epoch checks.
type Validator struct {
	log      logging.Logger
	recorder ValidationRecorder
}

// NewValidator returns a validator. Both arguments may be nil.
func NewValidator(log logging.Logger, recorder ValidationRecorder) *Validator {
	return &Validator{log: logging.OrNoop(log), recorder: recorder}
}

// Validate checks p and, if r is non-nil, the Voyager 1 track against the
// heliopause crossing.
func (v *Validator) Validate(ctx context.Context, p model.HeliosphereParameters, r *registry.Registry) Report {
	rep := Report{Results: []Result{HeliopauseNose(p), ShockRatio(p), InflowDirection(p)}}
	if r != nil {
		for _, c := range Crossings() {
			if c.Mission == registry.Voyager1 && c.Boundary == Heliopause {
				rep.Results = append(rep.Results, TrackCrossing(r, c, TrackTolerance, CheckVoyager1Track))
			}
		}
	}
	for _, res := range rep.Results {
		if v.recorder != nil {
			v.recorder.RecordValidation(res.Name, res.Passed)
		}
		if res.Passed {
			v.log.Debug(ctx, "validation check passed", logging.String("check", res.Name), logging.String("detail", res.Detail))
		} else {
			v.log.Warn(ctx, "validation check failed", logging.String("check", res.Name), logging.String("detail", res.Detail))
		}
	}
	return rep
}
