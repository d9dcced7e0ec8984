package registry

import (
	"math"

	"github.com/signalsfoundry/heliosphere-sim/units"
)

const (
	// SolarCycleDays is the mean length of a Schwabe cycle.
	SolarCycleDays units.Days = 4018
	// SolarMinimumJD is the reference minimum of December 2019.
	SolarMinimumJD units.JulianDate = 2458849.0
)

// SolarCycle is the 11-year activity state at a Julian Date.
type SolarCycle struct {
	// Phase is the cycle fraction in [0, 1), 0 at minimum.
	Phase float64
	Name  string
	// Activity is in [0, 1]: 0 at minimum, 1 at maximum (phase 0.5).
	Activity float64
}

// SolarCycleAt returns the cycle state at jd.
func SolarCycleAt(jd units.JulianDate) SolarCycle {
	x := float64(jd.Sub(SolarMinimumJD) / SolarCycleDays)
	phase := x - math.Floor(x)
	return SolarCycle{
		Phase:    phase,
		Name:     phaseName(phase),
		Activity: 0.5 - 0.5*math.Cos(2*math.Pi*phase),
	}
}

func phaseName(phase float64) string {
	switch {
	case phase < 0.125 || phase >= 0.875:
		return "Solar Min"
	case phase < 0.375:
		return "Rising"
	case phase < 0.625:
		return "Solar Max"
	default:
		return "Declining"
	}
}

// Boundaries are activity-modulated reference distances of the three
// heliospheric boundaries, used for labelling when no dataset is loaded.
type Boundaries struct {
	TerminationShock units.AU
	Heliopause       units.AU
	BowShock         units.AU
}

// Boundaries returns the reference distances for c.
func (c SolarCycle) Boundaries() Boundaries {
	a := c.Activity
	return Boundaries{
		TerminationShock: units.AU(85 + 15*a),
		Heliopause:       units.AU(110 + 20*a),
		BowShock:         units.AU(200 + 50*a),
	}
}

// SolarCycle returns the cycle state at the registry's current date.
func (r *Registry) SolarCycle() SolarCycle {
	return SolarCycleAt(r.JulianDate())
}
