package model

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/heliosphere-sim/units"
)

// ErrTrajectoryInvalid reports a trajectory whose samples are empty or not
// strictly increasing in time.
var ErrTrajectoryInvalid = errors.New("invalid trajectory")

// Body is a celestial body drawn by the host renderer.
type Body struct {
	ID   string
	Name string

	// Radius is the physical radius.
	Radius units.Kilometers
	// VisualScale multiplies Radius when drawn so bodies stay visible at
	// heliospheric scales.
	VisualScale float64
	Color       string

	// Position is used when neither Track nor Orbit is set.
	Position units.Position
	// Track optionally gives a time-indexed position history. It takes
	// precedence over Orbit.
	Track []TrajectorySample
	// Orbit optionally places the body on a Keplerian ellipse.
	Orbit *OrbitalElements
	// Rings marks bodies drawn with a ring system.
	Rings bool
}

// Validate checks the body's track and orbit, whichever are set.
func (b Body) Validate() error {
	if len(b.Track) > 0 {
		if err := ValidateSamples(b.Track); err != nil {
			return err
		}
	}
	if b.Orbit != nil {
		return b.Orbit.Validate()
	}
	return nil
}

// TrajectorySample is one (time, position) pair.
type TrajectorySample struct {
	Time     units.JulianDate
	Position units.Position
}

// Trajectory is a spacecraft track.
type Trajectory struct {
	ID      string
	Name    string
	Color   string
	Samples []TrajectorySample
}

// ValidateSamples checks that samples is non-empty and strictly increasing
// in time.
func ValidateSamples(samples []TrajectorySample) error {
	if len(samples) == 0 {
		return fmt.Errorf("%w: no samples", ErrTrajectoryInvalid)
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Time <= samples[i-1].Time {
			return fmt.Errorf("%w: sample %d at JD %.3f does not follow JD %.3f",
				ErrTrajectoryInvalid, i, float64(samples[i].Time), float64(samples[i-1].Time))
		}
	}
	return nil
}

// Validate checks the trajectory's identity and samples.
func (t Trajectory) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: empty ID", ErrTrajectoryInvalid)
	}
	return ValidateSamples(t.Samples)
}
