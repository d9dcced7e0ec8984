package registry

import (
	"math"

	"github.com/signalsfoundry/heliosphere-sim/frames"
	"github.com/signalsfoundry/heliosphere-sim/model"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

// Mission IDs of the built-in spacecraft.
const (
	Voyager1    = "voyager1"
	Voyager2    = "voyager2"
	NewHorizons = "new-horizons"
	ParkerSolar = "parker-solar-probe"
)

// waypoint is a coarse (time, in-plane distance, lateral offset) fix. The
// heliocentric distance is the hypotenuse and the direction blends from the
// launch direction toward the asymptotic escape direction as the craft
// recedes.
type waypoint struct {
	jd      units.JulianDate
	x, y    float64
	inPlane bool
}

type mission struct {
	id, name, color string
	lon, lat        units.Degrees
	points          []waypoint
}

// Asymptotic directions are ecliptic J2000 longitude/latitude.
var missions = []mission{
	{
		id: Voyager1, name: "Voyager 1", color: "#FFD700", lon: 255, lat: 35,
		points: []waypoint{
			{jd: 2443391.5, x: 1, y: 0},
			{jd: 2444200, x: 5.2, y: 1},
			{jd: 2444600, x: 9.5, y: 3},
			{jd: 2451545, x: 75, y: 20},
			{jd: 2460676, x: 163, y: 45},
		},
	},
	{
		id: Voyager2, name: "Voyager 2", color: "#00CED1", lon: 290, lat: -32,
		points: []waypoint{
			{jd: 2443375.5, x: 1, y: 0},
			{jd: 2444100, x: 5.2, y: -1},
			{jd: 2444700, x: 9.5, y: -3},
			{jd: 2445700, x: 19.2, y: -8},
			{jd: 2446400, x: 30, y: -12},
			{jd: 2460676, x: 137, y: -50},
		},
	},
	{
		id: NewHorizons, name: "New Horizons", color: "#FF6347", lon: 287, lat: 2,
		points: []waypoint{
			{jd: 2453755.5, x: 1, y: 0},
			{jd: 2454159, x: 5.2, y: 0.5},
			{jd: 2457216, x: 33, y: 5},
			{jd: 2460676, x: 58, y: 10},
		},
	},
	{
		id: ParkerSolar, name: "Parker Solar Probe", color: "#FF4500",
		points: []waypoint{
			{jd: 2458340.5, x: 1, y: 0, inPlane: true},
			{jd: 2458800, x: 0.17, y: 0, inPlane: true},
			{jd: 2459200, x: 0.05, y: 0, inPlane: true},
			{jd: 2460000, x: 0.046, y: 0, inPlane: true},
		},
	},
}

// escapeDistance is where a departing craft is considered on its
// asymptotic heading.
const escapeDistance = 30.0

// DefaultMissions returns the built-in spacecraft trajectories in
// sun-centric ecliptic coordinates.
func DefaultMissions() []model.Trajectory {
	out := make([]model.Trajectory, 0, len(missions))
	for _, m := range missions {
		t := model.Trajectory{ID: m.id, Name: m.name, Color: m.color}
		escape := frames.SphericalDirection(m.lon, m.lat)
		for _, w := range m.points {
			t.Samples = append(t.Samples, model.TrajectorySample{Time: w.jd, Position: w.position(escape)})
		}
		out = append(out, t)
	}
	return out
}

func (w waypoint) position(escape units.Direction) units.Position {
	if w.inPlane {
		return units.V3(units.AU(w.x), units.AU(w.y), 0)
	}
	r := math.Hypot(w.x, w.y)
	// Start from the in-plane bearing and rotate toward the escape heading.
	start, ok := units.V3(w.x, w.y, 0).Direction()
	if !ok {
		start = units.AxisX
	}
	alpha := units.Clamp(r/escapeDistance, 0, 1)
	return units.Scaled(units.LerpDirection(start, escape, alpha), units.AU(r))
}

// RegisterDefaultMissions adds DefaultMissions to r, skipping IDs already
// present.
func RegisterDefaultMissions(r *Registry) error {
	for _, t := range DefaultMissions() {
		if _, ok := r.Trajectory(t.ID); ok {
			continue
		}
		if err := r.AddTrajectory(t); err != nil {
			return err
		}
	}
	return nil
}
