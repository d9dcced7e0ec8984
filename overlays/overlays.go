// Package overlays builds the read-only diagnostic layer drawn over the
// heliosphere: reference rings at measured boundary crossings, spacecraft
// tracks, direction arrows and distance labels. Everything here reads the
// registry and never mutates it.
package overlays

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/heliosphere-sim/frames"
	"github.com/signalsfoundry/heliosphere-sim/registry"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

// Toggles switches overlay categories on and off.
type Toggles struct {
	ReferenceRings   bool `yaml:"reference_rings"`
	SpacecraftTracks bool `yaml:"spacecraft_tracks"`
	ApexArrow        bool `yaml:"apex_arrow"`
	InflowArrow      bool `yaml:"inflow_arrow"`
	DistanceLabels   bool `yaml:"distance_labels"`
	PlanetOrbits     bool `yaml:"planet_orbits"`
}

// AllOn enables every category.
func AllOn() Toggles {
	return Toggles{ReferenceRings: true, SpacecraftTracks: true, ApexArrow: true, InflowArrow: true, DistanceLabels: true, PlanetOrbits: true}
}

// Crossing is a measured boundary crossing by a spacecraft.
type Crossing struct {
	Mission  string
	Boundary string
	Distance units.AU
	Date     units.JulianDate
}

// Label formats the crossing for display, e.g. "Voyager 1 HP 121.6 AU (2012)".
func (c Crossing) Label() string {
	return fmt.Sprintf("%s %s %.1f AU (%d)", missionName(c.Mission), c.Boundary, float64(c.Distance), int(c.Date.DecimalYear()))
}

func missionName(id string) string {
	switch id {
	case registry.Voyager1:
		return "Voyager 1"
	case registry.Voyager2:
		return "Voyager 2"
	default:
		return id
	}
}

// Boundary abbreviations used in crossing labels.
const (
	TerminationShock = "TS"
	Heliopause       = "HP"
)

// Crossings lists the in-situ boundary crossings.
func Crossings() []Crossing {
	return []Crossing{
		{registry.Voyager1, TerminationShock, 94, units.CalendarToJulianDate(2004, 12, 16)},
		{registry.Voyager1, Heliopause, 121.6, units.CalendarToJulianDate(2012, 8, 25)},
		{registry.Voyager2, TerminationShock, 84, units.CalendarToJulianDate(2007, 8, 30)},
		{registry.Voyager2, Heliopause, 119, units.CalendarToJulianDate(2018, 11, 5)},
	}
}

// Ring is a reference circle in the ecliptic plane centred on the Sun.
type Ring struct {
	Crossing Crossing
	Label    string
	Points   []units.ScenePosition
	// Marker is where the spacecraft track sits at the crossing date, when
	// the trajectory is registered.
	Marker    units.ScenePosition
	HasMarker bool
}

// Track is a sampled spacecraft trajectory.
type Track struct {
	ID     string
	Label  string
	Color  string
	Points []units.ScenePosition
}

// Arrow points from Origin along Direction for Length scene units.
type Arrow struct {
	Label     string
	Origin    units.ScenePosition
	Direction units.Direction
	Length    units.SceneUnits
}

// Tip is Origin + Direction·Length.
func (a Arrow) Tip() units.ScenePosition {
	return a.Origin.Add(units.Scaled(a.Direction, a.Length))
}

// TextLabel is a piece of text anchored in the scene.
type TextLabel struct {
	Text     string
	Position units.ScenePosition
}

// Primitives is everything the overlay layer hands to the renderer.
type Primitives struct {
	Rings  []Ring
	Tracks []Track
	// Orbits are closed planet orbit paths; Track.ID is the body ID.
	Orbits []Track
	Arrows []Arrow
	Labels []TextLabel
}

// Options tunes geometry density.
type Options struct {
	RingSegments  int
	TrackSamples  int
	ArrowLengthAU units.AU
}

// DefaultOptions are the values used by the CLI.
func DefaultOptions() Options {
	return Options{RingSegments: 128, TrackSamples: 256, ArrowLengthAU: 200}
}

// Build produces the enabled overlay primitives from the registry's state.
func Build(r *registry.Registry, toggles Toggles, opts Options) Primitives {
	if opts.RingSegments < 3 {
		opts.RingSegments = DefaultOptions().RingSegments
	}
	if opts.TrackSamples < 2 {
		opts.TrackSamples = DefaultOptions().TrackSamples
	}
	if opts.ArrowLengthAU <= 0 {
		opts.ArrowLengthAU = DefaultOptions().ArrowLengthAU
	}

	var out Primitives
	if toggles.ReferenceRings {
		for _, c := range Crossings() {
			out.Rings = append(out.Rings, buildRing(r, c, opts.RingSegments))
		}
	}
	if toggles.SpacecraftTracks {
		for _, id := range r.TrajectoryIDs() {
			if tr, ok := buildTrack(r, id, opts.TrackSamples); ok {
				out.Tracks = append(out.Tracks, tr)
			}
		}
	}
	if toggles.PlanetOrbits {
		out.Orbits = buildOrbits(r, opts.RingSegments)
	}
	if toggles.ApexArrow {
		out.Arrows = append(out.Arrows, Arrow{
			Label:     "Solar apex",
			Direction: frames.SolarApexDirection(),
			Length:    opts.ArrowLengthAU.ToScene(r.Scale()),
		})
	}
	if toggles.InflowArrow {
		inflow := frames.DefaultInflowDirection()
		if p, ok := r.Parameters(); ok && !p.Inflow.IsZero() {
			inflow = p.Inflow
		}
		// Drawn upwind of the Sun, pointing in the direction of flow.
		out.Arrows = append(out.Arrows, Arrow{
			Label:     "ISM inflow",
			Origin:    r.HeeToScene(units.Scaled(inflow.Neg(), opts.ArrowLengthAU)),
			Direction: inflow,
			Length:    (opts.ArrowLengthAU / 2).ToScene(r.Scale()),
		})
	}
	if toggles.DistanceLabels {
		out.Labels = distanceLabels(r, out.Rings)
	}
	return out
}

func buildRing(r *registry.Registry, c Crossing, segments int) Ring {
	ring := Ring{Crossing: c, Label: c.Label(), Points: make([]units.ScenePosition, segments+1)}
	for i := range ring.Points {
		a := 2 * math.Pi * float64(i) / float64(segments)
		ring.Points[i] = r.HeeToScene(units.V3(c.Distance*units.AU(math.Cos(a)), c.Distance*units.AU(math.Sin(a)), 0))
	}
	if p, ok := r.GetSpacecraftPositionAt(c.Mission, c.Date); ok {
		ring.Marker, ring.HasMarker = r.HeeToScene(p), true
	}
	return ring
}

func buildTrack(r *registry.Registry, id string, samples int) (Track, bool) {
	traj, ok := r.Trajectory(id)
	if !ok {
		return Track{}, false
	}
	first := traj.Samples[0].Time
	last := traj.Samples[len(traj.Samples)-1].Time
	tr := Track{ID: id, Label: traj.Name, Color: traj.Color, Points: make([]units.ScenePosition, samples)}
	for i := range tr.Points {
		jd := first + (last-first)*units.JulianDate(i)/units.JulianDate(samples-1)
		p, _ := r.GetSpacecraftPositionAt(id, jd)
		tr.Points[i] = r.HeeToScene(p)
	}
	return tr, true
}

func buildOrbits(r *registry.Registry, segments int) []Track {
	var out []Track
	for _, b := range r.Bodies() {
		if b.Orbit == nil {
			continue
		}
		path := b.Orbit.Path(segments)
		tr := Track{ID: b.ID, Label: b.Name, Color: b.Color, Points: make([]units.ScenePosition, len(path))}
		for i, p := range path {
			tr.Points[i] = r.HeeToScene(p)
		}
		out = append(out, tr)
	}
	return out
}

func distanceLabels(r *registry.Registry, rings []Ring) []TextLabel {
	var out []TextLabel
	for _, ring := range rings {
		if len(ring.Points) == 0 {
			continue
		}
		out = append(out, TextLabel{Text: ring.Label, Position: ring.Points[0]})
	}
	if p, ok := r.Parameters(); ok {
		nose := p.Inflow.Neg()
		out = append(out, TextLabel{
			Text:     fmt.Sprintf("HP nose %.1f AU", float64(p.HeliopauseNose)),
			Position: r.HeeToScene(units.Scaled(nose, p.HeliopauseNose)),
		})
		return out
	}

	// No parameter set yet: label the solar-cycle reference distances.
	cycle := r.SolarCycle()
	b := cycle.Boundaries()
	nose := frames.DefaultInflowDirection().Neg()
	out = append(out,
		TextLabel{
			Text:     fmt.Sprintf("TS ~%.0f AU (%s)", float64(b.TerminationShock), cycle.Name),
			Position: r.HeeToScene(units.Scaled(nose, b.TerminationShock)),
		},
		TextLabel{
			Text:     fmt.Sprintf("HP ~%.0f AU (%s)", float64(b.Heliopause), cycle.Name),
			Position: r.HeeToScene(units.Scaled(nose, b.Heliopause)),
		},
	)
	return out
}
