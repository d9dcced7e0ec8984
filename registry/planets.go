package registry

import (
	"github.com/signalsfoundry/heliosphere-sim/frames"
	"github.com/signalsfoundry/heliosphere-sim/model"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

// Body IDs of the built-in solar-system bodies.
const (
	Sun     = "sun"
	Mercury = "mercury"
	Venus   = "venus"
	Earth   = "earth"
	Mars    = "mars"
	Jupiter = "jupiter"
	Saturn  = "saturn"
	Uranus  = "uranus"
	Neptune = "neptune"
)

// planetVisualScale keeps planets visible next to the heliopause.
const planetVisualScale = 2000

type planet struct {
	id, name, color string
	radius          units.Kilometers
	rings           bool
	orbit           model.OrbitalElements
}

// Mean J2000 elements: a (AU), e, i, node, argument of perihelion, mean
// longitude (degrees), sidereal period (years).
var planets = []planet{
	{Mercury, "Mercury", "#B5B5B5", 2439.7, false, model.NewOrbitalElements(0.387, 0.206, 7.0, 48.3, 29.1, 252.3, 0.241)},
	{Venus, "Venus", "#E6C87A", 6051.8, false, model.NewOrbitalElements(0.723, 0.007, 3.4, 76.7, 54.9, 182.0, 0.615)},
	{Earth, "Earth", "#6B93D6", 6371.0, false, model.NewOrbitalElements(1.000, 0.017, 0.0, 174.9, 288.1, 100.5, 1.0)},
	{Mars, "Mars", "#C1440E", 3389.5, false, model.NewOrbitalElements(1.524, 0.093, 1.85, 49.6, 286.5, 355.5, 1.881)},
	{Jupiter, "Jupiter", "#D4A57A", 69911.0, false, model.NewOrbitalElements(5.203, 0.048, 1.3, 100.5, 273.9, 34.4, 11.86)},
	{Saturn, "Saturn", "#E3D4AD", 58232.0, true, model.NewOrbitalElements(9.537, 0.054, 2.5, 113.7, 339.4, 50.0, 29.46)},
	{Uranus, "Uranus", "#B5E3E3", 25362.0, true, model.NewOrbitalElements(19.19, 0.047, 0.8, 74.0, 97.0, 313.2, 84.01)},
	{Neptune, "Neptune", "#5B7FDE", 24622.0, false, model.NewOrbitalElements(30.07, 0.009, 1.8, 131.8, 276.3, 304.9, 164.8)},
}

// DefaultBodies returns the Sun at the origin followed by the eight planets
// on their Keplerian orbits.
func DefaultBodies() []model.Body {
	out := make([]model.Body, 0, len(planets)+1)
	out = append(out, model.Body{ID: Sun, Name: "Sun", Radius: 695_700, VisualScale: 20, Color: "#FFF5E0"})
	for _, p := range planets {
		orbit := p.orbit
		out = append(out, model.Body{
			ID:          p.id,
			Name:        p.name,
			Radius:      p.radius,
			VisualScale: planetVisualScale,
			Color:       p.color,
			Orbit:       &orbit,
			Rings:       p.rings,
		})
	}
	return out
}

// RegisterDefaultBodies adds DefaultBodies to r, skipping IDs already
// present.
func RegisterDefaultBodies(r *Registry) error {
	for _, b := range DefaultBodies() {
		if _, ok := r.Body(b.ID); ok {
			continue
		}
		if err := r.AddBody(b); err != nil {
			return err
		}
	}
	return nil
}

// EarthMarker returns the point on Earth's equator under the Greenwich
// meridian at the current Julian Date, in sun-centric ecliptic
// coordinates. The marker sits on the drawn sphere, so its offset from the
// Earth body is Radius·VisualScale. ok is false when no Earth body is
// registered.
func (r *Registry) EarthMarker() (units.Position, bool) {
	center, ok := r.BodyPosition(Earth)
	if !ok {
		return units.Position{}, false
	}
	b, _ := r.Body(Earth)
	jd := r.JulianDate()
	meridian := frames.PrimeMeridian(jd)
	scale := b.VisualScale
	if scale <= 0 {
		scale = 1
	}
	return center.Add(units.Scaled(meridian, b.Radius.AU()*units.AU(scale))), true
}
