package registry

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/heliosphere-sim/frames"
	"github.com/signalsfoundry/heliosphere-sim/model"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

func TestEarthAtJ2000(t *testing.T) {
	r := New()
	if err := RegisterDefaultBodies(r); err != nil {
		t.Fatalf("RegisterDefaultBodies error: %v", err)
	}
	r.SetJulianDate(units.J2000)

	p, ok := r.BodyPosition(Earth)
	if !ok {
		t.Fatal("earth not registered")
	}
	// Almanac: heliocentric longitude 100.46°, radius 0.9833 AU.
	if d := float64(p.Norm()); math.Abs(d-0.9833) > 0.002 {
		t.Fatalf("earth distance = %v AU, want ~0.9833", d)
	}
	dir, _ := p.Direction()
	lon, lat := frames.LonLat(dir)
	if math.Abs(float64(lon)-100.46) > 0.1 || math.Abs(float64(lat)) > 1e-9 {
		t.Fatalf("earth longitude/latitude = %v/%v, want ~100.46/0", lon, lat)
	}

	// Half a year later Earth is on the far side of the Sun.
	r.SetJulianDate(units.J2000.Add(units.DaysPerJulianYear / 2))
	q, _ := r.BodyPosition(Earth)
	qd, _ := q.Direction()
	if sep := dir.AngleTo(qd).Degrees(); math.Abs(float64(sep)-180) > 3 {
		t.Fatalf("separation after half a year = %v°, want ~180°", sep)
	}
}

func TestPlanetsStayBetweenApsides(t *testing.T) {
	r := New()
	if err := RegisterDefaultBodies(r); err != nil {
		t.Fatalf("RegisterDefaultBodies error: %v", err)
	}
	for _, jd := range []units.JulianDate{2443391.5, units.J2000, 2460676.5} {
		r.SetJulianDate(jd)
		for _, b := range r.Bodies() {
			if b.Orbit == nil {
				continue
			}
			p, _ := r.BodyPosition(b.ID)
			a, e := float64(b.Orbit.SemiMajorAxis), b.Orbit.Eccentricity
			if d := float64(p.Norm()); d < a*(1-e)-1e-9 || d > a*(1+e)+1e-9 {
				t.Fatalf("%s at JD %v is %v AU, outside [%v, %v]", b.ID, jd, d, a*(1-e), a*(1+e))
			}
		}
	}
	if sun, _ := r.BodyPosition(Sun); sun != (units.Position{}) {
		t.Fatalf("sun at %v, want origin", sun)
	}
}

func TestOrbitClosesAfterOnePeriod(t *testing.T) {
	mars := model.NewOrbitalElements(1.524, 0.093, 1.85, 49.6, 286.5, 355.5, 1.881)
	a := mars.PositionAt(units.J2000)
	b := mars.PositionAt(units.J2000.Add(mars.Period()))
	if d := float64(a.DistanceTo(b)); d > 1e-6 {
		t.Fatalf("position after one period moved %v AU", d)
	}
	path := mars.Path(64)
	if len(path) != 65 || path[0] != path[64] {
		t.Fatalf("path has %d points, closed=%v", len(path), path[0] == path[len(path)-1])
	}
}

func TestRegisterDefaultBodiesSkipsExisting(t *testing.T) {
	r := New()
	if err := r.AddBody(model.Body{ID: Earth, Position: units.V3[units.AU](7, 0, 0)}); err != nil {
		t.Fatalf("AddBody error: %v", err)
	}
	if err := RegisterDefaultBodies(r); err != nil {
		t.Fatalf("RegisterDefaultBodies error: %v", err)
	}
	if got := len(r.Bodies()); got != len(planets)+1 {
		t.Fatalf("bodies = %d, want %d", got, len(planets)+1)
	}
	if p, _ := r.BodyPosition(Earth); p.X != 7 {
		t.Fatalf("existing earth replaced: %v", p)
	}
}

func TestAddBodyRejectsUnboundOrbit(t *testing.T) {
	r := New()
	orbit := model.NewOrbitalElements(1, 1.2, 0, 0, 0, 0, 1)
	err := r.AddBody(model.Body{ID: "comet", Orbit: &orbit})
	if !errors.Is(err, model.ErrOrbitInvalid) {
		t.Fatalf("AddBody err = %v, want ErrOrbitInvalid", err)
	}

	good := model.NewOrbitalElements(3, 0.5, 10, 0, 0, 0, 5.2)
	if err := r.AddBody(model.Body{ID: "comet", Orbit: &good}); err != nil {
		t.Fatalf("AddBody error: %v", err)
	}
	err = r.UpdateBody("comet", func(b *model.Body) { b.Orbit.Eccentricity = 1 })
	if !errors.Is(err, model.ErrOrbitInvalid) {
		t.Fatalf("UpdateBody err = %v, want ErrOrbitInvalid", err)
	}
	if b, _ := r.Body("comet"); b.Orbit.Eccentricity != 0.5 {
		t.Fatalf("rejected update applied: e = %v", b.Orbit.Eccentricity)
	}
}

func TestEarthMarkerSitsOnDrawnSphere(t *testing.T) {
	r := New()
	if _, ok := r.EarthMarker(); ok {
		t.Fatal("EarthMarker without an earth body reported ok")
	}
	if err := RegisterDefaultBodies(r); err != nil {
		t.Fatalf("RegisterDefaultBodies error: %v", err)
	}
	r.SetJulianDate(units.J2000)

	marker, ok := r.EarthMarker()
	if !ok {
		t.Fatal("EarthMarker not ok")
	}
	earth, _ := r.BodyPosition(Earth)
	b, _ := r.Body(Earth)
	want := float64(b.Radius.AU()) * b.VisualScale
	off := marker.Sub(earth)
	if d := float64(off.Norm()); math.Abs(d-want) > 1e-12 {
		t.Fatalf("marker offset = %v AU, want %v", d, want)
	}
	dir, _ := off.Direction()
	if sep := dir.AngleTo(frames.PrimeMeridian(units.J2000)); sep > 1e-9 {
		t.Fatalf("marker off the prime meridian by %v rad", sep)
	}
}
