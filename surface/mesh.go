package surface

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/heliosphere-sim/units"
)

// Mesh is an indexed triangle list on a regular (theta, phi) grid.
// Positions and normals are packed xyz triples; positions are in AU.
type Mesh struct {
	Kind       Kind
	ThetaSteps int
	PhiSteps   int

	Positions []float32
	Normals   []float32
	Indices   []uint32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Positions) / 3 }

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }

// Vertex returns vertex i.
func (m *Mesh) Vertex(i int) units.Position {
	return units.V3(units.AU(m.Positions[3*i]), units.AU(m.Positions[3*i+1]), units.AU(m.Positions[3*i+2]))
}

// Extent returns the smallest and largest vertex distance from the Sun.
func (m *Mesh) Extent() (lo, hi units.AU) {
	lo = units.AU(math.Inf(1))
	for i := range m.VertexCount() {
		r := m.Vertex(i).Norm()
		lo = min(lo, r)
		hi = max(hi, r)
	}
	return lo, hi
}

// GenerateMesh samples the surface of kind on a (thetaSteps+1) x
// (phiSteps+1) grid and emits two triangles per grid quad. The phi seam is
// duplicated so texture coordinates can wrap.
func (s *Surface) GenerateMesh(thetaSteps, phiSteps int, kind Kind) (*Mesh, error) {
	if thetaSteps < 2 || phiSteps < 3 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidResolution, thetaSteps, phiSteps)
	}
	cols := phiSteps + 1
	verts := (thetaSteps + 1) * cols
	m := &Mesh{
		Kind:       kind,
		ThetaSteps: thetaSteps,
		PhiSteps:   phiSteps,
		Positions:  make([]float32, 0, 3*verts),
		Normals:    make([]float32, 0, 3*verts),
		Indices:    make([]uint32, 0, 6*thetaSteps*phiSteps),
	}

	for i := 0; i <= thetaSteps; i++ {
		theta := units.Radians(math.Pi * float64(i) / float64(thetaSteps))
		for j := 0; j <= phiSteps; j++ {
			phi := units.Radians(2 * math.Pi * float64(j) / float64(phiSteps))
			p := s.SamplePoint(kind, theta, phi)
			n := s.normal(kind, theta, phi, p)
			m.Positions = append(m.Positions, float32(p.X), float32(p.Y), float32(p.Z))
			m.Normals = append(m.Normals, float32(n.X()), float32(n.Y()), float32(n.Z()))
		}
	}

	for i := range thetaSteps {
		for j := range phiSteps {
			a := uint32(i*cols + j)
			b := a + uint32(cols)
			m.Indices = append(m.Indices, a, b, a+1, b, b+1, a+1)
		}
	}
	return m, nil
}

// normal estimates the outward normal at (theta, phi) from central
// differences. Where the tangents degenerate (the poles) it falls back to
// the radial direction.
func (s *Surface) normal(kind Kind, theta, phi units.Radians, p units.Position) units.Direction {
	eps := NormalEpsilon
	dTheta := s.SamplePoint(kind, theta+eps, phi).Sub(s.SamplePoint(kind, theta-eps, phi))
	dPhi := s.SamplePoint(kind, theta, phi+eps).Sub(s.SamplePoint(kind, theta, phi-eps))

	radial := units.FromSpherical(theta, phi)
	n, err := units.Normalize(
		float64(dTheta.Y*dPhi.Z-dTheta.Z*dPhi.Y),
		float64(dTheta.Z*dPhi.X-dTheta.X*dPhi.Z),
		float64(dTheta.X*dPhi.Y-dTheta.Y*dPhi.X),
	)
	if err != nil || math.Abs(float64(dPhi.Norm())) < 1e-9*math.Max(1, float64(p.Norm())) {
		return radial
	}
	if n.Dot(radial) < 0 {
		n = n.Neg()
	}
	return n
}
