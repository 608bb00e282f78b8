package quadrature

import (
	"fmt"

	"github.com/notargets/HHOKernel/element"
	"gonum.org/v1/gonum/spatial/r3"
)

// Provider supplies quadrature points exact for polynomials up to a degree on
// the cells and faces of a mesh
type Provider interface {
	Cell(msh element.Mesh, c, degree int) ([]Point, error)
	Face(msh element.Mesh, f, degree int) ([]Point, error)
}

// Standard integrates segments with Gauss-Legendre, simplices with collapsed
// Gauss-Jacobi rules and general polytopes by simplicial decomposition
type Standard struct{}

var _ Provider = Standard{}

func (Standard) Cell(msh element.Mesh, c, degree int) ([]Point, error) {
	pts := msh.CellPoints(c)
	switch msh.Dimensions() {
	case element.D1:
		if len(pts) != 2 {
			return nil, fmt.Errorf("1D cell %d has %d points", c, len(pts))
		}
		return Segment(pts[0], pts[1], degree)
	case element.D2:
		return Polygon(pts, r3.Vec{Z: 1}, degree)
	case element.D3:
		faces := msh.CellFaces(c)
		if len(pts) == 4 && len(faces) == 4 {
			return Tetrahedron(pts[0], pts[1], pts[2], pts[3], degree)
		}
		rings := make([][]r3.Vec, len(faces))
		for i, f := range faces {
			rings[i] = msh.FacePoints(f)
		}
		return Polyhedron(rings, element.Barycenter(pts), degree)
	}
	return nil, fmt.Errorf("invalid dimension %v", msh.Dimensions())
}

func (Standard) Face(msh element.Mesh, f, degree int) ([]Point, error) {
	pts := msh.FacePoints(f)
	switch msh.Dimensions() {
	case element.D1:
		if len(pts) != 1 {
			return nil, fmt.Errorf("1D face %d has %d points", f, len(pts))
		}
		return []Point{{X: pts[0], W: 1}}, nil
	case element.D2:
		if len(pts) != 2 {
			return nil, fmt.Errorf("2D face %d has %d points", f, len(pts))
		}
		return Segment(pts[0], pts[1], degree)
	case element.D3:
		return Polygon(pts, r3.Vec{}, degree)
	}
	return nil, fmt.Errorf("invalid dimension %v", msh.Dimensions())
}

// Integrate sums fn over the points
func Integrate(pts []Point, fn func(x r3.Vec) float64) (sum float64) {
	for _, p := range pts {
		sum += p.W * fn(p.X)
	}
	return
}
