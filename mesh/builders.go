package mesh

import (
	"fmt"
	"math"

	"github.com/notargets/HHOKernel/element"
	"gonum.org/v1/gonum/spatial/r3"
)

const boxTol = 1.e-12

// Face definitions for a tetrahedron (which 3 vertices form each face)
var tetFaceVertices = [][]int{
	{0, 1, 2},
	{0, 1, 3},
	{1, 2, 3},
	{0, 2, 3},
}

// NewUniform1D splits [a,b] into n equal segments. Boundary ids: 0 at a, 1 at b.
func NewUniform1D(a, b float64, n int) (*Mesh, error) {
	if n < 1 || b <= a {
		return nil, fmt.Errorf("invalid 1D mesh: [%g,%g] with %d cells", a, b, n)
	}
	points := make([]r3.Vec, n+1)
	for i := range points {
		points[i] = r3.Vec{X: a + (b-a)*float64(i)/float64(n)}
	}
	defs := make([]CellDefinition, n)
	for i := range defs {
		defs[i] = CellDefinition{
			PointIDs: []int{i, i + 1},
			Faces:    [][]int{{i}, {i + 1}},
		}
	}
	m, err := New(element.D1, points, defs)
	if err != nil {
		return nil, err
	}
	m.TagBoundary(func(bar r3.Vec) int {
		if math.Abs(bar.X-a) < boxTol {
			return 0
		}
		return 1
	})
	return m, nil
}

func gridPoints2D(nx, ny int) []r3.Vec {
	points := make([]r3.Vec, 0, (nx+1)*(ny+1))
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			points = append(points, r3.Vec{X: float64(i) / float64(nx), Y: float64(j) / float64(ny)})
		}
	}
	return points
}

func ringFaces(ring []int) [][]int {
	faces := make([][]int, len(ring))
	for i := range ring {
		faces[i] = []int{ring[i], ring[(i+1)%len(ring)]}
	}
	return faces
}

// NewQuadrilateral2D meshes the unit square with nx*ny squares
func NewQuadrilateral2D(nx, ny int) (*Mesh, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("invalid 2D mesh size %dx%d", nx, ny)
	}
	id := func(i, j int) int { return j*(nx+1) + i }
	var defs []CellDefinition
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			ring := []int{id(i, j), id(i+1, j), id(i+1, j+1), id(i, j+1)}
			defs = append(defs, CellDefinition{PointIDs: ring, Faces: ringFaces(ring)})
		}
	}
	return finishUnitBox(element.D2, gridPoints2D(nx, ny), defs)
}

// NewTriangular2D meshes the unit square with 2*nx*ny triangles
func NewTriangular2D(nx, ny int) (*Mesh, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("invalid 2D mesh size %dx%d", nx, ny)
	}
	id := func(i, j int) int { return j*(nx+1) + i }
	var defs []CellDefinition
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			lower := []int{id(i, j), id(i+1, j), id(i+1, j+1)}
			upper := []int{id(i, j), id(i+1, j+1), id(i, j+1)}
			defs = append(defs,
				CellDefinition{PointIDs: lower, Faces: ringFaces(lower)},
				CellDefinition{PointIDs: upper, Faces: ringFaces(upper)})
		}
	}
	return finishUnitBox(element.D2, gridPoints2D(nx, ny), defs)
}

func gridPoints3D(n int) []r3.Vec {
	points := make([]r3.Vec, 0, (n+1)*(n+1)*(n+1))
	h := 1 / float64(n)
	for k := 0; k <= n; k++ {
		for j := 0; j <= n; j++ {
			for i := 0; i <= n; i++ {
				points = append(points, r3.Vec{X: float64(i) * h, Y: float64(j) * h, Z: float64(k) * h})
			}
		}
	}
	return points
}

// cubeVertices returns the 8 vertex ids of cube (i,j,k), bottom ring then top ring
func cubeVertices(n, i, j, k int) [8]int {
	id := func(i, j, k int) int { return (k*(n+1)+j)*(n+1) + i }
	return [8]int{
		id(i, j, k), id(i+1, j, k), id(i+1, j+1, k), id(i, j+1, k),
		id(i, j, k+1), id(i+1, j, k+1), id(i+1, j+1, k+1), id(i, j+1, k+1),
	}
}

// NewHexahedral3D meshes the unit cube with n^3 hexahedra
func NewHexahedral3D(n int) (*Mesh, error) {
	if n < 1 {
		return nil, fmt.Errorf("invalid 3D mesh size %d", n)
	}
	var defs []CellDefinition
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				v := cubeVertices(n, i, j, k)
				defs = append(defs, CellDefinition{
					PointIDs: v[:],
					Faces: [][]int{
						{v[0], v[3], v[2], v[1]},
						{v[4], v[5], v[6], v[7]},
						{v[0], v[1], v[5], v[4]},
						{v[1], v[2], v[6], v[5]},
						{v[2], v[3], v[7], v[6]},
						{v[3], v[0], v[4], v[7]},
					},
				})
			}
		}
	}
	return finishUnitBox(element.D3, gridPoints3D(n), defs)
}

// NewTetrahedral3D meshes the unit cube with 6*n^3 tetrahedra. Every cube is
// split around its main diagonal, so neighbouring cubes stay conforming.
func NewTetrahedral3D(n int) (*Mesh, error) {
	if n < 1 {
		return nil, fmt.Errorf("invalid 3D mesh size %d", n)
	}
	kuhn := [6][4]int{
		{0, 1, 2, 6}, {0, 2, 3, 6}, {0, 3, 7, 6},
		{0, 7, 4, 6}, {0, 4, 5, 6}, {0, 5, 1, 6},
	}
	var defs []CellDefinition
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				v := cubeVertices(n, i, j, k)
				for _, t := range kuhn {
					tet := []int{v[t[0]], v[t[1]], v[t[2]], v[t[3]]}
					faces := make([][]int, 4)
					for f, fv := range tetFaceVertices {
						faces[f] = []int{tet[fv[0]], tet[fv[1]], tet[fv[2]]}
					}
					defs = append(defs, CellDefinition{PointIDs: tet, Faces: faces})
				}
			}
		}
	}
	return finishUnitBox(element.D3, gridPoints3D(n), defs)
}

func finishUnitBox(dim element.Dimensionality, points []r3.Vec, defs []CellDefinition) (*Mesh, error) {
	m, err := New(dim, points, defs)
	if err != nil {
		return nil, err
	}
	m.TagBoundary(func(bar r3.Vec) int { return UnitBoxSide(dim, bar) })
	return m, nil
}

// UnitBoxSide returns the boundary id of a point on the unit box:
// 2D {0:y=0, 1:x=1, 2:y=1, 3:x=0}, 3D {0:x=0, 1:x=1, 2:y=0, 3:y=1, 4:z=0, 5:z=1}
func UnitBoxSide(dim element.Dimensionality, p r3.Vec) int {
	near := func(a, b float64) bool { return math.Abs(a-b) < boxTol }
	if dim == element.D2 {
		switch {
		case near(p.Y, 0):
			return 0
		case near(p.X, 1):
			return 1
		case near(p.Y, 1):
			return 2
		default:
			return 3
		}
	}
	switch {
	case near(p.X, 0):
		return 0
	case near(p.X, 1):
		return 1
	case near(p.Y, 0):
		return 2
	case near(p.Y, 1):
		return 3
	case near(p.Z, 0):
		return 4
	default:
		return 5
	}
}
