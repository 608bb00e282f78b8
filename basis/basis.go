package basis

import (
	"errors"
	"fmt"

	"github.com/notargets/HHOKernel/element"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrUnsupportedDegree is returned when a degree exceeds a closed-form table
	ErrUnsupportedDegree = errors.New("unsupported basis degree")
	// ErrDegenerateElement is returned when an element has no usable geometry,
	// such as a 3D face with no pair of non-collinear edges
	ErrDegenerateElement = errors.New("degenerate element")
)

// Basis is a polynomial basis attached to one mesh element. Values are
// immutable after construction and safe for concurrent evaluation.
type Basis interface {
	Size() int
	Degree() int
	EvalFunctions(pt r3.Vec) []float64
}

// CellBasis adds gradients, returned as a Size() x Dimensions() matrix
type CellBasis interface {
	Basis
	Dimensions() element.Dimensionality
	EvalGradients(pt r3.Vec) *mat.Dense
}

// Config selects the basis built by New
type Config struct {
	Kind   element.Kind
	Degree int
}

// New builds the scalar basis of a cell or face of msh
func New(msh element.Mesh, index int, cfg Config) (Basis, error) {
	switch cfg.Kind {
	case element.Cell:
		return NewCellBasis(msh, index, cfg.Degree)
	case element.Face:
		return NewFaceBasis(msh, index, cfg.Degree)
	}
	return nil, fmt.Errorf("unknown element kind %v", cfg.Kind)
}

// NewCellBasis builds the scaled monomial basis of cell c, anchored at the
// cell barycenter and scaled by the bounding box extents
func NewCellBasis(msh element.Mesh, c, degree int) (CellBasis, error) {
	pts := msh.CellPoints(c)
	b, err := NewScaledMonomial(msh.Dimensions(), element.Barycenter(pts),
		element.BoundingBox(pts), degree)
	if err != nil {
		return nil, fmt.Errorf("cell %d: %w", c, err)
	}
	return b, nil
}

// NewFaceBasis builds the basis of face f: a point basis on 1D meshes,
// Legendre polynomials on 2D meshes and scaled monomials in a face reference
// frame on 3D meshes
func NewFaceBasis(msh element.Mesh, f, degree int) (b Basis, err error) {
	pts := msh.FacePoints(f)
	switch msh.Dimensions() {
	case element.D1:
		b, err = NewPoint(degree)
	case element.D2:
		if len(pts) != 2 {
			return nil, fmt.Errorf("face %d: 2D face with %d points", f, len(pts))
		}
		b, err = NewLegendre(pts[0], pts[1], degree)
	case element.D3:
		b, err = NewFaceMonomial3D(pts, degree)
	default:
		err = fmt.Errorf("invalid dimension %v", msh.Dimensions())
	}
	if err != nil {
		return nil, fmt.Errorf("face %d: %w", f, err)
	}
	return
}

// ScalarBasisSize is the number of monomials of degree <= k in d variables,
// C(k+d, d)
func ScalarBasisSize(k, d int) int {
	num, den := 1, 1
	for i := 1; i <= d; i++ {
		num *= k + i
		den *= i
	}
	return num / den
}

// ipow computes x^n by repeated squaring, x^0 = 1
func ipow(x float64, n int) float64 {
	if n == 0 {
		return 1
	}
	y := 1.
	for n > 1 {
		if n%2 == 0 {
			x *= x
			n /= 2
		} else {
			y *= x
			x *= x
			n = (n - 1) / 2
		}
	}
	return x * y
}

// Point is the single constant function living on a point face of a 1D mesh
type Point struct {
	degree int
}

// NewPoint returns the point face basis; the degree is only recorded
func NewPoint(degree int) (*Point, error) {
	if degree < 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDegree, degree)
	}
	return &Point{degree: degree}, nil
}

func (p *Point) Size() int                       { return 1 }
func (p *Point) Degree() int                     { return p.degree }
func (p *Point) EvalFunctions(r3.Vec) []float64 { return []float64{1} }
