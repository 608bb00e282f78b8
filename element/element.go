package element

import "gonum.org/v1/gonum/spatial/r3"

// Dimensionality is the ambient spatial dimension of a mesh
type Dimensionality uint8

const (
	D1 Dimensionality = iota + 1
	D2
	D3
)

// Int returns the dimension as a plain integer (1, 2 or 3)
func (d Dimensionality) Int() int { return int(d) }

func (d Dimensionality) String() string {
	switch d {
	case D1:
		return "1D"
	case D2:
		return "2D"
	case D3:
		return "3D"
	default:
		return "invalid"
	}
}

// Valid reports whether d is one of D1, D2, D3
func (d Dimensionality) Valid() bool { return d >= D1 && d <= D3 }

// Kind distinguishes the two element families of a skeletal method
type Kind uint8

const (
	Cell Kind = iota
	Face
)

func (k Kind) String() string {
	if k == Face {
		return "face"
	}
	return "cell"
}

// Mesh is the capability set the discretization consumes. Cells and faces are
// addressed by dense integer ids. Implementations must enumerate the faces of
// a cell in a fixed order, since local face blocks are laid out in that order.
type Mesh interface {
	Dimensions() Dimensionality
	NumCells() int
	NumFaces() int

	// CellFaces returns the face ids of cell c in local order
	CellFaces(c int) []int
	// CellPoints returns the vertices of cell c. In 2D they form a
	// counter-clockwise ring.
	CellPoints(c int) []r3.Vec
	// FacePoints returns the vertices of face f. In 3D they form a ring.
	FacePoints(f int) []r3.Vec
	// FaceCells returns the cells sharing face f, the second entry is -1 on
	// the boundary
	FaceCells(f int) [2]int

	IsBoundary(f int) bool
	// BoundaryID is the boundary tag of face f, -1 for interior faces
	BoundaryID(f int) int
}
