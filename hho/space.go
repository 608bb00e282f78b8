package hho

import (
	"fmt"

	"github.com/notargets/HHOKernel/basis"
	"github.com/notargets/HHOKernel/element"
	"github.com/notargets/HHOKernel/quadrature"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// DegreeInfo holds the cell and face polynomial degrees. The reconstruction
// degree is always Face+1.
type DegreeInfo struct {
	Cell, Face int
}

// NewDegreeInfo uses the same degree k on cells and faces
func NewDegreeInfo(k int) DegreeInfo { return DegreeInfo{Cell: k, Face: k} }

func (d DegreeInfo) Reconstruction() int { return d.Face + 1 }

// Validate checks the supported combinations, |Cell-Face| <= 1
func (d DegreeInfo) Validate() error {
	if d.Face < 0 || d.Cell < 0 {
		return fmt.Errorf("%w: cell %d face %d", basis.ErrUnsupportedDegree, d.Cell, d.Face)
	}
	if d.Cell > d.Face+1 || d.Cell < d.Face-1 {
		return fmt.Errorf("%w: cell degree %d incompatible with face degree %d",
			basis.ErrUnsupportedDegree, d.Cell, d.Face)
	}
	return nil
}

// LocalSpace gathers everything the local operators of one cell need: the
// cell basis, the reconstruction basis sharing its anchor, and per local face
// the basis, the outward normal and the diameter. Local unknowns are laid out
// as [cell | face 0 | face 1 | ...].
type LocalSpace struct {
	Mesh   element.Mesh
	CellID int
	Degree DegreeInfo
	Quad   quadrature.Provider

	Cell     basis.CellBasis
	Recon    basis.CellBasis
	Diameter float64

	Faces         []int
	FaceBases     []basis.Basis
	Normals       []r3.Vec
	FaceDiameters []float64
}

// NewLocalSpace builds the bases of cell c
func NewLocalSpace(msh element.Mesh, c int, deg DegreeInfo, q quadrature.Provider) (*LocalSpace, error) {
	if err := deg.Validate(); err != nil {
		return nil, err
	}
	if q == nil {
		q = quadrature.Standard{}
	}
	cb, err := basis.NewCellBasis(msh, c, deg.Cell)
	if err != nil {
		return nil, err
	}
	rb, err := basis.NewCellBasis(msh, c, deg.Reconstruction())
	if err != nil {
		return nil, err
	}
	faces := msh.CellFaces(c)
	s := &LocalSpace{
		Mesh:          msh,
		CellID:        c,
		Degree:        deg,
		Quad:          q,
		Cell:          cb,
		Recon:         rb,
		Diameter:      element.Diameter(msh.CellPoints(c)),
		Faces:         faces,
		FaceBases:     make([]basis.Basis, len(faces)),
		Normals:       make([]r3.Vec, len(faces)),
		FaceDiameters: make([]float64, len(faces)),
	}
	for i, f := range faces {
		if s.FaceBases[i], err = basis.NewFaceBasis(msh, f, deg.Face); err != nil {
			return nil, fmt.Errorf("cell %d: %w", c, err)
		}
		s.Normals[i] = element.OutwardNormal(msh, c, f)
		// point faces of 1D meshes take the cell size
		if s.FaceDiameters[i] = element.Diameter(msh.FacePoints(f)); s.FaceDiameters[i] == 0 {
			s.FaceDiameters[i] = s.Diameter
		}
	}
	return s, nil
}

func (s *LocalSpace) CellSize() int { return s.Cell.Size() }
func (s *LocalSpace) FaceSize() int { return basis.ScalarBasisSize(s.Degree.Face, s.Mesh.Dimensions().Int()-1) }
func (s *LocalSpace) NumFaces() int { return len(s.Faces) }
func (s *LocalSpace) NumDofs() int  { return s.CellSize() + len(s.Faces)*s.FaceSize() }

// FaceOffset is the first local unknown of local face i
func (s *LocalSpace) FaceOffset(i int) int { return s.CellSize() + i*s.FaceSize() }

// LocalFace returns the local index of mesh face f, -1 when f is not a face
// of the cell
func (s *LocalSpace) LocalFace(f int) int {
	for i, ff := range s.Faces {
		if ff == f {
			return i
		}
	}
	return -1
}

func (s *LocalSpace) cellPoints(degree int) ([]quadrature.Point, error) {
	return s.Quad.Cell(s.Mesh, s.CellID, degree)
}

func (s *LocalSpace) facePoints(i, degree int) ([]quadrature.Point, error) {
	return s.Quad.Face(s.Mesh, s.Faces[i], degree)
}

// normalDerivatives returns the rows of grad . n
func normalDerivatives(grad *mat.Dense, n r3.Vec) []float64 {
	r, c := grad.Dims()
	ret := make([]float64, r)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			ret[i] += grad.At(i, j) * element.Component(n, j)
		}
	}
	return ret
}

// addOuter accumulates alpha * u v^T into m starting at (r0, c0)
func addOuter(m *mat.Dense, alpha float64, u, v []float64, r0, c0 int) {
	for i, ui := range u {
		if ui == 0 {
			continue
		}
		for j, vj := range v {
			m.Set(r0+i, c0+j, m.At(r0+i, c0+j)+alpha*ui*vj)
		}
	}
}
