package mesh

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/notargets/HHOKernel/element"
	"gonum.org/v1/gonum/spatial/r3"
)

// Face is a mesh face shared by at most two cells
type Face struct {
	PointIDs   []int  // 3D: ordered ring
	Cells      [2]int // second entry is -1 on the boundary
	BoundaryID int    // -1 for interior faces
}

// Cell is a polytopal mesh cell
type Cell struct {
	PointIDs []int // 2D: counter-clockwise ring
	FaceIDs  []int // local face order
}

// CellDefinition describes a cell by its vertices and its faces, each face
// given as a list of point ids
type CellDefinition struct {
	PointIDs []int
	Faces    [][]int
}

// Mesh is an in-memory polytopal mesh implementing element.Mesh
type Mesh struct {
	Dim    element.Dimensionality
	Points []r3.Vec
	Cells  []Cell
	Faces  []Face
}

var _ element.Mesh = (*Mesh)(nil)

// New builds a mesh from cell definitions. Faces are matched between cells by
// their sorted vertex ids; a face shared by more than two cells is an error.
func New(dim element.Dimensionality, points []r3.Vec, defs []CellDefinition) (*Mesh, error) {
	if !dim.Valid() {
		return nil, fmt.Errorf("invalid mesh dimension %d", dim)
	}
	m := &Mesh{
		Dim:    dim,
		Points: points,
		Cells:  make([]Cell, len(defs)),
	}
	faceMap := make(map[string]int)
	for c, def := range defs {
		if len(def.Faces) < int(dim)+1 {
			return nil, fmt.Errorf("cell %d has %d faces, need at least %d", c, len(def.Faces), dim+1)
		}
		for _, id := range def.PointIDs {
			if id < 0 || id >= len(points) {
				return nil, fmt.Errorf("cell %d references point %d out of range", c, id)
			}
		}
		m.Cells[c] = Cell{
			PointIDs: def.PointIDs,
			FaceIDs:  make([]int, len(def.Faces)),
		}
		for lf, fv := range def.Faces {
			key := faceKey(fv)
			if f, found := faceMap[key]; found {
				if m.Faces[f].Cells[1] != -1 {
					return nil, fmt.Errorf("face %v shared by more than two cells", fv)
				}
				m.Faces[f].Cells[1] = c
				m.Faces[f].BoundaryID = -1
				m.Cells[c].FaceIDs[lf] = f
				continue
			}
			f := len(m.Faces)
			faceMap[key] = f
			m.Faces = append(m.Faces, Face{
				PointIDs:   append([]int(nil), fv...),
				Cells:      [2]int{c, -1},
				BoundaryID: 0,
			})
			m.Cells[c].FaceIDs[lf] = f
		}
	}
	return m, nil
}

// faceKey builds a canonical signature from sorted vertex ids
func faceKey(ids []int) string {
	s := append([]int(nil), ids...)
	sort.Ints(s)
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "-")
}

func (m *Mesh) Dimensions() element.Dimensionality { return m.Dim }
func (m *Mesh) NumCells() int                      { return len(m.Cells) }
func (m *Mesh) NumFaces() int                      { return len(m.Faces) }
func (m *Mesh) CellFaces(c int) []int              { return m.Cells[c].FaceIDs }
func (m *Mesh) FaceCells(f int) [2]int             { return m.Faces[f].Cells }
func (m *Mesh) IsBoundary(f int) bool              { return m.Faces[f].Cells[1] < 0 }

func (m *Mesh) BoundaryID(f int) int {
	if !m.IsBoundary(f) {
		return -1
	}
	return m.Faces[f].BoundaryID
}

func (m *Mesh) CellPoints(c int) []r3.Vec { return m.gather(m.Cells[c].PointIDs) }
func (m *Mesh) FacePoints(f int) []r3.Vec { return m.gather(m.Faces[f].PointIDs) }

func (m *Mesh) gather(ids []int) []r3.Vec {
	pts := make([]r3.Vec, len(ids))
	for i, id := range ids {
		pts[i] = m.Points[id]
	}
	return pts
}

// NumBoundaryFaces counts faces owned by a single cell
func (m *Mesh) NumBoundaryFaces() (n int) {
	for f := range m.Faces {
		if m.IsBoundary(f) {
			n++
		}
	}
	return
}

// TagBoundary assigns boundary ids from the face barycenter
func (m *Mesh) TagBoundary(tag func(bar r3.Vec) int) {
	for f := range m.Faces {
		if m.IsBoundary(f) {
			m.Faces[f].BoundaryID = tag(element.FaceBarycenter(m, f))
		}
	}
}

// Transform moves every point through fn, connectivity is unchanged
func (m *Mesh) Transform(fn func(r3.Vec) r3.Vec) {
	for i, p := range m.Points {
		m.Points[i] = fn(p)
	}
}

// MaxDiameter returns the largest cell diameter, the mesh size h
func (m *Mesh) MaxDiameter() (h float64) {
	for c := range m.Cells {
		if d := element.Diameter(m.CellPoints(c)); d > h {
			h = d
		}
	}
	return
}

func (m *Mesh) String() string {
	return fmt.Sprintf("%v mesh: %d points, %d cells, %d faces (%d boundary)",
		m.Dim, len(m.Points), len(m.Cells), len(m.Faces), m.NumBoundaryFaces())
}
