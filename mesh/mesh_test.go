package mesh

import (
	"math"
	"testing"

	"github.com/notargets/HHOKernel/element"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestBuilders(t *testing.T) {
	tests := []struct {
		name                        string
		build                       func() (*Mesh, error)
		cells, faces, boundary, ids int
	}{
		{"1D", func() (*Mesh, error) { return NewUniform1D(-1, 2, 6) }, 6, 7, 2, 2},
		{"quad", func() (*Mesh, error) { return NewQuadrilateral2D(3, 2) }, 6, 17, 10, 4},
		{"tri", func() (*Mesh, error) { return NewTriangular2D(3, 2) }, 12, 23, 10, 4},
		{"hex", func() (*Mesh, error) { return NewHexahedral3D(2) }, 8, 36, 24, 6},
		{"tet", func() (*Mesh, error) { return NewTetrahedral3D(2) }, 48, 120, 48, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.build()
			require.NoError(t, err)
			assert.Equal(t, tt.cells, m.NumCells())
			assert.Equal(t, tt.boundary, m.NumBoundaryFaces())
			assert.Equal(t, tt.faces, m.NumFaces())
			// every face seen from both sides, boundary faces once
			count := make([]int, m.NumFaces())
			for c := 0; c < m.NumCells(); c++ {
				for _, f := range m.CellFaces(c) {
					count[f]++
					cells := m.FaceCells(f)
					assert.True(t, cells[0] == c || cells[1] == c)
				}
			}
			seen := make(map[int]bool)
			for f, n := range count {
				if m.IsBoundary(f) {
					assert.Equal(t, 1, n)
					seen[m.BoundaryID(f)] = true
				} else {
					assert.Equal(t, 2, n)
					assert.Equal(t, -1, m.BoundaryID(f))
				}
			}
			assert.Len(t, seen, tt.ids)
			assert.NotEmpty(t, m.String())
		})
	}
}

// Sum of cell measures and the closed boundary check: the outward normals
// weighted by face measure add up to zero in every cell
func TestGeometry(t *testing.T) {
	for _, build := range []func() (*Mesh, error){
		func() (*Mesh, error) { return NewQuadrilateral2D(2, 3) },
		func() (*Mesh, error) { return NewTriangular2D(2, 2) },
		func() (*Mesh, error) { return NewHexahedral3D(2) },
		func() (*Mesh, error) { return NewTetrahedral3D(1) },
	} {
		m, err := build()
		require.NoError(t, err)
		area := 0.
		for c := 0; c < m.NumCells(); c++ {
			var sum r3.Vec
			for _, f := range m.CellFaces(c) {
				pts := m.FacePoints(f)
				meas := r3.Norm(r3.Sub(pts[1], pts[0]))
				if m.Dim == element.D3 {
					meas = element.PolygonArea(pts)
				}
				sum = r3.Add(sum, r3.Scale(meas, element.OutwardNormal(m, c, f)))
			}
			assert.InDelta(t, 0, r3.Norm(sum), 1.e-13, "cell %d", c)
			if m.Dim == element.D2 {
				area += element.PolygonArea(m.CellPoints(c))
			}
		}
		if m.Dim == element.D2 {
			assert.InDelta(t, 1, area, 1.e-13)
		}
	}
}

func TestTransformAndTag(t *testing.T) {
	m, err := NewQuadrilateral2D(2, 2)
	require.NoError(t, err)
	h := m.MaxDiameter()
	assert.InDelta(t, math.Sqrt2/2, h, 1.e-14)

	m.Transform(func(p r3.Vec) r3.Vec { return r3.Scale(2, p) })
	assert.InDelta(t, math.Sqrt2, m.MaxDiameter(), 1.e-14)

	m.TagBoundary(func(bar r3.Vec) int {
		if bar.X > 1.99 {
			return 7
		}
		return 3
	})
	n7 := 0
	for f := 0; f < m.NumFaces(); f++ {
		if m.BoundaryID(f) == 7 {
			n7++
		}
	}
	assert.Equal(t, 2, n7)
}

func TestNewErrors(t *testing.T) {
	pts := []r3.Vec{{}, {X: 1}, {Y: 1}, {X: 1, Y: 1}}
	_, err := New(element.Dimensionality(0), pts, nil)
	assert.Error(t, err)
	// too few faces
	_, err = New(element.D2, pts, []CellDefinition{{PointIDs: []int{0, 1, 2}, Faces: [][]int{{0, 1}}}})
	assert.Error(t, err)
	// point out of range
	_, err = New(element.D2, pts, []CellDefinition{{PointIDs: []int{0, 1, 9}, Faces: [][]int{{0, 1}, {1, 9}, {9, 0}}}})
	assert.Error(t, err)
	// face shared by three cells
	tri := func(a, b, c int) CellDefinition {
		return CellDefinition{PointIDs: []int{a, b, c}, Faces: [][]int{{a, b}, {b, c}, {c, a}}}
	}
	pts = append(pts, r3.Vec{X: 0.5, Y: -1})
	_, err = New(element.D2, pts, []CellDefinition{tri(0, 1, 2), tri(1, 0, 4), tri(0, 1, 3)})
	assert.Error(t, err)

	_, err = NewUniform1D(1, 0, 3)
	assert.Error(t, err)
	_, err = NewQuadrilateral2D(0, 1)
	assert.Error(t, err)
	_, err = NewTriangular2D(1, 0)
	assert.Error(t, err)
	_, err = NewHexahedral3D(0)
	assert.Error(t, err)
	_, err = NewTetrahedral3D(0)
	assert.Error(t, err)
}

func TestUnitBoxSide(t *testing.T) {
	assert.Equal(t, 0, UnitBoxSide(element.D2, r3.Vec{X: 0.5}))
	assert.Equal(t, 1, UnitBoxSide(element.D2, r3.Vec{X: 1, Y: 0.5}))
	assert.Equal(t, 2, UnitBoxSide(element.D2, r3.Vec{X: 0.5, Y: 1}))
	assert.Equal(t, 3, UnitBoxSide(element.D2, r3.Vec{Y: 0.5}))
	for id, p := range []r3.Vec{
		{Y: 0.5, Z: 0.5}, {X: 1, Y: 0.5, Z: 0.5}, {X: 0.5, Z: 0.5},
		{X: 0.5, Y: 1, Z: 0.5}, {X: 0.5, Y: 0.5}, {X: 0.5, Y: 0.5, Z: 1},
	} {
		assert.Equal(t, id, UnitBoxSide(element.D3, p))
	}
}
