package element

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Barycenter returns the vertex average of pts
func Barycenter(pts []r3.Vec) (bar r3.Vec) {
	if len(pts) == 0 {
		return
	}
	for _, p := range pts {
		bar = r3.Add(bar, p)
	}
	return r3.Scale(1/float64(len(pts)), bar)
}

// Diameter returns the largest distance between two vertices
func Diameter(pts []r3.Vec) (h float64) {
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			if d := r3.Norm(r3.Sub(pts[i], pts[j])); d > h {
				h = d
			}
		}
	}
	return
}

// BoundingBox returns the extents of the axis aligned box enclosing pts.
// Components beyond the mesh dimension are zero.
func BoundingBox(pts []r3.Vec) (box r3.Vec) {
	if len(pts) == 0 {
		return
	}
	lo, hi := pts[0], pts[0]
	for _, p := range pts[1:] {
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	return r3.Sub(hi, lo)
}

// Component returns coordinate i (0, 1 or 2) of v
func Component(v r3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// NewellNormal returns the area weighted normal of a planar polygon ring; its
// length is twice the polygon area.
func NewellNormal(ring []r3.Vec) (n r3.Vec) {
	for i := range ring {
		a, b := ring[i], ring[(i+1)%len(ring)]
		n.X += (a.Y - b.Y) * (a.Z + b.Z)
		n.Y += (a.Z - b.Z) * (a.X + b.X)
		n.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	return
}

// PolygonArea returns the area of a planar polygon ring, in 2D or 3D
func PolygonArea(ring []r3.Vec) float64 {
	return 0.5 * r3.Norm(NewellNormal(ring))
}

// CellBarycenter is the barycenter of cell c
func CellBarycenter(msh Mesh, c int) r3.Vec { return Barycenter(msh.CellPoints(c)) }

// FaceBarycenter is the barycenter of face f
func FaceBarycenter(msh Mesh, f int) r3.Vec { return Barycenter(msh.FacePoints(f)) }

// OutwardNormal returns the unit normal of face f pointing away from cell c
func OutwardNormal(msh Mesh, c, f int) (n r3.Vec) {
	fpts := msh.FacePoints(f)
	away := r3.Sub(Barycenter(fpts), CellBarycenter(msh, c))
	switch msh.Dimensions() {
	case D1:
		n = r3.Vec{X: 1}
	case D2:
		t := r3.Sub(fpts[1], fpts[0])
		n = r3.Unit(r3.Vec{X: t.Y, Y: -t.X})
	default:
		n = r3.Unit(NewellNormal(fpts))
	}
	if r3.Dot(n, away) < 0 {
		n = r3.Scale(-1, n)
	}
	return
}
