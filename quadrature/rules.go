package quadrature

import (
	"fmt"
	"math"
	"sync"

	"github.com/notargets/HHOKernel/element"
	"gonum.org/v1/gonum/spatial/r3"
)

// Point is a quadrature node with its weight
type Point struct {
	X r3.Vec
	W float64
}

type ruleKey struct {
	alpha float64
	n     int
}

type rule struct {
	x, w []float64
}

var (
	ruleMu    sync.RWMutex
	ruleCache = map[ruleKey]rule{}
)

// gaussJacobi returns the cached n point rule for weight (1-x)^alpha
func gaussJacobi(alpha float64, n int) (x, w []float64, err error) {
	key := ruleKey{alpha, n}
	ruleMu.RLock()
	r, ok := ruleCache[key]
	ruleMu.RUnlock()
	if ok {
		return r.x, r.w, nil
	}
	if x, w, err = JacobiGQ(alpha, 0, n-1); err != nil {
		return
	}
	ruleMu.Lock()
	ruleCache[key] = rule{x, w}
	ruleMu.Unlock()
	return
}

// pointsFor is the number of Gauss points per direction exact up to degree
func pointsFor(degree int) int {
	if degree < 0 {
		degree = 0
	}
	return degree/2 + 1
}

// Segment integrates exactly polynomials up to degree on [a,b]
func Segment(a, b r3.Vec, degree int) ([]Point, error) {
	x, w, err := gaussJacobi(0, pointsFor(degree))
	if err != nil {
		return nil, err
	}
	half := 0.5 * r3.Norm(r3.Sub(b, a))
	pts := make([]Point, len(x))
	for i := range x {
		t := 0.5 * (1 + x[i])
		pts[i] = Point{
			X: r3.Add(a, r3.Scale(t, r3.Sub(b, a))),
			W: w[i] * half,
		}
	}
	return pts, nil
}

// Triangle integrates exactly polynomials up to degree on triangle abc using
// the collapsed (Duffy) map with a Gauss-Jacobi(1,0) rule in the collapsed
// direction
func Triangle(a, b, c r3.Vec, degree int) ([]Point, error) {
	n := pointsFor(degree)
	xa, wa, err := gaussJacobi(0, n)
	if err != nil {
		return nil, err
	}
	xb, wb, err := gaussJacobi(1, n)
	if err != nil {
		return nil, err
	}
	e1, e2 := r3.Sub(b, a), r3.Sub(c, a)
	area2 := r3.Norm(r3.Cross(e1, e2))
	pts := make([]Point, 0, n*n)
	for i := range xa {
		for j := range xb {
			s := 0.25 * (1 + xa[i]) * (1 - xb[j])
			t := 0.5 * (1 + xb[j])
			pts = append(pts, Point{
				X: r3.Add(a, r3.Add(r3.Scale(s, e1), r3.Scale(t, e2))),
				W: wa[i] * wb[j] / 8 * area2,
			})
		}
	}
	return pts, nil
}

// Tetrahedron integrates exactly polynomials up to degree on tetrahedron abcd
func Tetrahedron(a, b, c, d r3.Vec, degree int) ([]Point, error) {
	n := pointsFor(degree)
	xa, wa, err := gaussJacobi(0, n)
	if err != nil {
		return nil, err
	}
	xb, wb, err := gaussJacobi(1, n)
	if err != nil {
		return nil, err
	}
	xc, wc, err := gaussJacobi(2, n)
	if err != nil {
		return nil, err
	}
	e1, e2, e3 := r3.Sub(b, a), r3.Sub(c, a), r3.Sub(d, a)
	vol6 := math.Abs(r3.Dot(r3.Cross(e1, e2), e3))
	pts := make([]Point, 0, n*n*n)
	for i := range xa {
		for j := range xb {
			for k := range xc {
				s := 0.125 * (1 + xa[i]) * (1 - xb[j]) * (1 - xc[k])
				t := 0.25 * (1 + xb[j]) * (1 - xc[k])
				u := 0.5 * (1 + xc[k])
				x := r3.Add(a, r3.Add(r3.Scale(s, e1), r3.Add(r3.Scale(t, e2), r3.Scale(u, e3))))
				pts = append(pts, Point{X: x, W: wa[i] * wb[j] * wc[k] / 64 * vol6})
			}
		}
	}
	return pts, nil
}

// Polygon integrates over a planar polygon ring by a signed fan of triangles
// around the vertex barycenter. Signed areas make the rule exact for any
// simple polygon, convex or not. normal orients the ring; pass the zero
// vector to use the ring's own orientation.
func Polygon(ring []r3.Vec, normal r3.Vec, degree int) ([]Point, error) {
	if len(ring) < 3 {
		return nil, fmt.Errorf("polygon with %d vertices", len(ring))
	}
	if len(ring) == 3 {
		return Triangle(ring[0], ring[1], ring[2], degree)
	}
	if r3.Norm2(normal) == 0 {
		normal = element.NewellNormal(ring)
	}
	var o r3.Vec
	for _, p := range ring {
		o = r3.Add(o, p)
	}
	o = r3.Scale(1/float64(len(ring)), o)

	var pts []Point
	for i := range ring {
		a, b := ring[i], ring[(i+1)%len(ring)]
		cr := r3.Cross(r3.Sub(a, o), r3.Sub(b, o))
		if r3.Norm2(cr) == 0 {
			continue
		}
		tri, err := Triangle(o, a, b, degree)
		if err != nil {
			return nil, err
		}
		if r3.Dot(cr, normal) < 0 {
			for k := range tri {
				tri[k].W = -tri[k].W
			}
		}
		pts = append(pts, tri...)
	}
	return pts, nil
}

// Polyhedron integrates over a polyhedron given by its face rings and a
// point o inside it (usually the vertex barycenter). Every face is fanned
// into triangles and each triangle is coned to o; the cone sign follows the
// orientation of the triangle as seen from o, so reentrant faces cancel.
func Polyhedron(faces [][]r3.Vec, o r3.Vec, degree int) ([]Point, error) {
	var pts []Point
	for _, ring := range faces {
		if len(ring) < 3 {
			return nil, fmt.Errorf("polyhedron face with %d vertices", len(ring))
		}
		fb := r3.Vec{}
		for _, p := range ring {
			fb = r3.Add(fb, p)
		}
		fb = r3.Scale(1/float64(len(ring)), fb)
		outward := element.NewellNormal(ring)
		if r3.Dot(outward, r3.Sub(fb, o)) < 0 {
			outward = r3.Scale(-1, outward)
		}
		tris := [][3]r3.Vec{}
		if len(ring) == 3 {
			tris = append(tris, [3]r3.Vec{ring[0], ring[1], ring[2]})
		} else {
			for i := range ring {
				tris = append(tris, [3]r3.Vec{fb, ring[i], ring[(i+1)%len(ring)]})
			}
		}
		for _, t := range tris {
			cr := r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
			if r3.Norm2(cr) == 0 {
				continue
			}
			tet, err := Tetrahedron(o, t[0], t[1], t[2], degree)
			if err != nil {
				return nil, err
			}
			// signed cone volume with the triangle oriented outward
			sign := 1.
			if (r3.Dot(cr, outward) < 0) != (r3.Dot(cr, r3.Sub(t[0], o)) < 0) {
				sign = -1.
			}
			for k := range tet {
				tet[k].W *= sign
			}
			pts = append(pts, tet...)
		}
	}
	return pts, nil
}
