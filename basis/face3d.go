package basis

import (
	"fmt"
	"math"

	"github.com/notargets/HHOKernel/element"
	"gonum.org/v1/gonum/spatial/r3"
)

// minAngleCos rejects edge pairs closer than about 8 degrees to (anti)parallel
const minAngleCos = 0.99

// ReferenceFrame maps points of a planar 3D face to 2D coordinates. E0 and E1
// are orthonormal tangents; coordinates are scaled by half the face diameter.
type ReferenceFrame struct {
	Origin r3.Vec
	E0, E1 r3.Vec
	Scale  float64
}

// NewReferenceFrame builds the frame of the face ring pts. Vertices are
// scanned in ring order starting at the second one; the first vertex whose
// two edges are far enough from parallel defines the axes, which are then
// orthonormalized by Gram-Schmidt. Unit axes and the h/2 scaling change the
// basis values against an unscaled frame, not the polynomial space spanned.
func NewReferenceFrame(pts []r3.Vec) (ReferenceFrame, error) {
	n := len(pts)
	if n < 3 {
		return ReferenceFrame{}, fmt.Errorf("%w: face with %d vertices", ErrDegenerateElement, n)
	}
	var v0, v1 r3.Vec
	found := false
	for i := 1; i <= n; i++ {
		c := pts[i%n]
		v0 = r3.Sub(pts[(i+1)%n], c)
		v1 = r3.Sub(pts[(i-1+n)%n], c)
		cos := r3.Dot(r3.Unit(v0), r3.Unit(v1))
		// NaN from a zero length edge fails both comparisons
		if cos < minAngleCos && cos > -minAngleCos {
			found = true
			break
		}
	}
	if !found {
		return ReferenceFrame{}, fmt.Errorf("%w: no pair of non-collinear edges on face", ErrDegenerateElement)
	}
	e0 := r3.Unit(v0)
	e1 := r3.Unit(r3.Sub(v1, r3.Scale(r3.Dot(v1, e0), e0)))
	h := element.Diameter(pts)
	return ReferenceFrame{
		Origin: element.Barycenter(pts),
		E0:     e0,
		E1:     e1,
		Scale:  0.5 * h,
	}, nil
}

// Map returns the 2D frame coordinates of pt
func (f ReferenceFrame) Map(pt r3.Vec) r3.Vec {
	v := r3.Sub(pt, f.Origin)
	return r3.Vec{X: r3.Dot(v, f.E0) / f.Scale, Y: r3.Dot(v, f.E1) / f.Scale}
}

// Normal is the unit normal E0 x E1
func (f ReferenceFrame) Normal() r3.Vec { return r3.Cross(f.E0, f.E1) }

// FaceMonomial3D is a 2D scaled monomial basis evaluated in the reference
// frame of a 3D face
type FaceMonomial3D struct {
	Frame ReferenceFrame
	plane *ScaledMonomial
}

var _ Basis = (*FaceMonomial3D)(nil)

// NewFaceMonomial3D builds the degree k basis of the face ring pts
func NewFaceMonomial3D(pts []r3.Vec, degree int) (*FaceMonomial3D, error) {
	frame, err := NewReferenceFrame(pts)
	if err != nil {
		return nil, err
	}
	if frame.Scale == 0 || math.IsNaN(frame.Scale) {
		return nil, fmt.Errorf("%w: zero diameter face", ErrDegenerateElement)
	}
	// the frame already scales, so the plane basis sees unit half extents
	plane, err := NewScaledMonomial(element.D2, r3.Vec{}, r3.Vec{X: 2, Y: 2}, degree)
	if err != nil {
		return nil, err
	}
	return &FaceMonomial3D{Frame: frame, plane: plane}, nil
}

func (b *FaceMonomial3D) Size() int   { return b.plane.Size() }
func (b *FaceMonomial3D) Degree() int { return b.plane.Degree() }

func (b *FaceMonomial3D) EvalFunctions(pt r3.Vec) []float64 {
	return b.plane.EvalFunctions(b.Frame.Map(pt))
}
