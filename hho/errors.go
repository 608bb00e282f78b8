package hho

import (
	"math"

	"github.com/notargets/HHOKernel/element"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ElementError holds the squared error contributions of one cell, except
// Linf which is a plain maximum
type ElementError struct {
	Energy   float64 // (I u - u_h)^T (A + S) (I u - u_h)
	L2       float64 // ||pi_T u - u_T||^2
	Gradient float64 // ||grad u - grad p_T u_h||^2
	Linf     float64 // max |u - u_T| at the quadrature points
}

// Add accumulates e into the running totals
func (e *ElementError) Add(o ElementError) {
	e.Energy += o.Energy
	e.L2 += o.L2
	e.Gradient += o.Gradient
	e.Linf = math.Max(e.Linf, o.Linf)
}

// Errors measures the local solution uh against the exact solution u. lhs is
// the uncondensed local bilinear form A + S. grad may be nil, in which case
// the gradient error is left at zero. Components of grad beyond the mesh
// dimension are ignored.
func Errors(s *LocalSpace, op *LocalOperator, lhs mat.Matrix, uh mat.Vector,
	u func(r3.Vec) float64, grad func(r3.Vec) r3.Vec) (e ElementError, err error) {
	Iu, err := Interpolate(s, u)
	if err != nil {
		return
	}
	diff := mat.NewVecDense(s.NumDofs(), nil)
	diff.SubVec(Iu, uh)
	var Ad mat.VecDense
	Ad.MulVec(lhs, diff)
	e.Energy = mat.Dot(diff, &Ad)

	pts, err := s.cellPoints(2*s.Degree.Reconstruction() + 2)
	if err != nil {
		return
	}
	cbs := s.CellSize()
	dT := diff.SliceVec(0, cbs)
	M := MassMatrix(s.Cell, pts)
	var Md mat.VecDense
	Md.MulVec(M, dT)
	e.L2 = mat.Dot(dT, &Md)

	for _, q := range pts {
		e.Linf = math.Max(e.Linf, math.Abs(u(q.X)-CellValue(s, uh, q.X)))
	}
	if grad == nil {
		return
	}
	rec, err := Reconstruct(s, op, uh)
	if err != nil {
		return
	}
	dim := s.Mesh.Dimensions()
	for _, q := range pts {
		d := r3.Sub(truncate(grad(q.X), dim), rec.Gradient(q.X))
		e.Gradient += q.W * r3.Norm2(d)
	}
	return
}

// truncate zeroes the components of v beyond dim
func truncate(v r3.Vec, dim element.Dimensionality) r3.Vec {
	switch dim {
	case element.D1:
		return r3.Vec{X: v.X}
	case element.D2:
		return r3.Vec{X: v.X, Y: v.Y}
	}
	return v
}
