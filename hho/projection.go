package hho

import (
	"fmt"

	"github.com/notargets/HHOKernel/basis"
	"github.com/notargets/HHOKernel/quadrature"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Project computes the L2 projection of fn onto b over pts
func Project(b basis.Basis, pts []quadrature.Point, fn func(r3.Vec) float64) (*mat.VecDense, error) {
	M := MassMatrix(b, pts)
	rhs := mat.NewVecDense(b.Size(), nil)
	for _, q := range pts {
		fq := fn(q.X)
		for i, phi := range b.EvalFunctions(q.X) {
			rhs.SetVec(i, rhs.AtVec(i)+q.W*fq*phi)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(M); !ok {
		return nil, fmt.Errorf("mass matrix not positive definite: %w", basis.ErrDegenerateElement)
	}
	x := mat.NewVecDense(b.Size(), nil)
	if err := chol.SolveVecTo(x, rhs); err != nil {
		return nil, err
	}
	return x, nil
}

// ProjectCell projects fn onto the cell basis
func ProjectCell(s *LocalSpace, fn func(r3.Vec) float64) (*mat.VecDense, error) {
	pts, err := s.cellPoints(2*s.Degree.Cell + 2)
	if err != nil {
		return nil, err
	}
	return Project(s.Cell, pts, fn)
}

// ProjectFace projects fn onto the basis of local face fi
func ProjectFace(s *LocalSpace, fi int, fn func(r3.Vec) float64) (*mat.VecDense, error) {
	pts, err := s.facePoints(fi, 2*s.Degree.Face+2)
	if err != nil {
		return nil, err
	}
	return Project(s.FaceBases[fi], pts, fn)
}

// Interpolate returns the HHO interpolant of fn: cell and face L2 projections
// stacked in local order
func Interpolate(s *LocalSpace, fn func(r3.Vec) float64) (*mat.VecDense, error) {
	u := mat.NewVecDense(s.NumDofs(), nil)
	uT, err := ProjectCell(s, fn)
	if err != nil {
		return nil, err
	}
	for i := 0; i < s.CellSize(); i++ {
		u.SetVec(i, uT.AtVec(i))
	}
	for fi := range s.Faces {
		uF, err := ProjectFace(s, fi, fn)
		if err != nil {
			return nil, err
		}
		off := s.FaceOffset(fi)
		for i := 0; i < s.FaceSize(); i++ {
			u.SetVec(off+i, uF.AtVec(i))
		}
	}
	return u, nil
}

// Reconstructed is the higher order polynomial p_T u of a local solution,
// with its constant fixed so that its mean matches the mean of the cell
// unknown
type Reconstructed struct {
	Basis  basis.CellBasis
	Coeffs []float64
}

// Reconstruct evaluates R u and fixes the free constant
func Reconstruct(s *LocalSpace, op *LocalOperator, u mat.Vector) (*Reconstructed, error) {
	rbs := s.Recon.Size()
	var ru mat.VecDense
	ru.MulVec(op.Reconstruction, u)
	coeffs := make([]float64, rbs)
	for i := 1; i < rbs; i++ {
		coeffs[i] = ru.AtVec(i - 1)
	}
	pts, err := s.cellPoints(s.Degree.Reconstruction())
	if err != nil {
		return nil, err
	}
	var vol, meanT, meanR float64
	for _, q := range pts {
		vol += q.W
		for i, phi := range s.Cell.EvalFunctions(q.X) {
			meanT += q.W * u.AtVec(i) * phi
		}
		for i, phi := range s.Recon.EvalFunctions(q.X) {
			meanR += q.W * coeffs[i] * phi
		}
	}
	// the constant function is the first basis function, equal to 1
	coeffs[0] = (meanT - meanR) / vol
	return &Reconstructed{Basis: s.Recon, Coeffs: coeffs}, nil
}

func (r *Reconstructed) Value(x r3.Vec) (v float64) {
	for i, phi := range r.Basis.EvalFunctions(x) {
		v += r.Coeffs[i] * phi
	}
	return
}

func (r *Reconstructed) Gradient(x r3.Vec) (g r3.Vec) {
	grad := r.Basis.EvalGradients(x)
	_, d := grad.Dims()
	for i, c := range r.Coeffs {
		g.X += c * grad.At(i, 0)
		if d > 1 {
			g.Y += c * grad.At(i, 1)
		}
		if d > 2 {
			g.Z += c * grad.At(i, 2)
		}
	}
	return
}

// CellValue evaluates the cell unknown u_T at x
func CellValue(s *LocalSpace, u mat.Vector, x r3.Vec) (v float64) {
	for i, phi := range s.Cell.EvalFunctions(x) {
		v += u.AtVec(i) * phi
	}
	return
}
