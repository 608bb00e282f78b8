package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/cpmech/gosl/io"
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrSolverFailure is returned when the global system could not be solved
var ErrSolverFailure = errors.New("solver failure")

// Solver solves the finalized global system A x = b. Implementations must
// not modify A or b.
type Solver interface {
	Solve(A *sparse.CSR, b *mat.VecDense) (*mat.VecDense, error)
}

// Get returns a solver by name: "lu", "cholesky" or "cg"
func Get(name string) (Solver, error) {
	switch name {
	case "lu":
		return DenseLU{}, nil
	case "cholesky":
		return DenseCholesky{}, nil
	case "cg", "":
		return &CG{}, nil
	}
	return nil, fmt.Errorf("unknown solver %q", name)
}

func checkDims(A *sparse.CSR, b *mat.VecDense) (int, error) {
	r, c := A.Dims()
	if r != c {
		return 0, fmt.Errorf("%w: matrix is %dx%d", ErrSolverFailure, r, c)
	}
	if b.Len() != r {
		return 0, fmt.Errorf("%w: right hand side length %d, matrix size %d", ErrSolverFailure, b.Len(), r)
	}
	return r, nil
}

func toDense(A *sparse.CSR, n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	A.DoNonZero(func(i, j int, v float64) { d.Set(i, j, v) })
	return d
}

// DenseLU factorizes a dense copy of the matrix with partial pivoting
type DenseLU struct{}

func (DenseLU) Solve(A *sparse.CSR, b *mat.VecDense) (*mat.VecDense, error) {
	n, err := checkDims(A, b)
	if err != nil {
		return nil, err
	}
	var lu mat.LU
	lu.Factorize(toDense(A, n))
	x := mat.NewVecDense(n, nil)
	if err := lu.SolveVecTo(x, false, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSolverFailure, err)
	}
	return x, nil
}

// DenseCholesky factorizes a dense copy of a symmetric positive definite
// matrix; only the upper triangle is read
type DenseCholesky struct{}

func (DenseCholesky) Solve(A *sparse.CSR, b *mat.VecDense) (*mat.VecDense, error) {
	n, err := checkDims(A, b)
	if err != nil {
		return nil, err
	}
	sym := mat.NewSymDense(n, nil)
	A.DoNonZero(func(i, j int, v float64) {
		if j >= i {
			sym.SetSym(i, j, v)
		}
	})
	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return nil, fmt.Errorf("%w: matrix is not positive definite", ErrSolverFailure)
	}
	x := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(x, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSolverFailure, err)
	}
	return x, nil
}

// CG is the Jacobi preconditioned conjugate gradient method for symmetric
// positive definite systems
type CG struct {
	Tolerance     float64 // relative residual, zero: 1e-12
	MaxIterations int     // zero: 10 n
	Verbose       bool

	Iterations int     // iterations of the last solve
	Residual   float64 // relative residual of the last solve
}

func mulVec(A *sparse.CSR, x, y []float64) {
	for i := range y {
		y[i] = 0
	}
	A.DoNonZero(func(i, j int, v float64) { y[i] += v * x[j] })
}

func (s *CG) Solve(A *sparse.CSR, b *mat.VecDense) (*mat.VecDense, error) {
	n, err := checkDims(A, b)
	if err != nil {
		return nil, err
	}
	tol := s.Tolerance
	if tol == 0 {
		tol = 1.e-12
	}
	maxIt := s.MaxIterations
	if maxIt == 0 {
		maxIt = 10 * n
	}

	invDiag := make([]float64, n)
	A.DoNonZero(func(i, j int, v float64) {
		if i == j {
			invDiag[i] = v
		}
	})
	for i, d := range invDiag {
		if d <= 0 {
			return nil, fmt.Errorf("%w: non-positive diagonal %g at row %d", ErrSolverFailure, d, i)
		}
		invDiag[i] = 1 / d
	}

	var (
		x  = make([]float64, n)
		r  = make([]float64, n)
		z  = make([]float64, n)
		p  = make([]float64, n)
		Ap = make([]float64, n)
	)
	for i := range r {
		r[i] = b.AtVec(i)
	}
	bNorm := floats.Norm(r, 2)
	s.Iterations, s.Residual = 0, 0
	if bNorm == 0 {
		return mat.NewVecDense(n, x), nil
	}
	floats.MulTo(z, invDiag, r)
	copy(p, z)
	rz := floats.Dot(r, z)
	for it := 1; it <= maxIt; it++ {
		mulVec(A, p, Ap)
		pAp := floats.Dot(p, Ap)
		if pAp <= 0 || math.IsNaN(pAp) {
			return nil, fmt.Errorf("%w: matrix is not positive definite (p.Ap = %g)", ErrSolverFailure, pAp)
		}
		alpha := rz / pAp
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, Ap)
		s.Iterations = it
		s.Residual = floats.Norm(r, 2) / bNorm
		if s.Residual < tol {
			if s.Verbose {
				io.Pf("cg: converged in %d iterations, residual %g\n", it, s.Residual)
			}
			return mat.NewVecDense(n, x), nil
		}
		floats.MulTo(z, invDiag, r)
		rzNew := floats.Dot(r, z)
		floats.AddScaledTo(p, z, rzNew/rz, p)
		rz = rzNew
	}
	return nil, fmt.Errorf("%w: cg did not converge in %d iterations, residual %g", ErrSolverFailure, maxIt, s.Residual)
}
