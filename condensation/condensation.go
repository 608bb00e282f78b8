package condensation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingularLocalSystem is returned when the cell block of a local system
// cannot be factorized
var ErrSingularLocalSystem = errors.New("singular local system")

// maxCondition bounds the condition number accepted from the LU path
const maxCondition = 1.e14

// Block is the face-only system left after eliminating the cell unknowns
type Block struct {
	Matrix *mat.Dense
	Vector *mat.VecDense
}

// cellSolver factorizes the cell block A_TT once
type cellSolver struct {
	chol *mat.Cholesky
	lu   *mat.LU
}

func isSymmetric(a mat.Matrix, tol float64) bool {
	n, _ := a.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(a.At(i, j)-a.At(j, i)) > tol*(1+math.Abs(a.At(i, j))) {
				return false
			}
		}
	}
	return true
}

func factorize(att mat.Matrix) (*cellSolver, error) {
	n, _ := att.Dims()
	if isSymmetric(att, 1.e-12) {
		sym := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				sym.SetSym(i, j, att.At(i, j))
			}
		}
		var chol mat.Cholesky
		if chol.Factorize(sym) {
			return &cellSolver{chol: &chol}, nil
		}
	}
	var lu mat.LU
	lu.Factorize(att)
	if c := lu.Cond(); math.IsInf(c, 1) || math.IsNaN(c) || c > maxCondition {
		return nil, fmt.Errorf("%w: cell block condition number %g", ErrSingularLocalSystem, c)
	}
	return &cellSolver{lu: &lu}, nil
}

func (s *cellSolver) solve(dst *mat.Dense, b mat.Matrix) error {
	if s.chol != nil {
		return s.chol.SolveTo(dst, b)
	}
	return s.lu.SolveTo(dst, false, b)
}

func (s *cellSolver) solveVec(dst *mat.VecDense, b mat.Vector) error {
	if s.chol != nil {
		return s.chol.SolveVecTo(dst, b)
	}
	return s.lu.SolveVecTo(dst, false, b)
}

func split(lhs mat.Matrix, rhs mat.Vector, cellSize int) (n, nf int, err error) {
	n, m := lhs.Dims()
	if n != m {
		return 0, 0, fmt.Errorf("local matrix is %dx%d, not square", n, m)
	}
	if rhs.Len() != n {
		return 0, 0, fmt.Errorf("local vector length %d, matrix size %d", rhs.Len(), n)
	}
	if cellSize <= 0 || cellSize >= n {
		return 0, 0, fmt.Errorf("cell size %d outside (0,%d)", cellSize, n)
	}
	return n, n - cellSize, nil
}

type slicer interface {
	Slice(i, k, j, l int) mat.Matrix
}

func blocks(lhs mat.Matrix, n, cs int) (att, atf, aft, aff mat.Matrix) {
	d, ok := lhs.(slicer)
	if !ok {
		d = mat.DenseCopyOf(lhs)
	}
	return d.Slice(0, cs, 0, cs), d.Slice(0, cs, cs, n), d.Slice(cs, n, 0, cs), d.Slice(cs, n, cs, n)
}

// Reduce eliminates the first cellSize unknowns of the local system by a
// Schur complement:
//
//	K = A_FF - A_FT A_TT^-1 A_TF,  b = L_F - A_FT A_TT^-1 L_T
//
// A_TT is factorized with Cholesky when symmetric positive definite and with
// LU otherwise.
func Reduce(lhs mat.Matrix, rhs mat.Vector, cellSize int) (*Block, error) {
	n, nf, err := split(lhs, rhs, cellSize)
	if err != nil {
		return nil, err
	}
	att, atf, aft, aff := blocks(lhs, n, cellSize)
	cs, err := factorize(att)
	if err != nil {
		return nil, err
	}
	// [A_TT^-1 A_TF | A_TT^-1 L_T]
	rhsT := mat.NewDense(cellSize, nf+1, nil)
	for i := 0; i < cellSize; i++ {
		for j := 0; j < nf; j++ {
			rhsT.Set(i, j, atf.At(i, j))
		}
		rhsT.Set(i, nf, rhs.AtVec(i))
	}
	sol := mat.NewDense(cellSize, nf+1, nil)
	if err := cs.solve(sol, rhsT); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularLocalSystem, err)
	}
	var corr mat.Dense
	corr.Mul(aft, sol)

	K := mat.NewDense(nf, nf, nil)
	b := mat.NewVecDense(nf, nil)
	for i := 0; i < nf; i++ {
		for j := 0; j < nf; j++ {
			K.Set(i, j, aff.At(i, j)-corr.At(i, j))
		}
		b.SetVec(i, rhs.AtVec(cellSize+i)-corr.At(i, nf))
	}
	return &Block{Matrix: K, Vector: b}, nil
}

// Recover rebuilds the full local solution from the face solution uF:
//
//	u_T = A_TT^-1 (L_T - A_TF u_F)
func Recover(lhs mat.Matrix, rhs mat.Vector, cellSize int, uF mat.Vector) (*mat.VecDense, error) {
	n, nf, err := split(lhs, rhs, cellSize)
	if err != nil {
		return nil, err
	}
	if uF.Len() != nf {
		return nil, fmt.Errorf("face solution length %d, expected %d", uF.Len(), nf)
	}
	att, atf, _, _ := blocks(lhs, n, cellSize)
	cs, err := factorize(att)
	if err != nil {
		return nil, err
	}
	var tf mat.VecDense
	tf.MulVec(atf, uF)
	b := mat.NewVecDense(cellSize, nil)
	for i := 0; i < cellSize; i++ {
		b.SetVec(i, rhs.AtVec(i)-tf.AtVec(i))
	}
	uT := mat.NewVecDense(cellSize, nil)
	if err := cs.solveVec(uT, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularLocalSystem, err)
	}
	u := mat.NewVecDense(n, nil)
	for i := 0; i < cellSize; i++ {
		u.SetVec(i, uT.AtVec(i))
	}
	for i := 0; i < nf; i++ {
		u.SetVec(cellSize+i, uF.AtVec(i))
	}
	return u, nil
}
