package condensation

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomSPD(rng *rand.Rand, n int) *mat.Dense {
	B := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			B.Set(i, j, rng.Float64()-0.5)
		}
	}
	A := mat.NewDense(n, n, nil)
	A.Mul(B, B.T())
	for i := 0; i < n; i++ {
		A.Set(i, i, A.At(i, i)+float64(n))
	}
	return A
}

func randomVec(rng *rand.Rand, n int) *mat.VecDense {
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, rng.Float64()-0.5)
	}
	return v
}

func reduceSolveRecover(t *testing.T, A *mat.Dense, L *mat.VecDense, nT int) {
	n, _ := A.Dims()
	var direct mat.VecDense
	require.NoError(t, direct.SolveVec(A, L))

	blk, err := Reduce(A, L, nT)
	require.NoError(t, err)
	r, c := blk.Matrix.Dims()
	require.Equal(t, n-nT, r)
	require.Equal(t, n-nT, c)
	var uF mat.VecDense
	require.NoError(t, uF.SolveVec(blk.Matrix, blk.Vector))
	u, err := Recover(A, L, nT, &uF)
	require.NoError(t, err)

	var diff mat.VecDense
	diff.SubVec(u, &direct)
	assert.Less(t, mat.Norm(&diff, 2), 1.e-10)
}

func TestReduceRecoverSPD(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, sizes := range [][2]int{{1, 2}, {3, 6}, {6, 12}, {10, 24}} {
		nT, nF := sizes[0], sizes[1]
		t.Run(fmt.Sprintf("nT=%d,nF=%d", nT, nF), func(t *testing.T) {
			A := randomSPD(rng, nT+nF)
			L := randomVec(rng, nT+nF)
			reduceSolveRecover(t, A, L, nT)

			blk, err := Reduce(A, L, nT)
			require.NoError(t, err)
			assert.True(t, mat.EqualApprox(blk.Matrix, blk.Matrix.T(), 1.e-12), "Schur complement of SPD is symmetric")
		})
	}
}

func TestReduceRecoverNonSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n, nT := 9, 4
	A := randomSPD(rng, n)
	// skew perturbation keeps A_TT invertible but not symmetric
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := 0.3 * (rng.Float64() - 0.5)
			A.Set(i, j, A.At(i, j)+d)
			A.Set(j, i, A.At(j, i)-d)
		}
	}
	reduceSolveRecover(t, A, randomVec(rng, n), nT)
}

func TestSingularCellBlock(t *testing.T) {
	n, nT := 5, 2
	A := mat.NewDense(n, n, nil)
	for i := nT; i < n; i++ {
		A.Set(i, i, 1)
	}
	L := mat.NewVecDense(n, nil)
	_, err := Reduce(A, L, nT)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSingularLocalSystem))

	_, err = Recover(A, L, nT, mat.NewVecDense(n-nT, nil))
	assert.True(t, errors.Is(err, ErrSingularLocalSystem))
}

func TestInputValidation(t *testing.T) {
	A := mat.NewDense(3, 3, []float64{4, 1, 0, 1, 4, 1, 0, 1, 4})
	L := mat.NewVecDense(3, nil)
	_, err := Reduce(A, L, 0)
	assert.Error(t, err)
	_, err = Reduce(A, L, 3)
	assert.Error(t, err)
	_, err = Reduce(A, mat.NewVecDense(2, nil), 1)
	assert.Error(t, err)
	_, err = Reduce(mat.NewDense(2, 3, nil), L, 1)
	assert.Error(t, err)
	_, err = Recover(A, L, 1, mat.NewVecDense(1, nil))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrSingularLocalSystem))
}

// Reduce accepts any mat.Matrix, not only *mat.Dense
func TestReduceSymDense(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	A := randomSPD(rng, 6)
	sym := mat.NewSymDense(6, A.RawMatrix().Data)
	L := randomVec(rng, 6)
	b1, err := Reduce(A, L, 2)
	require.NoError(t, err)
	b2, err := Reduce(sym, L, 2)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(b1.Matrix, b2.Matrix, 1.e-13))
	assert.True(t, mat.EqualApprox(b1.Vector, b2.Vector, 1.e-13))
}
