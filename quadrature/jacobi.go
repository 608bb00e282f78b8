package quadrature

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// JacobiGQ computes the N+1 point Gauss quadrature for the Jacobi weight
// (1-x)^alpha (1+x)^beta on [-1,1]. Nodes are the eigenvalues of the
// symmetric Golub-Welsch matrix, weights come from the first eigenvector
// components.
func JacobiGQ(alpha, beta float64, N int) (X, W []float64, err error) {
	if N < 0 {
		return nil, nil, fmt.Errorf("negative quadrature order %d", N)
	}
	if N == 0 {
		X = []float64{-(alpha - beta) / (alpha + beta + 2.)}
		W = []float64{Gamma0(alpha, beta)}
		return
	}

	h1 := make([]float64, N+1)
	for i := 0; i < N+1; i++ {
		h1[i] = 2*float64(i) + alpha + beta
	}

	// main diagonal: d0[i] = -(β²-α²)/((2i+α+β)*(2i+α+β+2))
	d0 := make([]float64, N+1)
	fac := beta*beta - alpha*alpha
	for i := 0; i < N+1; i++ {
		d0[i] = fac / (h1[i] * (h1[i] + 2.))
	}
	if alpha+beta < 10*1.e-16 {
		d0[0] = 0.
	}

	d1 := make([]float64, N)
	for i := 0; i < N; i++ {
		ip1 := float64(i + 1)
		val := h1[i]
		d1[i] = 2.0 / (val + 2.0) * math.Sqrt(
			ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(val+1)/(val+3),
		)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(NewSymTriDiagonal(d0, d1), true); !ok {
		return nil, nil, fmt.Errorf("eigenvalue decomposition failed for Jacobi(%g,%g) order %d", alpha, beta, N)
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	gamma0 := Gamma0(alpha, beta)
	idx := make([]int, N+1)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })
	X = make([]float64, N+1)
	W = make([]float64, N+1)
	for i, k := range idx {
		X[i] = values[k]
		v := vecs.At(0, k)
		W[i] = v * v * gamma0
	}
	return
}

// Gamma0 is the integral of the Jacobi weight over [-1,1]
func Gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1.
	a1 := alpha + 1.
	b1 := beta + 1.
	return math.Gamma(a1) * math.Gamma(b1) * math.Pow(2, ab1) / ab1 / math.Gamma(ab1)
}

// NewSymTriDiagonal builds a symmetric tridiagonal matrix from its diagonal
// d0 and first off-diagonal d1
func NewSymTriDiagonal(d0, d1 []float64) *mat.SymDense {
	n := len(d0)
	tri := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		tri.SetSym(i, i, d0[i])
		if i < n-1 {
			tri.SetSym(i, i+1, d1[i])
		}
	}
	return tri
}
