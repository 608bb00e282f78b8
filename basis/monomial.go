package basis

import (
	"fmt"

	"github.com/notargets/HHOKernel/element"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ScaledMonomial is the graded monomial basis in the local coordinates
// x~_i = (x_i - bar_i) / (0.5 * box_i). Functions are ordered by degree
// blocks m = 0..k; inside a block the exponent tuples run in descending
// lexicographic order, e.g. in 2D: 1, x, y, x^2, xy, y^2, ...
type ScaledMonomial struct {
	dim       element.Dimensionality
	bar       r3.Vec
	scale     [3]float64 // 2 / box extent
	degree    int
	exponents [][3]int
}

var _ CellBasis = (*ScaledMonomial)(nil)

// NewScaledMonomial anchors a degree k basis at bar with bounding box extents box
func NewScaledMonomial(dim element.Dimensionality, bar, box r3.Vec, degree int) (*ScaledMonomial, error) {
	if !dim.Valid() {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}
	if degree < 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDegree, degree)
	}
	b := &ScaledMonomial{
		dim:       dim,
		bar:       bar,
		degree:    degree,
		exponents: Exponents(dim.Int(), degree),
	}
	for i := 0; i < dim.Int(); i++ {
		h := element.Component(box, i)
		if !(h > 0) {
			return nil, fmt.Errorf("%w: zero extent along axis %d", ErrDegenerateElement, i)
		}
		b.scale[i] = 2 / h
	}
	return b, nil
}

// Exponents lists the exponent tuples of the graded monomials of degree <= k
// in d variables, in basis order
func Exponents(d, k int) (exps [][3]int) {
	exps = make([][3]int, 0, ScalarBasisSize(k, d))
	for m := 0; m <= k; m++ {
		switch d {
		case 1:
			exps = append(exps, [3]int{m, 0, 0})
		case 2:
			for a := m; a >= 0; a-- {
				exps = append(exps, [3]int{a, m - a, 0})
			}
		case 3:
			// x exponent descending, then y: local unknowns depend on this order
			for a := m; a >= 0; a-- {
				for b := m - a; b >= 0; b-- {
					exps = append(exps, [3]int{a, b, m - a - b})
				}
			}
		}
	}
	return
}

func (b *ScaledMonomial) Size() int                          { return len(b.exponents) }
func (b *ScaledMonomial) Degree() int                        { return b.degree }
func (b *ScaledMonomial) Dimensions() element.Dimensionality { return b.dim }

// Anchor returns the barycenter the basis is centered on
func (b *ScaledMonomial) Anchor() r3.Vec { return b.bar }

func (b *ScaledMonomial) local(pt r3.Vec) (x [3]float64) {
	d := r3.Sub(pt, b.bar)
	for i := 0; i < b.dim.Int(); i++ {
		x[i] = element.Component(d, i) * b.scale[i]
	}
	return
}

func (b *ScaledMonomial) EvalFunctions(pt r3.Vec) []float64 {
	x := b.local(pt)
	ret := make([]float64, len(b.exponents))
	for n, e := range b.exponents {
		ret[n] = ipow(x[0], e[0]) * ipow(x[1], e[1]) * ipow(x[2], e[2])
	}
	return ret
}

func (b *ScaledMonomial) EvalGradients(pt r3.Vec) *mat.Dense {
	x := b.local(pt)
	d := b.dim.Int()
	ret := mat.NewDense(len(b.exponents), d, nil)
	for n, e := range b.exponents {
		var p, dp [3]float64
		for i := 0; i < d; i++ {
			p[i] = ipow(x[i], e[i])
			if e[i] > 0 {
				dp[i] = float64(e[i]) * b.scale[i] * ipow(x[i], e[i]-1)
			}
		}
		switch d {
		case 1:
			ret.Set(n, 0, dp[0])
		case 2:
			ret.Set(n, 0, dp[0]*p[1])
			ret.Set(n, 1, p[0]*dp[1])
		case 3:
			ret.Set(n, 0, dp[0]*p[1]*p[2])
			ret.Set(n, 1, p[0]*dp[1]*p[2])
			ret.Set(n, 2, p[0]*p[1]*dp[2])
		}
	}
	return ret
}
