package basis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// MaxLegendreDegree is the highest degree of the closed-form Legendre table
const MaxLegendreDegree = 10

// Legendre is the L2-orthonormal Legendre basis on a segment face of a 2D
// mesh. The face coordinate ep runs over [-1,1] from the first vertex to the
// second.
type Legendre struct {
	bar, base r3.Vec
	h         float64
	degree    int
}

var _ Basis = (*Legendre)(nil)

// NewLegendre builds the basis on segment [a,b]
func NewLegendre(a, b r3.Vec, degree int) (*Legendre, error) {
	if degree < 0 || degree > MaxLegendreDegree {
		return nil, fmt.Errorf("%w: Legendre face basis of degree %d, max %d",
			ErrUnsupportedDegree, degree, MaxLegendreDegree)
	}
	h := r3.Norm(r3.Sub(b, a))
	if h == 0 {
		return nil, fmt.Errorf("%w: zero length face", ErrDegenerateElement)
	}
	bar := r3.Scale(0.5, r3.Add(a, b))
	return &Legendre{
		bar:    bar,
		base:   r3.Sub(bar, a),
		h:      h,
		degree: degree,
	}, nil
}

func (l *Legendre) Size() int   { return l.degree + 1 }
func (l *Legendre) Degree() int { return l.degree }

// Coordinate maps pt onto the reference segment [-1,1]
func (l *Legendre) Coordinate(pt r3.Vec) float64 {
	return 4 * r3.Dot(l.base, r3.Sub(pt, l.bar)) / (l.h * l.h)
}

func (l *Legendre) EvalFunctions(pt r3.Vec) []float64 {
	var pows [MaxLegendreDegree + 1]float64
	pows[0] = 1
	ep := l.Coordinate(pt)
	for i := 1; i <= l.degree; i++ {
		pows[i] = ep * pows[i-1]
	}
	scaling := math.Sqrt(2 / l.h)
	ret := make([]float64, l.degree+1)
	for i := range ret {
		ret[i] = legendreP(&pows, i) * math.Sqrt(float64(2*i+1)/2) * scaling
	}
	return ret
}

// legendreP evaluates P_n from the powers of its argument
func legendreP(p *[MaxLegendreDegree + 1]float64, n int) float64 {
	switch n {
	case 0:
		return 1
	case 1:
		return p[1]
	case 2:
		return (3*p[2] - 1) / 2
	case 3:
		return (5*p[3] - 3*p[1]) / 2
	case 4:
		return (35*p[4] - 30*p[2] + 3) / 8
	case 5:
		return (63*p[5] - 70*p[3] + 15*p[1]) / 8
	case 6:
		return (231*p[6] - 315*p[4] + 105*p[2] - 5) / 16
	case 7:
		return (429*p[7] - 693*p[5] + 315*p[3] - 35*p[1]) / 16
	case 8:
		return (6435*p[8] - 12012*p[6] + 6930*p[4] - 1260*p[2] + 35) / 128
	case 9:
		return (12155*p[9] - 25740*p[7] + 18018*p[5] - 4620*p[3] + 315*p[1]) / 128
	case 10:
		return (46189*p[10] - 109395*p[8] + 90090*p[6] - 30030*p[4] + 3465*p[2] - 63) / 256
	}
	return 0
}
