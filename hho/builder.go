package hho

import (
	"fmt"

	"github.com/notargets/HHOKernel/element"
	"github.com/notargets/HHOKernel/quadrature"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Config selects degrees, quadrature and the weak Dirichlet parameters
type Config struct {
	Degree     DegreeInfo
	Quadrature quadrature.Provider // nil: quadrature.Standard
	// NitschePenalty is eta; zero selects DefaultPenalty(Degree.Face)
	NitschePenalty float64
	// NitscheTheta is 1 for the symmetric variant, 0 incomplete, -1 skew
	NitscheTheta float64
}

// NewConfig returns the equal order configuration with symmetric Nitsche
func NewConfig(k int) Config {
	return Config{
		Degree:       NewDegreeInfo(k),
		Quadrature:   quadrature.Standard{},
		NitscheTheta: 1,
	}
}

func (c Config) penalty() float64 {
	if c.NitschePenalty == 0 {
		return DefaultPenalty(c.Degree.Face)
	}
	return c.NitschePenalty
}

// WeakDirichlet reports whether boundary face f carries weakly imposed
// Dirichlet data, and the data
type WeakDirichlet func(f int) (g func(r3.Vec) float64, ok bool)

// Builder produces the uncondensed local systems of the scalar Laplacian.
// Build holds no state between calls and may run concurrently.
type Builder struct {
	Mesh   element.Mesh
	Config Config
	Source func(r3.Vec) float64
	Weak   WeakDirichlet
}

// LocalSystem is the local problem of one cell, unknowns [cell | faces]
type LocalSystem struct {
	Space    *LocalSpace
	Operator *LocalOperator
	Energy   *mat.Dense // A + S
	Matrix   *mat.Dense // A + S with the weak Dirichlet terms
	Vector   *mat.VecDense
	CellSize int
}

func (b *Builder) Build(c int) (*LocalSystem, error) {
	s, err := NewLocalSpace(b.Mesh, c, b.Config.Degree, b.Config.Quadrature)
	if err != nil {
		return nil, err
	}
	op, err := Reconstruction(s)
	if err != nil {
		return nil, err
	}
	S, err := Stabilization(s, op)
	if err != nil {
		return nil, err
	}
	energy := mat.NewDense(s.NumDofs(), s.NumDofs(), nil)
	energy.Add(op.Laplacian, S)
	rhs, err := SourceTerm(s, b.Source)
	if err != nil {
		return nil, err
	}
	lhs := mat.DenseCopyOf(energy)
	if b.Weak != nil {
		for fi, f := range s.Faces {
			if !b.Mesh.IsBoundary(f) {
				continue
			}
			g, ok := b.Weak(f)
			if !ok {
				continue
			}
			nt, err := Nitsche(s, op, fi, g, b.Config.penalty(), b.Config.NitscheTheta)
			if err != nil {
				return nil, fmt.Errorf("cell %d face %d: %w", c, f, err)
			}
			lhs.Sub(lhs, nt.Consistency)
			lhs.Sub(lhs, nt.Penalty)
			rhs.SubVec(rhs, nt.Rhs)
		}
	}
	return &LocalSystem{
		Space:    s,
		Operator: op,
		Energy:   energy,
		Matrix:   lhs,
		Vector:   rhs,
		CellSize: s.CellSize(),
	}, nil
}
