package diffusion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/notargets/HHOKernel/assembler"
	"github.com/notargets/HHOKernel/element"
	"github.com/notargets/HHOKernel/mesh"
	"github.com/notargets/HHOKernel/partitions"
	"github.com/notargets/HHOKernel/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// outward normal of the unit box side with boundary id
func sideNormal(dim element.Dimensionality, id int) r3.Vec {
	switch dim {
	case element.D1:
		return r3.Vec{X: float64(2*id - 1)}
	case element.D2:
		return [4]r3.Vec{{Y: -1}, {X: 1}, {Y: 1}, {X: -1}}[id]
	}
	return [6]r3.Vec{{X: -1}, {X: 1}, {Y: -1}, {Y: 1}, {Z: -1}, {Z: 1}}[id]
}

// quadratic with a nonzero Laplacian in every dimension
type exact struct{}

func (exact) u(x r3.Vec) float64 {
	return 1 + x.X + 2*x.Y - x.Z + 0.5*x.X*x.X - x.X*x.Y + 0.25*x.Z*x.Z + x.Y*x.Z
}

func (exact) grad(x r3.Vec) r3.Vec {
	return r3.Vec{X: 1 + x.X - x.Y, Y: 2 - x.X + x.Z, Z: -1 + 0.5*x.Z + x.Y}
}

// -lap u in dimension dim; the z terms vanish in 1D and 2D
func (exact) source(dim element.Dimensionality) func(r3.Vec) float64 {
	lap := 1.
	if dim == element.D3 {
		lap += 0.5
	}
	return func(r3.Vec) float64 { return -lap }
}

type boundarySetup func(dim element.Dimensionality, numSides int) *assembler.BoundaryConditions

func allDirichlet(policy assembler.DirichletPolicy) boundarySetup {
	return func(dim element.Dimensionality, numSides int) *assembler.BoundaryConditions {
		bcs := assembler.NewBoundaryConditions().WithPolicy(policy)
		for id := 0; id < numSides; id++ {
			bcs.AddDirichlet(id, exact{}.u)
		}
		return bcs
	}
}

// Dirichlet on side 0, Neumann on side 1, Robin on the others
func mixed(dim element.Dimensionality, numSides int) *assembler.BoundaryConditions {
	bcs := assembler.NewBoundaryConditions().AddDirichlet(0, exact{}.u)
	flux := func(id int) func(r3.Vec) float64 {
		n := sideNormal(dim, id)
		return func(x r3.Vec) float64 { return r3.Dot(exact{}.grad(x), n) }
	}
	bcs.AddNeumann(1, flux(1))
	for id := 2; id < numSides; id++ {
		g, alpha := flux(id), 0.5+float64(id)
		bcs.AddRobin(id, alpha, func(x r3.Vec) float64 { return g(x) + alpha*exact{}.u(x) })
	}
	return bcs
}

type testMesh struct {
	name  string
	build func() (*mesh.Mesh, error)
	sides int
}

func testMeshes() []testMesh {
	return []testMesh{
		{"1D", func() (*mesh.Mesh, error) { return mesh.NewUniform1D(0, 1, 5) }, 2},
		{"quad", func() (*mesh.Mesh, error) { return mesh.NewQuadrilateral2D(3, 3) }, 4},
		{"distorted quad", func() (*mesh.Mesh, error) {
			m, err := mesh.NewQuadrilateral2D(4, 4)
			if err != nil {
				return nil, err
			}
			m.Transform(func(p r3.Vec) r3.Vec {
				s := 0.08 * math.Sin(math.Pi*p.X) * math.Sin(math.Pi*p.Y)
				return r3.Vec{X: p.X + s, Y: p.Y - s}
			})
			return m, nil
		}, 4},
		{"triangle", func() (*mesh.Mesh, error) { return mesh.NewTriangular2D(3, 2) }, 4},
		{"hex", func() (*mesh.Mesh, error) { return mesh.NewHexahedral3D(2) }, 6},
		{"tet", func() (*mesh.Mesh, error) { return mesh.NewTetrahedral3D(1) }, 6},
	}
}

// For u in P^{k+1} the discrete solution is the interpolant of u
func TestPolynomialExactness(t *testing.T) {
	chk.PrintTitle("PolynomialExactness")
	setups := map[string]boundarySetup{
		"eliminated Dirichlet": allDirichlet(assembler.Eliminate),
		"Nitsche Dirichlet":    allDirichlet(assembler.Nitsche),
		"mixed":                mixed,
	}
	for _, tm := range testMeshes() {
		for name, setup := range setups {
			for _, k := range []int{1, 2} {
				if k == 2 && (tm.name == "hex" || tm.name == "tet") {
					continue
				}
				t.Run(fmt.Sprintf("%s/%s/k=%d", tm.name, name, k), func(t *testing.T) {
					msh, err := tm.build()
					require.NoError(t, err)
					prob := Problem{
						Source:   exact{}.source(msh.Dim),
						Boundary: setup(msh.Dim, tm.sides),
						Solution: exact{}.u,
						Gradient: exact{}.grad,
					}
					cfg := NewConfig(k)
					cfg.Workers = 3
					cfg.PartitionSize = 2
					res, err := Solve(context.Background(), msh, prob, cfg)
					require.NoError(t, err)
					require.NotNil(t, res.Error)
					assert.Less(t, res.Error.Energy, 1.e-7, "%v", res.Error)
					assert.Less(t, res.Error.L2, 1.e-8, "%v", res.Error)
					assert.Less(t, res.Error.H1, 1.e-7, "%v", res.Error)
					assert.Len(t, res.Faces, msh.NumFaces()*res.Systems[0].Space.FaceSize())
				})
			}
		}
	}
}

func TestSkewNitsche(t *testing.T) {
	msh, err := mesh.NewQuadrilateral2D(3, 3)
	require.NoError(t, err)
	cfg := NewConfig(1)
	cfg.NitscheTheta = -1
	cfg.Strategy = partitions.SpaceFillingCurve
	prob := Problem{
		Source:   exact{}.source(msh.Dim),
		Boundary: allDirichlet(assembler.Nitsche)(msh.Dim, 4),
		Solution: exact{}.u,
	}
	res, err := Solve(context.Background(), msh, prob, cfg)
	require.NoError(t, err)
	assert.Less(t, res.Error.Energy, 1.e-8)
	assert.Equal(t, 0., res.Error.H1, "no gradient given")
}

func sinProblem(dim element.Dimensionality, sides int) Problem {
	d := float64(dim.Int())
	u := func(x r3.Vec) float64 {
		v := math.Sin(math.Pi * x.X)
		if dim > element.D1 {
			v *= math.Sin(math.Pi * x.Y)
		}
		if dim > element.D2 {
			v *= math.Sin(math.Pi * x.Z)
		}
		return v
	}
	grad := func(x r3.Vec) r3.Vec {
		s := [3]float64{math.Sin(math.Pi * x.X), 1, 1}
		c := [3]float64{math.Cos(math.Pi * x.X), 0, 0}
		if dim > element.D1 {
			s[1], c[1] = math.Sin(math.Pi*x.Y), math.Cos(math.Pi*x.Y)
		}
		if dim > element.D2 {
			s[2], c[2] = math.Sin(math.Pi*x.Z), math.Cos(math.Pi*x.Z)
		}
		return r3.Scale(math.Pi, r3.Vec{X: c[0] * s[1] * s[2], Y: s[0] * c[1] * s[2], Z: s[0] * s[1] * c[2]})
	}
	bcs := assembler.NewBoundaryConditions()
	for id := 0; id < sides; id++ {
		bcs.AddDirichlet(id, nil)
	}
	return Problem{
		Source:   func(x r3.Vec) float64 { return d * math.Pi * math.Pi * u(x) },
		Boundary: bcs,
		Solution: u,
		Gradient: grad,
	}
}

func TestConvergence(t *testing.T) {
	chk.PrintTitle("Convergence")
	t.Run("quad k=1", func(t *testing.T) {
		var e [2]Errors
		var h [2]float64
		for i, n := range []int{4, 8} {
			msh, err := mesh.NewQuadrilateral2D(n, n)
			require.NoError(t, err)
			res, err := Solve(context.Background(), msh, sinProblem(element.D2, 4), NewConfig(1))
			require.NoError(t, err)
			e[i], h[i] = *res.Error, msh.MaxDiameter()
		}
		assert.Greater(t, Rate(e[0].Energy, e[1].Energy, h[0], h[1]), 1.7)
		assert.Greater(t, Rate(e[0].L2, e[1].L2, h[0], h[1]), 2.5)
	})
}

// Unit cube of tetrahedra with u = sin(pi x) sin(pi y) sin(pi z): the broken
// H1 error converges at order k+1 and the max error stays of the size of it
func TestTetrahedralCube(t *testing.T) {
	chk.PrintTitle("TetrahedralCube")
	for _, k := range []int{0, 1} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			var e [2]Errors
			var h [2]float64
			for i, n := range []int{2, 4} {
				msh, err := mesh.NewTetrahedral3D(n)
				require.NoError(t, err)
				cfg := NewConfig(k)
				cfg.Solver = solver.DenseCholesky{}
				res, err := Solve(context.Background(), msh, sinProblem(element.D3, 6), cfg)
				require.NoError(t, err)
				e[i], h[i] = *res.Error, msh.MaxDiameter()
				require.Greater(t, e[i].H1, 0.)
				assert.Lessf(t, e[i].Linf/e[i].H1, 2., "n=%d %v", n, e[i])
			}
			rate := Rate(e[0].H1, e[1].H1, h[0], h[1])
			assert.GreaterOrEqualf(t, rate, float64(k)+0.7, "%v -> %v", e[0], e[1])
		})
	}
}

func TestSolveErrors(t *testing.T) {
	msh, err := mesh.NewQuadrilateral2D(2, 2)
	require.NoError(t, err)
	prob := sinProblem(element.D2, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Solve(ctx, msh, prob, NewConfig(1))
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = Solve(context.Background(), msh, Problem{Source: prob.Source}, NewConfig(1))
	assert.Error(t, err, "pure Neumann")

	cfg := NewConfig(1)
	cfg.Degree.Cell = 3
	_, err = Solve(context.Background(), msh, prob, cfg)
	assert.Error(t, err)

	cfg = NewConfig(1)
	cfg.Solver = &solver.CG{MaxIterations: 1}
	_, err = Solve(context.Background(), msh, prob, cfg)
	assert.True(t, errors.Is(err, solver.ErrSolverFailure))
}

func TestRate(t *testing.T) {
	chk.Float64(t, "rate", 1.e-14, Rate(4, 1, 0.2, 0.1), 2)
}
