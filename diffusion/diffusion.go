package diffusion

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/cpmech/gosl/io"
	"github.com/notargets/HHOKernel/assembler"
	"github.com/notargets/HHOKernel/condensation"
	"github.com/notargets/HHOKernel/element"
	"github.com/notargets/HHOKernel/hho"
	"github.com/notargets/HHOKernel/partitions"
	"github.com/notargets/HHOKernel/quadrature"
	"github.com/notargets/HHOKernel/solver"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Problem is -lap u = Source with the given boundary conditions. Solution and
// Gradient are optional and only used to measure errors.
type Problem struct {
	Source   func(r3.Vec) float64
	Boundary *assembler.BoundaryConditions
	Solution func(r3.Vec) float64
	Gradient func(r3.Vec) r3.Vec
}

// Config controls the discretization and the parallel element loop
type Config struct {
	Degree     hho.DegreeInfo
	Quadrature quadrature.Provider // nil: quadrature.Standard

	NitschePenalty float64 // zero: hho.DefaultPenalty
	NitscheTheta   float64

	Workers       int // zero: runtime.NumCPU
	PartitionSize int // cells per partition, zero: balanced over Workers
	Strategy      partitions.PartitionStrategy

	// Solver for the global system; nil selects CG for symmetric systems and
	// dense LU otherwise
	Solver  solver.Solver
	Verbose bool
}

// NewConfig returns the equal order configuration of degree k with
// symmetric Nitsche and graph partitioning
func NewConfig(k int) Config {
	return Config{
		Degree:       hho.NewDegreeInfo(k),
		Quadrature:   quadrature.Standard{},
		NitscheTheta: 1,
		Strategy:     partitions.GraphPartition,
	}
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Result holds the local solutions [cell | faces] of every cell
type Result struct {
	Mesh     element.Mesh
	Local    []*mat.VecDense
	Systems  []*hho.LocalSystem
	Faces    []float64 // face unknowns of every face, eliminated faces included
	Layout   *partitions.PartitionLayout
	NumDofs  int
	NonZeros int

	// Error is set when the problem has an exact solution
	Error *Errors
}

// Solve discretizes the problem on msh, assembles the condensed global
// system in parallel, solves it and recovers the cell unknowns
func Solve(ctx context.Context, msh element.Mesh, prob Problem, cfg Config) (*Result, error) {
	if err := cfg.Degree.Validate(); err != nil {
		return nil, err
	}
	if cfg.Quadrature == nil {
		cfg.Quadrature = quadrature.Standard{}
	}
	bcs := prob.Boundary
	if bcs == nil {
		bcs = assembler.NewBoundaryConditions()
	}
	if !bcs.HasDirichlet(msh) {
		return nil, fmt.Errorf("no Dirichlet or Robin boundary: the pure Neumann problem is singular")
	}
	start := time.Now()

	builder := &hho.Builder{
		Mesh: msh,
		Config: hho.Config{
			Degree:         cfg.Degree,
			Quadrature:     cfg.Quadrature,
			NitschePenalty: cfg.NitschePenalty,
			NitscheTheta:   cfg.NitscheTheta,
		},
		Source: prob.Source,
		Weak:   bcs.Weak(msh),
	}
	asm, err := assembler.New(msh, bcs, assembler.Config{
		FaceDegree: cfg.Degree.Face,
		Quadrature: cfg.Quadrature,
		Verbose:    cfg.Verbose,
	})
	if err != nil {
		return nil, err
	}
	layout, err := partitionCells(msh, cfg)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Mesh:    msh,
		Local:   make([]*mat.VecDense, msh.NumCells()),
		Systems: make([]*hho.LocalSystem, msh.NumCells()),
		Layout:  layout,
		NumDofs: asm.Dofs.NumDofs,
	}
	err = forEachCell(ctx, layout, cfg.workers(), func(c int) error {
		ls, err := builder.Build(c)
		if err != nil {
			return err
		}
		blk, err := condensation.Reduce(ls.Matrix, ls.Vector, ls.CellSize)
		if err != nil {
			return err
		}
		res.Systems[c] = ls
		return asm.Assemble(c, blk)
	})
	if err != nil {
		return nil, err
	}
	if err = asm.Finalize(); err != nil {
		return nil, err
	}
	K, rhs, err := asm.System()
	if err != nil {
		return nil, err
	}
	res.NonZeros = K.NNZ()

	slv := cfg.Solver
	if slv == nil {
		slv = defaultSolver(bcs, cfg)
	}
	x, err := slv.Solve(K, rhs)
	if err != nil {
		return nil, err
	}

	err = forEachCell(ctx, layout, cfg.workers(), func(c int) error {
		uF, err := asm.TakeLocalData(c, x)
		if err != nil {
			return err
		}
		ls := res.Systems[c]
		u, err := condensation.Recover(ls.Matrix, ls.Vector, ls.CellSize, uF)
		if err != nil {
			return err
		}
		res.Local[c] = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Faces, err = asm.Expand(x); err != nil {
		return nil, err
	}
	if prob.Solution != nil {
		e, err := res.Errors(prob.Solution, prob.Gradient)
		if err != nil {
			return nil, err
		}
		res.Error = &e
	}
	if cfg.Verbose {
		io.Pf("diffusion: %d cells, %d partitions (%v), %d cut faces, %d unknowns, %d nonzeros, %v\n",
			msh.NumCells(), layout.NumPartitions, cfg.Strategy,
			partitions.CountCutFaces(layout, partitions.ConnectivityFromMesh(msh)),
			res.NumDofs, res.NonZeros, time.Since(start))
		if res.Error != nil {
			io.Pforan("diffusion: %v\n", res.Error)
		}
	}
	return res, nil
}

func defaultSolver(bcs *assembler.BoundaryConditions, cfg Config) solver.Solver {
	if bcs.Policy == assembler.Nitsche && cfg.NitscheTheta != 1 {
		return solver.DenseLU{}
	}
	return &solver.CG{Verbose: cfg.Verbose}
}

func partitionCells(msh element.Mesh, cfg Config) (*partitions.PartitionLayout, error) {
	size := cfg.PartitionSize
	if size <= 0 {
		size = int(math.Ceil(float64(msh.NumCells()) / float64(cfg.workers())))
	}
	pb := &partitions.PartitionBuilder{
		Mesh:                partitions.ConnectivityFromMesh(msh),
		TargetPartitionSize: size,
		Strategy:            cfg.Strategy,
	}
	return pb.BuildPartitions()
}

// forEachCell runs fn over every cell, one goroutine per partition and at
// most workers at a time. The first error cancels the remaining cells.
func forEachCell(ctx context.Context, layout *partitions.PartitionLayout, workers int, fn func(c int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range layout.Partitions {
		g.Go(func() error {
			for _, c := range p.Elements {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := fn(c); err != nil {
					return fmt.Errorf("cell %d: %w", c, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// Errors are the global discrete errors, square roots of the summed cell
// contributions
type Errors struct {
	Energy float64
	L2     float64
	H1     float64 // broken H1 seminorm of u - p_T u_h
	Linf   float64
}

func (e Errors) String() string {
	return fmt.Sprintf("energy %.4e  L2 %.4e  H1 %.4e  Linf %.4e", e.Energy, e.L2, e.H1, e.Linf)
}

// Errors measures the solution against u; grad may be nil
func (r *Result) Errors(u func(r3.Vec) float64, grad func(r3.Vec) r3.Vec) (Errors, error) {
	var sum hho.ElementError
	for c, ls := range r.Systems {
		e, err := hho.Errors(ls.Space, ls.Operator, ls.Energy, r.Local[c], u, grad)
		if err != nil {
			return Errors{}, fmt.Errorf("cell %d: %w", c, err)
		}
		sum.Add(e)
	}
	return Errors{
		Energy: math.Sqrt(math.Max(sum.Energy, 0)),
		L2:     math.Sqrt(sum.L2),
		H1:     math.Sqrt(sum.Gradient),
		Linf:   sum.Linf,
	}, nil
}

// Value evaluates the cell unknowns of the solution at x in cell c
func (r *Result) Value(c int, x r3.Vec) float64 {
	return hho.CellValue(r.Systems[c].Space, r.Local[c], x)
}

// Rate is the observed convergence order between two meshes of sizes h1, h2
func Rate(e1, e2, h1, h2 float64) float64 {
	return math.Log(e1/e2) / math.Log(h1/h2)
}
