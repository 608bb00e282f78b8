package assembler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cpmech/gosl/io"
	"github.com/james-bowman/sparse"
	"github.com/notargets/HHOKernel/basis"
	"github.com/notargets/HHOKernel/condensation"
	"github.com/notargets/HHOKernel/element"
	"github.com/notargets/HHOKernel/hho"
	"github.com/notargets/HHOKernel/quadrature"
	"gonum.org/v1/gonum/mat"
)

// ErrAssemblyState is returned when an operation is not allowed in the
// current state of the assembler
var ErrAssemblyState = errors.New("invalid assembly state")

// State is the lifecycle of an Assembler:
// Empty -> Assembling -> Finalized -> Consumed
type State uint8

const (
	Empty State = iota
	Assembling
	Finalized
	Consumed
)

func (s State) String() string {
	switch s {
	case Empty:
		return "Empty"
	case Assembling:
		return "Assembling"
	case Finalized:
		return "Finalized"
	case Consumed:
		return "Consumed"
	}
	return "unknown"
}

// Config sizes the face blocks and selects the face quadrature
type Config struct {
	FaceDegree int
	Quadrature quadrature.Provider // nil: quadrature.Standard
	Verbose    bool
}

// Assembler owns the global skeletal system. Assemble may be called from
// several goroutines; every other method expects a single caller.
type Assembler struct {
	Dofs *DofMap

	mu    sync.Mutex
	msh   element.Mesh
	bcs   *BoundaryConditions
	cfg   Config
	state State

	lhs *sparse.DOK
	rhs *mat.VecDense
	csr *sparse.CSR

	// projected Dirichlet data per eliminated face
	dirichlet map[int][]float64
}

// New numbers the unknowns and projects the Dirichlet data of eliminated
// faces onto the face bases
func New(msh element.Mesh, bcs *BoundaryConditions, cfg Config) (*Assembler, error) {
	if bcs == nil {
		bcs = NewBoundaryConditions()
	}
	if cfg.Quadrature == nil {
		cfg.Quadrature = quadrature.Standard{}
	}
	if err := bcs.Validate(msh); err != nil {
		return nil, err
	}
	fbs := basis.ScalarBasisSize(cfg.FaceDegree, msh.Dimensions().Int()-1)
	dofs, err := NewDofMap(msh, bcs, fbs)
	if err != nil {
		return nil, err
	}
	if dofs.NumDofs == 0 {
		return nil, fmt.Errorf("no face unknowns: all %d faces eliminated", msh.NumFaces())
	}
	a := &Assembler{
		Dofs:      dofs,
		msh:       msh,
		bcs:       bcs,
		cfg:       cfg,
		lhs:       sparse.NewDOK(dofs.NumDofs, dofs.NumDofs),
		rhs:       mat.NewVecDense(dofs.NumDofs, nil),
		dirichlet: make(map[int][]float64),
	}
	for f, dof := range dofs.FaceToDof {
		if dof >= 0 {
			continue
		}
		c, _ := bcs.FaceCondition(msh, f)
		vals, err := a.projectFace(f, c)
		if err != nil {
			return nil, fmt.Errorf("Dirichlet data on face %d: %w", f, err)
		}
		a.dirichlet[f] = vals
	}
	return a, nil
}

func (a *Assembler) faceBasis(f int) (basis.Basis, []quadrature.Point, error) {
	b, err := basis.NewFaceBasis(a.msh, f, a.cfg.FaceDegree)
	if err != nil {
		return nil, nil, err
	}
	pts, err := a.cfg.Quadrature.Face(a.msh, f, 2*a.cfg.FaceDegree+2)
	if err != nil {
		return nil, nil, err
	}
	return b, pts, nil
}

func (a *Assembler) projectFace(f int, c Condition) ([]float64, error) {
	b, pts, err := a.faceBasis(f)
	if err != nil {
		return nil, err
	}
	v, err := hho.Project(b, pts, c.value)
	if err != nil {
		return nil, err
	}
	return v.RawVector().Data, nil
}

// State returns the current lifecycle state
func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Assemble scatters the condensed block of cell c. Columns of eliminated
// Dirichlet faces are moved to the right hand side with the projected data.
func (a *Assembler) Assemble(c int, blk *condensation.Block) error {
	l2g := a.Dofs.LocalToGlobal(a.msh, c)
	n, m := blk.Matrix.Dims()
	if n != len(l2g) || m != len(l2g) || blk.Vector.Len() != len(l2g) {
		return fmt.Errorf("cell %d: block is %dx%d, cell has %d face unknowns", c, n, m, len(l2g))
	}
	// values of the eliminated unknowns, zero elsewhere
	lifted := make([]float64, len(l2g))
	hasLift := false
	fbs := a.Dofs.FaceBlock
	for lf, f := range a.msh.CellFaces(c) {
		if vals, ok := a.dirichlet[f]; ok {
			copy(lifted[lf*fbs:], vals)
			hasLift = true
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Empty && a.state != Assembling {
		return fmt.Errorf("%w: assemble cell %d in state %v", ErrAssemblyState, c, a.state)
	}
	a.state = Assembling
	for i, gi := range l2g {
		if gi < 0 {
			continue
		}
		for j, gj := range l2g {
			v := blk.Matrix.At(i, j)
			if v == 0 {
				continue
			}
			if gj < 0 {
				if hasLift {
					a.rhs.SetVec(gi, a.rhs.AtVec(gi)-v*lifted[j])
				}
				continue
			}
			a.lhs.Set(gi, gj, a.lhs.At(gi, gj)+v)
		}
		a.rhs.SetVec(gi, a.rhs.AtVec(gi)+blk.Vector.AtVec(i))
	}
	return nil
}

// Finalize adds the Neumann and Robin face terms and compresses the matrix.
// It runs once, after at least one Assemble.
func (a *Assembler) Finalize() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Assembling {
		return fmt.Errorf("%w: finalize in state %v", ErrAssemblyState, a.state)
	}
	for f, dof := range a.Dofs.FaceToDof {
		if dof < 0 {
			continue
		}
		c, ok := a.bcs.FaceCondition(a.msh, f)
		if !ok || (c.Kind != Neumann && c.Kind != Robin) {
			continue
		}
		if err := a.addNaturalCondition(f, dof, c); err != nil {
			return fmt.Errorf("face %d: %w", f, err)
		}
	}
	a.csr = a.lhs.ToCSR()
	a.lhs = nil
	a.state = Finalized
	if a.cfg.Verbose {
		io.Pforan("assembler: %d unknowns (%d faces eliminated), %d nonzeros\n",
			a.Dofs.NumDofs, a.Dofs.Eliminated, a.csr.NNZ())
	}
	return nil
}

func (a *Assembler) addNaturalCondition(f, dof int, c Condition) error {
	b, pts, err := a.faceBasis(f)
	if err != nil {
		return err
	}
	for _, q := range pts {
		w := b.EvalFunctions(q.X)
		g := c.value(q.X)
		for i, wi := range w {
			a.rhs.SetVec(dof+i, a.rhs.AtVec(dof+i)+q.W*g*wi)
			if c.Kind != Robin {
				continue
			}
			for j, wj := range w {
				a.lhs.Set(dof+i, dof+j, a.lhs.At(dof+i, dof+j)+q.W*c.Alpha*wi*wj)
			}
		}
	}
	return nil
}

// System returns the finalized matrix and right hand side. They must not be
// modified.
func (a *Assembler) System() (*sparse.CSR, *mat.VecDense, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Finalized && a.state != Consumed {
		return nil, nil, fmt.Errorf("%w: system requested in state %v", ErrAssemblyState, a.state)
	}
	return a.csr, a.rhs, nil
}

// TakeLocalData extracts the face unknowns of cell c from the global solution,
// filling eliminated faces with their Dirichlet data
func (a *Assembler) TakeLocalData(c int, sol mat.Vector) (*mat.VecDense, error) {
	a.mu.Lock()
	if a.state != Finalized && a.state != Consumed {
		defer a.mu.Unlock()
		return nil, fmt.Errorf("%w: local data of cell %d requested in state %v", ErrAssemblyState, c, a.state)
	}
	a.state = Consumed
	a.mu.Unlock()

	if sol.Len() != a.Dofs.NumDofs {
		return nil, fmt.Errorf("solution length %d, expected %d", sol.Len(), a.Dofs.NumDofs)
	}
	fbs := a.Dofs.FaceBlock
	faces := a.msh.CellFaces(c)
	u := mat.NewVecDense(len(faces)*fbs, nil)
	for lf, f := range faces {
		a.faceValues(f, sol, u.RawVector().Data[lf*fbs:(lf+1)*fbs])
	}
	return u, nil
}

func (a *Assembler) faceValues(f int, sol mat.Vector, dst []float64) {
	if dof := a.Dofs.FaceToDof[f]; dof >= 0 {
		for i := range dst {
			dst[i] = sol.AtVec(dof + i)
		}
		return
	}
	copy(dst, a.dirichlet[f])
}

// Expand returns the face unknowns of every face, eliminated faces included,
// as one vector of NumFaces x FaceBlock entries
func (a *Assembler) Expand(sol mat.Vector) ([]float64, error) {
	if st := a.State(); st != Finalized && st != Consumed {
		return nil, fmt.Errorf("%w: expand in state %v", ErrAssemblyState, st)
	}
	if sol.Len() != a.Dofs.NumDofs {
		return nil, fmt.Errorf("solution length %d, expected %d", sol.Len(), a.Dofs.NumDofs)
	}
	fbs := a.Dofs.FaceBlock
	full := make([]float64, a.msh.NumFaces()*fbs)
	for f := 0; f < a.msh.NumFaces(); f++ {
		a.faceValues(f, sol, full[f*fbs:(f+1)*fbs])
	}
	return full, nil
}
