package assembler

import (
	"fmt"
	"sort"

	"github.com/notargets/HHOKernel/element"
	"github.com/notargets/HHOKernel/hho"
	"gonum.org/v1/gonum/spatial/r3"
)

// ConditionKind is the type of a boundary condition
type ConditionKind uint8

const (
	Dirichlet ConditionKind = iota // u = g
	Neumann                        // grad u . n = g
	Robin                          // grad u . n + alpha u = g
)

func (k ConditionKind) String() string {
	switch k {
	case Dirichlet:
		return "Dirichlet"
	case Neumann:
		return "Neumann"
	case Robin:
		return "Robin"
	}
	return "unknown"
}

// DirichletPolicy selects how Dirichlet data enters the global system
type DirichletPolicy uint8

const (
	// Eliminate removes Dirichlet faces from the unknowns and lifts their
	// projected data into the right hand side
	Eliminate DirichletPolicy = iota
	// Nitsche keeps the Dirichlet face unknowns and imposes the data weakly
	// in the local operators
	Nitsche
)

// Condition is the data attached to one boundary id. A nil Value is zero.
type Condition struct {
	Kind  ConditionKind
	Value func(r3.Vec) float64
	Alpha float64 // Robin coefficient
}

func (c Condition) value(x r3.Vec) float64 {
	if c.Value == nil {
		return 0
	}
	return c.Value(x)
}

// BoundaryConditions maps boundary ids to conditions. Boundary faces whose id
// has no condition are homogeneous Neumann.
type BoundaryConditions struct {
	Policy DirichletPolicy
	byID   map[int]Condition
}

func NewBoundaryConditions() *BoundaryConditions {
	return &BoundaryConditions{byID: make(map[int]Condition)}
}

func (b *BoundaryConditions) set(id int, c Condition) *BoundaryConditions {
	if b.byID == nil {
		b.byID = make(map[int]Condition)
	}
	b.byID[id] = c
	return b
}

func (b *BoundaryConditions) AddDirichlet(id int, g func(r3.Vec) float64) *BoundaryConditions {
	return b.set(id, Condition{Kind: Dirichlet, Value: g})
}

func (b *BoundaryConditions) AddNeumann(id int, g func(r3.Vec) float64) *BoundaryConditions {
	return b.set(id, Condition{Kind: Neumann, Value: g})
}

func (b *BoundaryConditions) AddRobin(id int, alpha float64, g func(r3.Vec) float64) *BoundaryConditions {
	return b.set(id, Condition{Kind: Robin, Value: g, Alpha: alpha})
}

// WithPolicy sets the Dirichlet policy
func (b *BoundaryConditions) WithPolicy(p DirichletPolicy) *BoundaryConditions {
	b.Policy = p
	return b
}

// Lookup returns the condition of boundary id
func (b *BoundaryConditions) Lookup(id int) (Condition, bool) {
	if b == nil {
		return Condition{}, false
	}
	c, ok := b.byID[id]
	return c, ok
}

// FaceCondition returns the condition on face f, false for interior faces
// and untagged boundary faces
func (b *BoundaryConditions) FaceCondition(msh element.Mesh, f int) (Condition, bool) {
	if !msh.IsBoundary(f) {
		return Condition{}, false
	}
	return b.Lookup(msh.BoundaryID(f))
}

// Eliminated reports whether face f is removed from the global unknowns
func (b *BoundaryConditions) Eliminated(msh element.Mesh, f int) bool {
	c, ok := b.FaceCondition(msh, f)
	return ok && c.Kind == Dirichlet && b.Policy == Eliminate
}

// Weak returns the callback the local builder uses to impose Dirichlet data
// weakly; nil unless the policy is Nitsche
func (b *BoundaryConditions) Weak(msh element.Mesh) hho.WeakDirichlet {
	if b == nil || b.Policy != Nitsche {
		return nil
	}
	return func(f int) (func(r3.Vec) float64, bool) {
		c, ok := b.FaceCondition(msh, f)
		if !ok || c.Kind != Dirichlet {
			return nil, false
		}
		return c.value, true
	}
}

// Validate checks that every boundary face is tagged with a non-negative id
// and that Robin coefficients are non-negative. Ids with no registered
// condition are homogeneous Neumann.
func (b *BoundaryConditions) Validate(msh element.Mesh) error {
	ids := make([]int, 0, len(b.byID))
	for id := range b.byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if c := b.byID[id]; c.Kind == Robin && c.Alpha < 0 {
			return fmt.Errorf("boundary %d: negative Robin coefficient %g", id, c.Alpha)
		}
	}
	for f := 0; f < msh.NumFaces(); f++ {
		if msh.IsBoundary(f) && msh.BoundaryID(f) < 0 {
			return fmt.Errorf("boundary face %d has no boundary id", f)
		}
	}
	return nil
}

// HasDirichlet reports whether any boundary face of msh is Dirichlet. Without
// one the pure Neumann problem is singular.
func (b *BoundaryConditions) HasDirichlet(msh element.Mesh) bool {
	for f := 0; f < msh.NumFaces(); f++ {
		if c, ok := b.FaceCondition(msh, f); ok && (c.Kind == Dirichlet || (c.Kind == Robin && c.Alpha > 0)) {
			return true
		}
	}
	return false
}
