package assembler

import (
	"fmt"

	"github.com/notargets/HHOKernel/element"
)

// DofMap numbers the skeletal unknowns. Every kept face owns a contiguous
// block of FaceBlock unknowns, blocks follow the face order; eliminated
// faces map to -1.
type DofMap struct {
	FaceBlock  int
	NumDofs    int
	FaceToDof  []int // face -> first global unknown, -1 when eliminated
	DofToFace  []int // block -> face
	Eliminated int   // number of eliminated faces
}

// NewDofMap numbers the faces of msh that bcs does not eliminate
func NewDofMap(msh element.Mesh, bcs *BoundaryConditions, faceBlock int) (*DofMap, error) {
	if faceBlock <= 0 {
		return nil, fmt.Errorf("invalid face block size %d", faceBlock)
	}
	d := &DofMap{
		FaceBlock: faceBlock,
		FaceToDof: make([]int, msh.NumFaces()),
	}
	for f := range d.FaceToDof {
		if bcs.Eliminated(msh, f) {
			d.FaceToDof[f] = -1
			d.Eliminated++
			continue
		}
		d.FaceToDof[f] = d.NumDofs
		d.DofToFace = append(d.DofToFace, f)
		d.NumDofs += faceBlock
	}
	return d, nil
}

// LocalToGlobal returns the global index of every local face unknown of cell
// c, in local face order, -1 for unknowns of eliminated faces
func (d *DofMap) LocalToGlobal(msh element.Mesh, c int) []int {
	faces := msh.CellFaces(c)
	l2g := make([]int, 0, len(faces)*d.FaceBlock)
	for _, f := range faces {
		base := d.FaceToDof[f]
		for i := 0; i < d.FaceBlock; i++ {
			if base < 0 {
				l2g = append(l2g, -1)
				continue
			}
			l2g = append(l2g, base+i)
		}
	}
	return l2g
}

// Face returns the face owning global unknown dof and its index in the block
func (d *DofMap) Face(dof int) (f, i int) {
	return d.DofToFace[dof/d.FaceBlock], dof % d.FaceBlock
}
