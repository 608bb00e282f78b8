package partitions

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/HHOKernel/element"
	"gonum.org/v1/gonum/spatial/r3"
)

// PartitionBuilder constructs partitions from mesh connectivity
type PartitionBuilder struct {
	Mesh *MeshConnectivity

	TargetPartitionSize int     // desired elements per partition
	MaxImbalance        float64 // max/avg partition size accepted, zero: unchecked
	Strategy            PartitionStrategy
}

// MeshConnectivity provides the mesh topology needed for partitioning
type MeshConnectivity struct {
	NumElements int

	// EToE[k][lf] is the neighbor across local face lf of k, k itself on the
	// boundary; EToF[k][lf] is the local index of the shared face in the
	// neighbor
	EToE [][]int
	EToF [][]int

	Centroids []r3.Vec // used by SpaceFillingCurve
}

// ConnectivityFromMesh builds the cell adjacency of msh
func ConnectivityFromMesh(msh element.Mesh) *MeshConnectivity {
	K := msh.NumCells()
	mc := &MeshConnectivity{
		NumElements: K,
		EToE:        make([][]int, K),
		EToF:        make([][]int, K),
		Centroids:   make([]r3.Vec, K),
	}
	for k := 0; k < K; k++ {
		faces := msh.CellFaces(k)
		mc.EToE[k] = make([]int, len(faces))
		mc.EToF[k] = make([]int, len(faces))
		for lf, f := range faces {
			mc.EToE[k][lf], mc.EToF[k][lf] = k, lf
			cells := msh.FaceCells(f)
			nb := cells[0]
			if nb == k {
				nb = cells[1]
			}
			if nb < 0 {
				continue
			}
			for nlf, nf := range msh.CellFaces(nb) {
				if nf == f {
					mc.EToE[k][lf], mc.EToF[k][lf] = nb, nlf
					break
				}
			}
		}
		mc.Centroids[k] = element.Barycenter(msh.CellPoints(k))
	}
	return mc
}

// PartitionStrategy defines how elements are grouped
type PartitionStrategy int

const (
	BlockPartition    PartitionStrategy = iota // consecutive elements
	RoundRobin                                 // distribute cyclically
	GraphPartition                             // breadth-first growth over face neighbors
	SpaceFillingCurve                          // Morton order of the centroids
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "Block"
	case RoundRobin:
		return "RoundRobin"
	case GraphPartition:
		return "Graph"
	case SpaceFillingCurve:
		return "SpaceFillingCurve"
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// BuildPartitions creates a partition layout from mesh connectivity
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.Mesh == nil || pb.Mesh.NumElements < 1 {
		return nil, fmt.Errorf("no elements to partition")
	}
	if pb.TargetPartitionSize < 1 {
		return nil, fmt.Errorf("invalid target partition size %d", pb.TargetPartitionSize)
	}
	numPartitions := pb.calculateNumPartitions()

	eToP, err := pb.partitionElements(numPartitions)
	if err != nil {
		return nil, err
	}
	partitions := pb.createPartitions(eToP, numPartitions)

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      calculateKpartMax(partitions),
		TotalElements: pb.Mesh.NumElements,
		NumPartitions: numPartitions,
		EToP:          eToP,
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	if pb.MaxImbalance > 0 {
		if st := layout.PartitionStatistics(); st.Imbalance > pb.MaxImbalance {
			return nil, fmt.Errorf("partition imbalance %.3f exceeds %.3f", st.Imbalance, pb.MaxImbalance)
		}
	}
	return layout, nil
}

// calculateNumPartitions determines the partition count from the target size
func (pb *PartitionBuilder) calculateNumPartitions() int {
	numPartitions := int(math.Ceil(float64(pb.Mesh.NumElements) / float64(pb.TargetPartitionSize)))
	if numPartitions < 1 {
		numPartitions = 1
	}
	return numPartitions
}

// partitionSizes splits K elements into np sizes differing by at most one
func partitionSizes(K, np int) []int {
	sizes := make([]int, np)
	for p := range sizes {
		sizes[p] = K / np
		if p < K%np {
			sizes[p]++
		}
	}
	return sizes
}

// partitionElements assigns elements to partitions
func (pb *PartitionBuilder) partitionElements(numPartitions int) ([]int, error) {
	K := pb.Mesh.NumElements
	switch pb.Strategy {
	case BlockPartition:
		order := make([]int, K)
		for i := range order {
			order[i] = i
		}
		return assignInOrder(order, numPartitions), nil

	case RoundRobin:
		eToP := make([]int, K)
		for i := range eToP {
			eToP[i] = i % numPartitions
		}
		return eToP, nil

	case GraphPartition:
		if len(pb.Mesh.EToE) != K {
			return nil, fmt.Errorf("graph partitioning needs EToE for %d elements, have %d", K, len(pb.Mesh.EToE))
		}
		return pb.growPartitions(numPartitions), nil

	case SpaceFillingCurve:
		if len(pb.Mesh.Centroids) != K {
			return nil, fmt.Errorf("space filling curve needs %d centroids, have %d", K, len(pb.Mesh.Centroids))
		}
		return assignInOrder(mortonOrder(pb.Mesh.Centroids), numPartitions), nil
	}
	return nil, fmt.Errorf("unknown partition strategy %v", pb.Strategy)
}

// assignInOrder cuts an element ordering into consecutive balanced chunks
func assignInOrder(order []int, numPartitions int) []int {
	eToP := make([]int, len(order))
	i := 0
	for p, size := range partitionSizes(len(order), numPartitions) {
		for ; size > 0; size-- {
			eToP[order[i]] = p
			i++
		}
	}
	return eToP
}

// growPartitions fills each partition breadth first from the lowest
// unassigned element, reseeding when a connected region is exhausted
func (pb *PartitionBuilder) growPartitions(numPartitions int) []int {
	K := pb.Mesh.NumElements
	eToP := make([]int, K)
	for i := range eToP {
		eToP[i] = -1
	}
	seed := 0
	for p, size := range partitionSizes(K, numPartitions) {
		var queue []int
		for size > 0 {
			if len(queue) == 0 {
				for eToP[seed] >= 0 {
					seed++
				}
				eToP[seed] = p
				size--
				queue = append(queue, seed)
				continue
			}
			k := queue[0]
			queue = queue[1:]
			for _, nb := range pb.Mesh.EToE[k] {
				if size == 0 {
					break
				}
				if eToP[nb] >= 0 {
					continue
				}
				eToP[nb] = p
				size--
				queue = append(queue, nb)
			}
		}
	}
	return eToP
}

// mortonOrder sorts elements along a Z-order curve of their centroids
func mortonOrder(centroids []r3.Vec) []int {
	const bits = 10
	lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Scale(-1, lo)
	for _, c := range centroids {
		lo = r3.Vec{X: math.Min(lo.X, c.X), Y: math.Min(lo.Y, c.Y), Z: math.Min(lo.Z, c.Z)}
		hi = r3.Vec{X: math.Max(hi.X, c.X), Y: math.Max(hi.Y, c.Y), Z: math.Max(hi.Z, c.Z)}
	}
	quantize := func(v, a, b float64) uint64 {
		if b <= a {
			return 0
		}
		return uint64(math.Min((v-a)/(b-a)*(1<<bits), (1<<bits)-1))
	}
	codes := make([]uint64, len(centroids))
	for k, c := range centroids {
		q := [3]uint64{quantize(c.X, lo.X, hi.X), quantize(c.Y, lo.Y, hi.Y), quantize(c.Z, lo.Z, hi.Z)}
		var code uint64
		for b := 0; b < bits; b++ {
			for d := 0; d < 3; d++ {
				code |= ((q[d] >> b) & 1) << (3*b + d)
			}
		}
		codes[k] = code
	}
	order := make([]int, len(centroids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return codes[order[i]] < codes[order[j]] })
	return order
}

// createPartitions builds partition structures from element assignments
func (pb *PartitionBuilder) createPartitions(eToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{ID: i, Elements: make([]int, 0)}
	}
	for elem, part := range eToP {
		partitions[part].Elements = append(partitions[part].Elements, elem)
		partitions[part].NumElements++
	}
	return partitions
}

// calculateKpartMax finds maximum elements across all partitions
func calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		if p.NumElements > kpartMax {
			kpartMax = p.NumElements
		}
	}
	return kpartMax
}

// FaceCommunication describes a face whose two cells lie in different
// partitions. Both partitions scatter into the rows of such a face.
type FaceCommunication struct {
	LocalElement    int // element index within partition
	LocalFace       int // face index within element
	RemotePartition int
	RemoteElement   int // global element ID in remote partition
	RemoteFace      int // face index in remote element
}

// AnalyzeCutFaces lists, per partition, the faces shared with another
// partition
func AnalyzeCutFaces(layout *PartitionLayout, mesh *MeshConnectivity) map[int][]FaceCommunication {
	patterns := make(map[int][]FaceCommunication)
	for partID, partition := range layout.Partitions {
		var faceComm []FaceCommunication
		for localElemIdx, globalElem := range partition.Elements {
			for face, neighbor := range mesh.EToE[globalElem] {
				// boundary
				if neighbor == globalElem {
					continue
				}
				neighborPart := layout.GetPartition(neighbor)
				if neighborPart != partID && neighborPart >= 0 {
					faceComm = append(faceComm, FaceCommunication{
						LocalElement:    localElemIdx,
						LocalFace:       face,
						RemotePartition: neighborPart,
						RemoteElement:   neighbor,
						RemoteFace:      mesh.EToF[globalElem][face],
					})
				}
			}
		}
		patterns[partID] = faceComm
	}
	return patterns
}

// CountCutFaces returns the number of faces shared by two partitions
func CountCutFaces(layout *PartitionLayout, mesh *MeshConnectivity) (n int) {
	for _, fc := range AnalyzeCutFaces(layout, mesh) {
		n += len(fc)
	}
	return n / 2
}
