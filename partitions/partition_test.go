package partitions

import (
	"testing"

	"github.com/notargets/HHOKernel/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectivityFromMesh(t *testing.T) {
	msh, err := mesh.NewQuadrilateral2D(3, 2)
	require.NoError(t, err)
	mc := ConnectivityFromMesh(msh)
	require.Equal(t, 6, mc.NumElements)

	boundary := 0
	for k := 0; k < mc.NumElements; k++ {
		for lf, nb := range mc.EToE[k] {
			if nb == k {
				boundary++
				assert.Equal(t, lf, mc.EToF[k][lf])
				continue
			}
			// the neighbor points back through the same face
			nlf := mc.EToF[k][lf]
			assert.Equal(t, k, mc.EToE[nb][nlf])
			assert.Equal(t, lf, mc.EToF[nb][nlf])
			assert.Equal(t, msh.CellFaces(k)[lf], msh.CellFaces(nb)[nlf])
		}
	}
	assert.Equal(t, msh.NumBoundaryFaces(), boundary)
}

func TestBuildPartitions(t *testing.T) {
	msh, err := mesh.NewTriangular2D(5, 4)
	require.NoError(t, err)
	mc := ConnectivityFromMesh(msh)
	K := mc.NumElements

	for _, strategy := range []PartitionStrategy{BlockPartition, RoundRobin, GraphPartition, SpaceFillingCurve} {
		for _, target := range []int{1, 7, 16, K, 2 * K} {
			pb := &PartitionBuilder{Mesh: mc, TargetPartitionSize: target, Strategy: strategy}
			layout, err := pb.BuildPartitions()
			require.NoError(t, err, "%v target %d", strategy, target)
			require.NoError(t, layout.ValidateLayout())

			np := (K + target - 1) / target
			assert.Equal(t, np, layout.NumPartitions)
			st := layout.PartitionStatistics()
			assert.LessOrEqual(t, st.MaxElements-st.MinElements, 1, "%v target %d", strategy, target)
			assert.Equal(t, st.MaxElements, layout.KpartMax)
			for k := 0; k < K; k++ {
				p := layout.GetPartition(k)
				assert.Contains(t, layout.Partitions[p].Elements, k)
			}
		}
	}
}

func TestGraphPartitionCutsFewerFaces(t *testing.T) {
	msh, err := mesh.NewHexahedral3D(4)
	require.NoError(t, err)
	mc := ConnectivityFromMesh(msh)

	cuts := make(map[PartitionStrategy]int)
	for _, strategy := range []PartitionStrategy{RoundRobin, GraphPartition, SpaceFillingCurve} {
		pb := &PartitionBuilder{Mesh: mc, TargetPartitionSize: 8, Strategy: strategy}
		layout, err := pb.BuildPartitions()
		require.NoError(t, err)
		cuts[strategy] = CountCutFaces(layout, mc)
	}
	assert.Less(t, cuts[GraphPartition], cuts[RoundRobin])
	// the Morton order splits the 4x4x4 grid into 2x2x2 octants, cut along
	// three planes of 16 faces
	assert.Equal(t, 48, cuts[SpaceFillingCurve])
}

func TestAnalyzeCutFaces(t *testing.T) {
	msh, err := mesh.NewUniform1D(0, 1, 4)
	require.NoError(t, err)
	mc := ConnectivityFromMesh(msh)
	pb := &PartitionBuilder{Mesh: mc, TargetPartitionSize: 2, Strategy: BlockPartition}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, layout.Partitions[0].Elements)
	assert.Equal(t, []int{2, 3}, layout.Partitions[1].Elements)

	patterns := AnalyzeCutFaces(layout, mc)
	require.Len(t, patterns[0], 1)
	require.Len(t, patterns[1], 1)
	fc := patterns[0][0]
	assert.Equal(t, 1, fc.LocalElement)
	assert.Equal(t, 1, fc.RemotePartition)
	assert.Equal(t, 2, fc.RemoteElement)
	assert.Equal(t, 1, CountCutFaces(layout, mc))
}

func TestPartitionErrors(t *testing.T) {
	msh, err := mesh.NewUniform1D(0, 1, 4)
	require.NoError(t, err)
	mc := ConnectivityFromMesh(msh)

	_, err = (&PartitionBuilder{Mesh: mc}).BuildPartitions()
	assert.Error(t, err)
	_, err = (&PartitionBuilder{TargetPartitionSize: 1}).BuildPartitions()
	assert.Error(t, err)
	_, err = (&PartitionBuilder{Mesh: mc, TargetPartitionSize: 1, Strategy: PartitionStrategy(9)}).BuildPartitions()
	assert.Error(t, err)
	_, err = (&PartitionBuilder{Mesh: &MeshConnectivity{NumElements: 3}, TargetPartitionSize: 1, Strategy: GraphPartition}).BuildPartitions()
	assert.Error(t, err)

	layout, err := (&PartitionBuilder{Mesh: mc, TargetPartitionSize: 3}).BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, -1, layout.GetPartition(4))
	layout.EToP[0] = 1
	assert.Error(t, layout.ValidateLayout())
}
