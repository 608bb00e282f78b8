package partitions

import (
	"fmt"
	"math"
)

// Partition is a group of cells processed by one worker of the element loop
type Partition struct {
	ID int

	Elements    []int // global cell indices, ascending within the partition order
	NumElements int
}

// PartitionLayout is the decomposition of the mesh cells into partitions
type PartitionLayout struct {
	Partitions []Partition

	KpartMax      int // max(NumElements) across all partitions
	TotalElements int
	NumPartitions int

	// EToP[k] is the partition of cell k
	EToP []int
}

// GetPartition returns the partition containing element k, -1 when out of range
func (pl *PartitionLayout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[elementID]
}

// ValidateLayout checks every element belongs to exactly one partition and
// the sizes are consistent
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("%d partitions stored, NumPartitions %d", len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.EToP) != pl.TotalElements {
		return fmt.Errorf("EToP has %d entries, TotalElements %d", len(pl.EToP), pl.TotalElements)
	}
	seen := make([]bool, pl.TotalElements)
	actualMax, total := 0, 0
	for id, p := range pl.Partitions {
		if p.ID != id {
			return fmt.Errorf("partition at %d has ID %d", id, p.ID)
		}
		if p.NumElements != len(p.Elements) {
			return fmt.Errorf("partition %d: NumElements %d, %d elements listed", id, p.NumElements, len(p.Elements))
		}
		for _, k := range p.Elements {
			if k < 0 || k >= pl.TotalElements {
				return fmt.Errorf("partition %d: element %d out of range", id, k)
			}
			if seen[k] {
				return fmt.Errorf("element %d assigned twice", k)
			}
			seen[k] = true
			if pl.EToP[k] != id {
				return fmt.Errorf("element %d in partition %d, EToP says %d", k, id, pl.EToP[k])
			}
		}
		total += p.NumElements
		if p.NumElements > actualMax {
			actualMax = p.NumElements
		}
	}
	if total != pl.TotalElements {
		return fmt.Errorf("%d elements partitioned, TotalElements %d", total, pl.TotalElements)
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	return nil
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinElements:   math.MaxInt32,
		AvgElements:   float64(pl.TotalElements) / float64(pl.NumPartitions),
	}
	for _, p := range pl.Partitions {
		if p.NumElements < stats.MinElements {
			stats.MinElements = p.NumElements
		}
		if p.NumElements > stats.MaxElements {
			stats.MaxElements = p.NumElements
		}
	}
	stats.Imbalance = float64(stats.MaxElements) / stats.AvgElements
	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinElements   int
	MaxElements   int
	AvgElements   float64
	Imbalance     float64 // MaxElements / AvgElements
}
