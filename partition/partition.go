package partition

import (
	"fmt"

	"github.com/notargets/parbdy/mesh"
	"github.com/notargets/parbdy/utils"
)

// Config describes how a global mesh is distributed
type Config struct {
	NumRanks      int
	GroupsPerRank int
	Method        string  // "metis" or "block"
	Objective     string  // METIS objective, "cut" or "vol"
	Imbalance     float64 // Allowed load imbalance (0.05 = 5%)
	FreezeSurface bool    // Boundary entities become Required|NoSurf
	MemGlobalMax  int64   // Memory ceiling of each rank, in bytes
}

func DefaultConfig() Config {
	return Config{
		NumRanks:      2,
		GroupsPerRank: 1,
		Method:        "metis",
		Objective:     "vol",
		Imbalance:     0.05,
		MemGlobalMax:  1 << 29,
	}
}

// Layout places every element of the global mesh on a rank and on a group of
// that rank
type Layout struct {
	Rank  []int
	Group []int
}

// AssignRanks returns the rank of every element
func AssignRanks(m *mesh.Mesh, cfg Config) (ranks []int, err error) {
	switch cfg.Method {
	case "block":
		var pm *utils.PartitionMap
		if pm, err = utils.NewPartitionMap(cfg.NumRanks, m.NumElements); err != nil {
			return
		}
		return pm.Buckets(), nil
	case "metis":
		mp := mesh.NewMeshPartitioner(m, &mesh.PartitionConfig{
			NumPartitions:    int32(cfg.NumRanks),
			ImbalanceFactor:  float32(1 + cfg.Imbalance),
			UseEdgeWeights:   true,
			UseVertexWeights: true,
			Objective:        cfg.Objective,
		})
		if err = mp.Partition(); err != nil {
			return
		}
		return append([]int(nil), m.EToP...), nil
	default:
		return nil, fmt.Errorf("unknown partitioning method %q", cfg.Method)
	}
}

// SplitGroups splits the elements of each rank, in increasing element order,
// into groupsPerRank contiguous groups
func SplitGroups(ranks []int, numRanks, groupsPerRank int) (lay Layout, err error) {
	lay = Layout{
		Rank:  ranks,
		Group: make([]int, len(ranks)),
	}
	elems := make([][]int, numRanks)
	for k, r := range ranks {
		if r < 0 || r >= numRanks {
			return lay, fmt.Errorf("element %d on rank %d, expected [0,%d)", k, r, numRanks)
		}
		elems[r] = append(elems[r], k)
	}
	for r, list := range elems {
		var pm *utils.PartitionMap
		if pm, err = utils.NewPartitionMap(groupsPerRank, len(list)); err != nil {
			return
		}
		for g := 0; g < groupsPerRank; g++ {
			if pm.GetBucketDimension(g) == 0 {
				return lay, fmt.Errorf("rank %d holds %d elements for %d groups", r, len(list), groupsPerRank)
			}
		}
		for i, g := range pm.Buckets() {
			lay.Group[list[i]] = g
		}
	}
	return
}

// NewLayout assigns the ranks with the configured method, then splits each
// rank into groups
func NewLayout(m *mesh.Mesh, cfg Config) (lay Layout, err error) {
	var ranks []int
	if ranks, err = AssignRanks(m, cfg); err != nil {
		return
	}
	return SplitGroups(ranks, cfg.NumRanks, cfg.GroupsPerRank)
}
