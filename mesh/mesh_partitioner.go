package mesh

import (
	"fmt"
	"log"
	"sort"

	"github.com/james-bowman/sparse"
	metis "github.com/notargets/go-metis"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PartitionConfig holds configuration for mesh partitioning
type PartitionConfig struct {
	NumPartitions    int32
	ImbalanceFactor  float32 // e.g., 1.05 for 5% imbalance
	UseEdgeWeights   bool
	UseVertexWeights bool
	Objective        string // "cut" or "vol"
}

// DefaultPartitionConfig returns default partitioning configuration
func DefaultPartitionConfig(nparts int32) *PartitionConfig {
	return &PartitionConfig{
		NumPartitions:    nparts,
		ImbalanceFactor:  1.05,
		UseEdgeWeights:   true,
		UseVertexWeights: true,
		Objective:        "vol", // minimize communication volume
	}
}

// MeshPartitioner assigns the elements of a mesh to ranks with METIS
type MeshPartitioner struct {
	mesh   *Mesh
	config *PartitionConfig

	// Cost models
	computeCostModel func(elem int) int32
	commCostModel    func(elem, face int) int32
}

// NewMeshPartitioner creates a new partitioner for the given mesh
func NewMeshPartitioner(mesh *Mesh, config *PartitionConfig) *MeshPartitioner {
	mp := &MeshPartitioner{
		mesh:   mesh,
		config: config,
	}

	// Elements touching the boundary or a material interface carry extended
	// tag records and cost more to retag
	mp.computeCostModel = func(elem int) int32 {
		cost := int32(1)
		for i, nb := range mp.mesh.EToE[elem] {
			if nb < 0 || mp.mesh.IsMaterialInterface(elem, i) {
				cost++
			}
		}
		return cost
	}

	// A cut face costs one reference in the exchange and the retagging of
	// its three edges
	mp.commCostModel = func(elem, face int) int32 {
		if mp.mesh.EToE[elem][face] < 0 {
			return 0 // No communication across boundaries
		}
		return 3
	}

	return mp
}

// Partition performs the mesh partitioning
func (mp *MeshPartitioner) Partition() error {
	log.Printf("Partitioning mesh with %d elements into %d parts",
		mp.mesh.NumElements, mp.config.NumPartitions)

	if mp.config.NumPartitions < 1 || int(mp.config.NumPartitions) > mp.mesh.NumElements {
		return fmt.Errorf("cannot partition %d elements into %d parts",
			mp.mesh.NumElements, mp.config.NumPartitions)
	}

	mp.mesh.EToP = make([]int, mp.mesh.NumElements)
	if mp.config.NumPartitions == 1 {
		mp.analyzePartition(0)
		return nil
	}

	// Build METIS graph
	xadj, adjncy, vwgt, adjwgt := mp.buildMetisGraph()

	// Set METIS options
	opts := make([]int32, metis.NoOptions)
	err := metis.SetDefaultOptions(opts)
	if err != nil {
		return fmt.Errorf("failed to set METIS options: %w", err)
	}

	// Set objective function
	if mp.config.Objective == "vol" {
		opts[metis.OptionObjType] = metis.ObjTypeVol
	} else {
		opts[metis.OptionObjType] = metis.ObjTypeCut
	}

	// Set allowed imbalance
	ubvec := []float32{mp.config.ImbalanceFactor}

	// Handle case where weights might be nil
	var vwgtPtr, adjwgtPtr []int32
	if mp.config.UseVertexWeights {
		vwgtPtr = vwgt
	}
	if mp.config.UseEdgeWeights {
		adjwgtPtr = adjwgt
	}

	part, objval, err := metis.PartGraphKwayWeighted(
		xadj, adjncy, vwgtPtr, adjwgtPtr,
		mp.config.NumPartitions, nil, ubvec, opts,
	)
	if err != nil {
		return fmt.Errorf("METIS partitioning failed: %w", err)
	}

	for i := 0; i < mp.mesh.NumElements; i++ {
		mp.mesh.EToP[i] = int(part[i])
	}

	mp.analyzePartition(objval)
	return nil
}

// dualGraph returns the sorted face neighbours of every element. Two
// tetrahedra are neighbours when they share three vertices, found as the
// entries equal to 3 of the product of the element to vertex incidence
// matrix with its transpose.
func (mp *MeshPartitioner) dualGraph() (nbrs [][]int) {
	var (
		ne = mp.mesh.NumElements
		nv = mp.mesh.NumVertices
	)
	incDOK := sparse.NewDOK(ne, nv)
	for k, verts := range mp.mesh.EtoV {
		for _, v := range verts {
			incDOK.Set(k, v, 1)
		}
	}
	inc := incDOK.ToCSR()
	shared := sparse.NewCSR(ne, ne, nil, nil, nil)
	shared.Mul(inc, inc.T())

	nbrs = make([][]int, ne)
	shared.DoNonZero(func(i, j int, v float64) {
		if i != j && v == 3 {
			nbrs[i] = append(nbrs[i], j)
		}
	})
	for _, n := range nbrs {
		sort.Ints(n)
	}
	return
}

// buildMetisGraph converts mesh connectivity to METIS format
func (mp *MeshPartitioner) buildMetisGraph() (xadj, adjncy, vwgt, adjwgt []int32) {
	ne := mp.mesh.NumElements
	nbrs := mp.dualGraph()

	// Build vertex weights (computational cost per element)
	if mp.config.UseVertexWeights {
		vwgt = make([]int32, ne)
		for i := 0; i < ne; i++ {
			vwgt[i] = mp.computeCostModel(i)
		}
	}

	// Build adjacency and edge weights
	xadj = make([]int32, ne+1)
	adjncy = []int32{}
	adjwgt = []int32{}

	for elem := 0; elem < ne; elem++ {
		for _, neighbor := range nbrs[elem] {
			adjncy = append(adjncy, int32(neighbor))
			if mp.config.UseEdgeWeights {
				adjwgt = append(adjwgt, mp.commCostModel(elem, mp.faceTo(elem, neighbor)))
			}
		}
		xadj[elem+1] = int32(len(adjncy))
	}

	return xadj, adjncy, vwgt, adjwgt
}

// faceTo returns the local face of elem glued to neighbor
func (mp *MeshPartitioner) faceTo(elem, neighbor int) int {
	for i, nb := range mp.mesh.EToE[elem] {
		if nb == neighbor {
			return i
		}
	}
	panic(fmt.Sprintf("element %d is not a neighbour of element %d", neighbor, elem))
}

// PartitionStats holds statistics for a single partition
type PartitionStats struct {
	ID           int
	NumElements  int
	ComputeLoad  int64
	NumNeighbors map[int]int // neighbor partition -> shared faces
}

// analyzePartition computes and reports partition quality metrics
func (mp *MeshPartitioner) analyzePartition(objval int32) (partStats []PartitionStats, imbalance float64) {
	nparts := int(mp.config.NumPartitions)

	partStats = make([]PartitionStats, nparts)
	for i := range partStats {
		partStats[i].ID = i
		partStats[i].NumNeighbors = make(map[int]int)
	}

	for elem := 0; elem < mp.mesh.NumElements; elem++ {
		stats := &partStats[mp.mesh.EToP[elem]]
		stats.NumElements++
		stats.ComputeLoad += int64(mp.computeCostModel(elem))
	}

	// Analyze communication
	var (
		cutFaces, interfaceCuts int
		commVolume              int64
	)
	for elem := 0; elem < mp.mesh.NumElements; elem++ {
		elemPart := mp.mesh.EToP[elem]
		for faceIdx, neighbor := range mp.mesh.EToE[elem] {
			if neighbor < 0 || neighbor < elem { // Count each face once
				continue
			}
			neighborPart := mp.mesh.EToP[neighbor]
			if elemPart == neighborPart {
				continue
			}
			cutFaces++
			if mp.mesh.IsMaterialInterface(elem, faceIdx) {
				interfaceCuts++
			}
			commVolume += int64(mp.commCostModel(elem, faceIdx))
			partStats[elemPart].NumNeighbors[neighborPart]++
			partStats[neighborPart].NumNeighbors[elemPart]++
		}
	}

	loads := make([]float64, nparts)
	for i, stats := range partStats {
		loads[i] = float64(stats.ComputeLoad)
	}
	avgLoad := stat.Mean(loads, nil)
	if avgLoad > 0 {
		imbalance = floats.Max(loads)/avgLoad - 1.0
	}

	log.Printf("Partition Analysis:")
	log.Printf("  Objective value: %d", objval)
	log.Printf("  Cut faces: %d (%d on a material interface)", cutFaces, interfaceCuts)
	log.Printf("  Communication volume: %d", commVolume)
	log.Printf("  Load imbalance: %.2f%%", imbalance*100)
	log.Printf("  Load range: [%.0f, %.0f], avg: %.1f, stddev: %.1f",
		floats.Min(loads), floats.Max(loads), avgLoad, stat.StdDev(loads, nil))
	for _, stats := range partStats {
		log.Printf("  Partition %d: %d elements, load %d, %d neighbors",
			stats.ID, stats.NumElements, stats.ComputeLoad, len(stats.NumNeighbors))
	}
	return
}

// GetPartitionElements returns all elements in a given partition
func (mp *MeshPartitioner) GetPartitionElements(partID int) []int {
	elements := []int{}
	for elem := 0; elem < mp.mesh.NumElements; elem++ {
		if mp.mesh.EToP[elem] == partID {
			elements = append(elements, elem)
		}
	}
	return elements
}
