package partition

import (
	"fmt"
	"log"
	"sort"

	"github.com/notargets/parbdy/comm"
	"github.com/notargets/parbdy/mesh"
	"github.com/notargets/parbdy/parmesh"
)

// Build distributes the global mesh following lay and returns one ParMesh
// per rank, the ranks being connected by an in-process network. Each group
// gets a local mesh with its own point numbering. Every face between two
// groups or two ranks becomes an interface item; the internal communicator
// of a rank holds one slot per such face, in increasing global face order,
// and its external communicators are sorted by neighbour rank.
func Build(m *mesh.Mesh, lay Layout, cfg Config) (pms []*parmesh.ParMesh, err error) {
	if len(lay.Rank) != m.NumElements || len(lay.Group) != m.NumElements {
		return nil, fmt.Errorf("layout of %d/%d elements for a mesh of %d",
			len(lay.Rank), len(lay.Group), m.NumElements)
	}
	if len(m.EToE) != m.NumElements {
		return nil, fmt.Errorf("mesh connectivity is not built")
	}
	nr := cfg.NumRanks
	for k := 0; k < m.NumElements; k++ {
		if lay.Rank[k] < 0 || lay.Rank[k] >= nr || lay.Group[k] < 0 {
			return nil, fmt.Errorf("element %d: invalid rank %d group %d", k, lay.Rank[k], lay.Group[k])
		}
	}

	isCut := func(k, i int) bool {
		nb := m.EToE[k][i]
		return nb >= 0 && (lay.Rank[nb] != lay.Rank[k] || lay.Group[nb] != lay.Group[k])
	}

	// Cut faces seen by each rank, and shared with each neighbour rank
	var (
		rankFaces = make([][]int, nr)
		pairFaces = make([]map[int][]int, nr)
		groups    = make([][][]int, nr) // Elements of each group of each rank
	)
	for k := 0; k < m.NumElements; k++ {
		r, g := lay.Rank[k], lay.Group[k]
		for len(groups[r]) <= g {
			groups[r] = append(groups[r], nil)
		}
		groups[r][g] = append(groups[r][g], k)
		for i, nb := range m.EToE[k] {
			if !isCut(k, i) {
				continue
			}
			f, s := m.EToF[k][i], lay.Rank[nb]
			switch {
			case s != r:
				rankFaces[r] = append(rankFaces[r], f)
				if pairFaces[r] == nil {
					pairFaces[r] = make(map[int][]int)
				}
				pairFaces[r][s] = append(pairFaces[r][s], f)
			case k < nb:
				// Both sides are on this rank, register the slot once
				rankFaces[r] = append(rankFaces[r], f)
			}
		}
	}

	net := comm.NewNetwork(nr)
	pms = make([]*parmesh.ParMesh, nr)
	for r := range pms {
		var ep *comm.Endpoint
		if ep, err = net.Endpoint(r); err != nil {
			return nil, err
		}
		pm := parmesh.New(ep, cfg.MemGlobalMax)
		pms[r] = pm

		sort.Ints(rankFaces[r])
		slot := make(map[int]int, len(rankFaces[r]))
		for idx, f := range rankFaces[r] {
			slot[f] = idx
		}
		pm.IntFaceComm = comm.NewIntComm(len(rankFaces[r]))

		neighbours := make([]int, 0, len(pairFaces[r]))
		for s := range pairFaces[r] {
			neighbours = append(neighbours, s)
		}
		sort.Ints(neighbours)
		for _, s := range neighbours {
			faces := pairFaces[r][s]
			sort.Ints(faces)
			idx := make([]int, len(faces))
			for i, f := range faces {
				idx[i] = slot[f]
			}
			pm.ExtFaceComms = append(pm.ExtFaceComms, comm.NewExtComm(r, s, idx))
		}

		for _, elems := range groups[r] {
			if err = buildGroup(pm, m, elems, isCut, slot, cfg.FreezeSurface); err != nil {
				return nil, fmt.Errorf("rank %d: %w", r, err)
			}
		}
		log.Printf("rank %d: %d groups, %d interface slots, %d neighbour ranks",
			r, len(pm.Groups), pm.IntFaceComm.NItem, len(pm.ExtFaceComms))
	}
	return
}

// buildGroup adds to pm a group holding the given global elements. The
// budget is lent to the group mesh while it is filled.
func buildGroup(pm *parmesh.ParMesh, m *mesh.Mesh, elems []int,
	isCut func(k, i int) bool, slot map[int]int, freezeSurface bool) error {
	g := pm.NewGroup()
	lm := g.Mesh
	lm.Info.NoSurf = freezeSurface

	err := pm.Ledger.Lend(lm.Memory, func() error {
		globalToLocal := make(map[int]int)
		for _, k := range elems {
			var v [4]int
			for j, gv := range m.EtoV[k] {
				ip, found := globalToLocal[gv]
				if !found {
					var err error
					if ip, err = lm.AddPoint(m.Vertices[gv]); err != nil {
						return err
					}
					globalToLocal[gv] = ip
				}
				v[j] = ip
			}
			if _, err := lm.AddTetra(v, m.ElementTags[k]); err != nil {
				return err
			}
		}
		_, err := lm.AnalyzeBoundary(func(k, i int) bool { return isCut(elems[k], i) })
		return err
	})
	if err != nil {
		return fmt.Errorf("group %d: %w", g.ID, err)
	}

	for k, gk := range elems {
		for i := 0; i < 4; i++ {
			if isCut(gk, i) {
				g.AddFaceItem(k, i, 0, slot[m.EToF[gk][i]])
			}
		}
	}
	return nil
}
