package parmesh

import (
	"fmt"

	"github.com/notargets/parbdy/tags"
	"github.com/notargets/parbdy/tetmesh"
)

// CheckEdgeTags verifies that all extended tetrahedra sharing an edge carry
// the same tag for it
func (g *Group) CheckEdgeTags() error {
	type seen struct {
		tag tags.Tag
		k   int
	}
	var (
		m     = g.Mesh
		edges = make(map[tetmesh.EdgeKey]seen)
	)
	for k := range m.Tetras {
		pt := &m.Tetras[k]
		if pt.XT == tetmesh.NoRecord {
			continue
		}
		pxt := &m.XTetras[pt.XT]
		for j := 0; j < 6; j++ {
			key := tetmesh.NewEdgeKey(m.EdgeVertices(k, j))
			if prev, found := edges[key]; !found {
				edges[key] = seen{pxt.ETag[j], k}
			} else if prev.tag != pxt.ETag[j] {
				return fmt.Errorf("%s: edge (%d,%d) tagged %s in tetra %d and %s in tetra %d",
					m.Name, key.A, key.B, prev.tag, prev.k, pxt.ETag[j], k)
			}
		}
	}
	return nil
}

// CheckEdgeTags runs the edge check on every group of the rank
func (pm *ParMesh) CheckEdgeTags() error {
	for _, g := range pm.Groups {
		if err := g.CheckEdgeTags(); err != nil {
			return err
		}
	}
	return nil
}

// TagCount sums, over the faces of the extended tetrahedra of the rank, the
// number of faces carrying each of the given tags
func (pm *ParMesh) TagCount(flags ...tags.Tag) (counts []int) {
	counts = make([]int, len(flags))
	for _, g := range pm.Groups {
		for _, pxt := range g.Mesh.XTetras {
			for ifac := 0; ifac < 4; ifac++ {
				for i, f := range flags {
					if pxt.FTag[ifac].Has(f) {
						counts[i]++
					}
				}
			}
		}
	}
	return
}
