package parmesh

import (
	"fmt"

	"github.com/notargets/parbdy/comm"
	"github.com/notargets/parbdy/tags"
	"github.com/notargets/parbdy/tetmesh"
)

// UpdateTag recomputes the boundary and parallel tags of every group of the
// rank. Each group mesh holds the memory budget while it is processed.
func (pm *ParMesh) UpdateTag() error {
	pm.Ledger.Reclaim()
	for _, g := range pm.Groups {
		if err := pm.Ledger.Lend(g.Mesh.Memory, g.UpdateTag); err != nil {
			return fmt.Errorf("rank %d group %d: update tags: %w", pm.Rank, g.ID, err)
		}
	}
	return nil
}

// UpdateTag rebuilds the tags of the points, edges and faces of the group
// mesh from its geometric boundary and its current face interface items.
// Edge tags go through an edge table so that every tetrahedron sharing an
// edge ends up with the same tag.
func (g *Group) UpdateTag() (err error) {
	var (
		m      = g.Mesh
		freeze = tags.Required | tags.NoSurf
	)

	// Remove the tags of the previous partition cut
	for k := range m.Tetras {
		pt := &m.Tetras[k]
		if pt.XT == tetmesh.NoRecord {
			continue
		}
		pxt := &m.XTetras[pt.XT]
		for j := 0; j < 4; j++ {
			ppt := &m.Points[pt.V[j]]
			ppt.Tag = tags.UntagParallel(ppt.Tag)
		}
		for j := 0; j < 6; j++ {
			pxt.ETag[j] = tags.UntagParallel(pxt.ETag[j])
		}
		for j := 0; j < 4; j++ {
			pxt.FTag[j] = tags.UntagParallel(pxt.FTag[j])
		}
	}

	var h *tetmesh.EdgeTagTable
	if h, err = tetmesh.NewEdgeTagTable(m, m.XT()); err != nil {
		return
	}
	defer h.Release()
	for k := range m.Tetras {
		if m.Tetras[k].XT == tetmesh.NoRecord {
			continue
		}
		for j := 0; j < 6; j++ {
			ip0, ip1 := m.EdgeVertices(k, j)
			if err = h.Edge(ip0, ip1, 0, tags.NoTag); err != nil {
				return
			}
		}
	}

	// Re-tag the boundary starting from the faces. A face that was both a cut
	// and a material boundary only kept ParBdyBdy through the untagging.
	for k := range m.Tetras {
		pt := &m.Tetras[k]
		if pt.XT == tetmesh.NoRecord {
			continue
		}
		pxt := &m.XTetras[pt.XT]
		for ifac := 0; ifac < 4; ifac++ {
			if pxt.FTag[ifac].Has(tags.ParBdyBdy) {
				pxt.FTag[ifac] = pxt.FTag[ifac].Clear(tags.ParBdyBdy).Set(tags.Boundary)
			}
			if !pxt.FTag[ifac].Has(tags.Boundary) {
				continue
			}
			tag := tags.Boundary
			if m.Info.NoSurf {
				tag |= freeze
				pxt.FTag[ifac] |= freeze
			}
			for j := 0; j < 3; j++ {
				ip0, ip1 := m.EdgeVertices(k, tetmesh.IArF[ifac][j])
				if err = h.Tag(ip0, ip1, tag); err != nil {
					return
				}
			}
			for j := 0; j < 3; j++ {
				m.Points[pt.V[tetmesh.IDir[ifac][j]]].Tag |= tag
			}
		}
	}

	// Tag the current partition cut from the face communicator. This is done
	// even without external communicator, e.g. a mesh split on one rank.
	for i, code := range g.Face2IntFaceCommIndex1 {
		iel, ifac, _ := comm.DecodeFace(code)
		var pxt *tetmesh.XTetra
		if pxt, err = m.XTetraOf(iel); err != nil {
			return fmt.Errorf("face item %d: %w", i, err)
		}
		if pxt.FTag[ifac].Has(tags.Boundary) {
			pxt.FTag[ifac] |= tags.ParBdyBdy
		}
		pxt.FTag[ifac] = tags.TagParallel(pxt.FTag[ifac])
		for j := 0; j < 3; j++ {
			ip0, ip1 := m.EdgeVertices(iel, tetmesh.IArF[ifac][j])
			if err = h.Tag(ip0, ip1, tags.ParallelMask); err != nil {
				return fmt.Errorf("face item %d: %w", i, err)
			}
		}
		pt := &m.Tetras[iel]
		for j := 0; j < 3; j++ {
			ppt := &m.Points[pt.V[tetmesh.IDir[ifac][j]]]
			ppt.Tag = tags.TagParallel(ppt.Tag)
		}
	}

	// Commit the accumulated edge tags
	for k := range m.Tetras {
		pt := &m.Tetras[k]
		if pt.XT == tetmesh.NoRecord {
			continue
		}
		pxt := &m.XTetras[pt.XT]
		for j := 0; j < 6; j++ {
			ip0, ip1 := m.EdgeVertices(k, j)
			if _, pxt.ETag[j], err = h.Get(ip0, ip1); err != nil {
				return
			}
		}
	}
	h.Release()

	// Extended point records only make sense on the boundary
	for i := range m.Points {
		ppt := &m.Points[i]
		if !ppt.Tag.Has(tags.Boundary) {
			ppt.XP = tetmesh.NoRecord
		}
	}
	return nil
}
