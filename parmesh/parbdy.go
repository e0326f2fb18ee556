package parmesh

import (
	"fmt"

	"github.com/notargets/parbdy/comm"
	"github.com/notargets/parbdy/tags"
)

// ParBdyStats describes one run of ParBdySet
type ParBdyStats struct {
	Phase1Slots int // Slots seen by two groups of this rank, resolved locally
	Phase2Slots int // Slots seen once, resolved against the neighbour rank
	Marked      int // Faces tagged ParBdyBdy during the run
}

// ParBdySet tags as ParBdyBdy the faces of the face communicators that
// separate two different tetra references, i.e. partition cuts that are also
// material boundaries. Slots shared by two groups of the rank are resolved
// locally; the others are resolved after one exchange of references with
// each neighbour rank. Edge and point tags are left to the next UpdateTag.
func (pm *ParMesh) ParBdySet() (stats ParBdyStats, err error) {
	var (
		icomm = pm.IntFaceComm
		nitem = icomm.NItem
		acct  = pm.Ledger.Rank()
	)
	pm.Ledger.Reclaim()

	foldBytes := 2 * int64(nitem) * intSize
	if err = acct.Alloc(foldBytes, "face communicator values"); err != nil {
		return stats, fmt.Errorf("rank %d: %w", pm.Rank, err)
	}
	icomm.IntValues = make([]int, nitem)
	seenFace := make([]int, nitem)
	defer func() {
		icomm.IntValues = nil
		acct.Free(foldBytes)
	}()
	intvalues := icomm.IntValues

	// Store the first reference found for each slot, compare the others
	err = pm.eachFaceItem(func(g *Group, iel, ifac, idx int) error {
		ref := g.Mesh.Tetras[iel].Ref
		if seenFace[idx] == 0 {
			intvalues[idx] = ref
		} else if intvalues[idx] != ref {
			g.Mesh.XTetras[g.Mesh.Tetras[iel].XT].FTag[ifac] |= tags.ParBdyBdy
			stats.Marked++
		}
		seenFace[idx]++
		return nil
	})
	if err != nil {
		return
	}

	// Swap references with each neighbour rank
	var bufBytes int64
	defer func() {
		for _, ext := range pm.ExtFaceComms {
			ext.IToSend, ext.IToRecv = nil, nil
		}
		acct.Free(bufBytes)
	}()
	for _, ext := range pm.ExtFaceComms {
		n := 2 * int64(ext.NItem) * intSize
		if err = acct.Alloc(n, "face communicator buffers"); err != nil {
			return stats, fmt.Errorf("rank %d: %w", pm.Rank, err)
		}
		bufBytes += n
		ext.IToSend = make([]int, ext.NItem)
		ext.IToRecv = make([]int, ext.NItem)
		for i, idx := range ext.IntCommIndex {
			ext.IToSend[i] = intvalues[idx]
		}
		if err = pm.Comm.SendRecv(ext.ColorOut, comm.RefTag, ext.IToSend, ext.IToRecv); err != nil {
			return stats, fmt.Errorf("rank %d: references with rank %d: %w", pm.Rank, ext.ColorOut, err)
		}
		for i, idx := range ext.IntCommIndex {
			intvalues[idx] = ext.IToRecv[i]
		}
	}

	// Only slots seen once hold a neighbour reference now
	err = pm.eachFaceItem(func(g *Group, iel, ifac, idx int) error {
		if seenFace[idx] != 1 {
			return nil
		}
		if intvalues[idx] != g.Mesh.Tetras[iel].Ref {
			g.Mesh.XTetras[g.Mesh.Tetras[iel].XT].FTag[ifac] |= tags.ParBdyBdy
			stats.Marked++
		}
		return nil
	})
	if err != nil {
		return
	}

	for _, n := range seenFace {
		switch {
		case n == 1:
			stats.Phase2Slots++
		case n >= 2:
			stats.Phase1Slots++
		}
	}
	return
}

// eachFaceItem visits the face interface items of all groups, checking that
// each one designates a valid slot and an extended tetra
func (pm *ParMesh) eachFaceItem(fn func(g *Group, iel, ifac, idx int) error) error {
	for _, g := range pm.Groups {
		if len(g.Face2IntFaceCommIndex2) != len(g.Face2IntFaceCommIndex1) {
			return fmt.Errorf("rank %d group %d: %d face items but %d slots",
				pm.Rank, g.ID, len(g.Face2IntFaceCommIndex1), len(g.Face2IntFaceCommIndex2))
		}
		for k, code := range g.Face2IntFaceCommIndex1 {
			iel, ifac, _ := comm.DecodeFace(code)
			idx := g.Face2IntFaceCommIndex2[k]
			if idx < 0 || idx >= pm.IntFaceComm.NItem {
				return fmt.Errorf("rank %d group %d: slot %d out of range [0,%d)",
					pm.Rank, g.ID, idx, pm.IntFaceComm.NItem)
			}
			if _, err := g.Mesh.XTetraOf(iel); err != nil {
				return fmt.Errorf("rank %d group %d: face item %d: %w", pm.Rank, g.ID, k, err)
			}
			if err := fn(g, iel, ifac, idx); err != nil {
				return err
			}
		}
	}
	return nil
}
