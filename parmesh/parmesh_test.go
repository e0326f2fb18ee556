package parmesh

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/parbdy/comm"
	"github.com/notargets/parbdy/memory"
	"github.com/notargets/parbdy/tags"
	"github.com/notargets/parbdy/tetmesh"
)

const testMemMax = 1 << 24

// The two halves of the two-tet mesh, each with the shared face opposite its
// first vertex
var (
	leftTet = [4]r3.Vec{
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1},
	}
	rightTet = [4]r3.Vec{
		{X: 1, Y: 1, Z: 1}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1},
	}
)

// addSingleTetGroup adds a group holding one tetra whose faces listed in
// items, as {face, slot} pairs, lie on a partition cut
func addSingleTetGroup(t *testing.T, pm *ParMesh, pts [4]r3.Vec, ref int, items ...[2]int) *Group {
	isCut := func(k, ifac int) bool {
		for _, it := range items {
			if it[0] == ifac {
				return true
			}
		}
		return false
	}
	g := pm.NewGroup()
	require.NoError(t, pm.Ledger.Lend(g.Mesh.Memory, func() error {
		for _, c := range pts {
			if _, err := g.Mesh.AddPoint(c); err != nil {
				return err
			}
		}
		if _, err := g.Mesh.AddTetra([4]int{0, 1, 2, 3}, ref); err != nil {
			return err
		}
		_, err := g.Mesh.AnalyzeBoundary(isCut)
		return err
	}))
	for _, it := range items {
		g.AddFaceItem(0, it[0], 0, it[1])
	}
	return g
}

func faceTag(g *Group, k, ifac int) tags.Tag {
	return g.Mesh.XTetras[g.Mesh.Tetras[k].XT].FTag[ifac]
}

func TestParBdySet_TwoGroupsOneRank(t *testing.T) {
	pm := New(comm.Serial{}, testMemMax)
	pm.IntFaceComm = comm.NewIntComm(1)
	g0 := addSingleTetGroup(t, pm, leftTet, 3, [2]int{0, 0})
	g1 := addSingleTetGroup(t, pm, rightTet, 7, [2]int{0, 0})

	stats, err := pm.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, ParBdyStats{Phase1Slots: 1, Phase2Slots: 0, Marked: 1}, stats)
	// The second visit of the slot detects the reference jump
	assert.True(t, faceTag(g1, 0, 0).Has(tags.ParBdyBdy|tags.ParallelMask))
	assert.False(t, faceTag(g0, 0, 0).Has(tags.ParBdyBdy))
	assert.True(t, faceTag(g0, 0, 0).Has(tags.ParallelMask))
	assert.Equal(t, pm.Ledger.Rank(), pm.Ledger.Holder())
}

func TestParBdySet_TwoGroupsSameReference(t *testing.T) {
	pm := New(comm.Serial{}, testMemMax)
	pm.IntFaceComm = comm.NewIntComm(1)
	g0 := addSingleTetGroup(t, pm, leftTet, 4, [2]int{0, 0})
	g1 := addSingleTetGroup(t, pm, rightTet, 4, [2]int{0, 0})

	stats, err := pm.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, ParBdyStats{Phase1Slots: 1}, stats)
	assert.Equal(t, tags.ParallelMask, faceTag(g0, 0, 0))
	assert.Equal(t, tags.ParallelMask, faceTag(g1, 0, 0))
}

func newTwoRanks(t *testing.T, ref0, ref1 int) (pms []*ParMesh) {
	net := comm.NewNetwork(2)
	for r, ref := range []int{ref0, ref1} {
		ep, err := net.Endpoint(r)
		require.NoError(t, err)
		pm := New(ep, testMemMax)
		pm.IntFaceComm = comm.NewIntComm(1)
		pts := leftTet
		if r == 1 {
			pts = rightTet
		}
		addSingleTetGroup(t, pm, pts, ref, [2]int{0, 0})
		pm.ExtFaceComms = []*comm.ExtComm{comm.NewExtComm(r, 1-r, []int{0})}
		pms = append(pms, pm)
	}
	return
}

func reconcileAll(t *testing.T, pms []*ParMesh) []ParBdyStats {
	stats := make([]ParBdyStats, len(pms))
	require.NoError(t, RunRanks(pms, func(pm *ParMesh) (err error) {
		stats[pm.Rank], err = pm.Reconcile()
		return
	}))
	return stats
}

func TestParBdySet_TwoRanks(t *testing.T) {
	t.Run("same reference", func(t *testing.T) {
		pms := newTwoRanks(t, 5, 5)
		stats := reconcileAll(t, pms)
		for _, pm := range pms {
			assert.Equal(t, ParBdyStats{Phase2Slots: 1}, stats[pm.Rank])
			assert.Equal(t, tags.ParallelMask, faceTag(pm.Groups[0], 0, 0))
		}
	})
	t.Run("different references", func(t *testing.T) {
		pms := newTwoRanks(t, 5, 9)
		stats := reconcileAll(t, pms)
		for _, pm := range pms {
			assert.Equal(t, ParBdyStats{Phase2Slots: 1, Marked: 1}, stats[pm.Rank])
			assert.Equal(t, tags.ParallelMask|tags.ParBdyBdy, faceTag(pm.Groups[0], 0, 0))
			assert.Nil(t, pm.IntFaceComm.IntValues)
			assert.Nil(t, pm.ExtFaceComms[0].IToSend)
		}
	})
}

func parBdyBdyFaces(pms []*ParMesh) (faces map[[4]int]bool) {
	faces = make(map[[4]int]bool)
	for _, pm := range pms {
		for _, g := range pm.Groups {
			for k, pt := range g.Mesh.Tetras {
				if pt.XT == tetmesh.NoRecord {
					continue
				}
				for ifac := 0; ifac < 4; ifac++ {
					if faceTag(g, k, ifac).Has(tags.ParBdyBdy) {
						faces[[4]int{pm.Rank, g.ID, k, ifac}] = true
					}
				}
			}
		}
	}
	return
}

func TestReconcile_Idempotent(t *testing.T) {
	pms := newTwoRanks(t, 5, 9)
	first := reconcileAll(t, pms)
	set1 := parBdyBdyFaces(pms)
	second := reconcileAll(t, pms)
	assert.Equal(t, set1, parBdyBdyFaces(pms))
	assert.Equal(t, first, second)
	assert.Len(t, set1, 2)
	for _, pm := range pms {
		require.NoError(t, pm.CheckEdgeTags())
	}
}

func TestParBdySet_SlotResolvedOnce(t *testing.T) {
	// Rank 0 owns two groups sharing slot 0 and a cut with rank 1 on slot 1
	net := comm.NewNetwork(2)
	ep0, _ := net.Endpoint(0)
	ep1, _ := net.Endpoint(1)
	pm0 := New(ep0, testMemMax)
	pm0.IntFaceComm = comm.NewIntComm(2)
	addSingleTetGroup(t, pm0, leftTet, 1, [2]int{0, 0})
	// A second cut face of the right tetra goes to rank 1
	addSingleTetGroup(t, pm0, rightTet, 1, [2]int{0, 0}, [2]int{1, 1})
	pm0.ExtFaceComms = []*comm.ExtComm{comm.NewExtComm(0, 1, []int{1})}

	pm1 := New(ep1, testMemMax)
	pm1.IntFaceComm = comm.NewIntComm(1)
	addSingleTetGroup(t, pm1, leftTet, 2, [2]int{0, 0})
	pm1.ExtFaceComms = []*comm.ExtComm{comm.NewExtComm(1, 0, []int{0})}

	stats := reconcileAll(t, []*ParMesh{pm0, pm1})
	assert.Equal(t, ParBdyStats{Phase1Slots: 1, Phase2Slots: 1, Marked: 1}, stats[0])
	assert.Equal(t, ParBdyStats{Phase2Slots: 1, Marked: 1}, stats[1])
	assert.Equal(t, pm0.IntFaceComm.NItem, stats[0].Phase1Slots+stats[0].Phase2Slots)
	// The locally shared slot keeps its plain parallel tag
	assert.False(t, faceTag(pm0.Groups[1], 0, 0).Has(tags.ParBdyBdy))
	assert.True(t, faceTag(pm0.Groups[1], 0, 1).Has(tags.ParBdyBdy))
}

func TestParBdySet_Failures(t *testing.T) {
	t.Run("exchange", func(t *testing.T) {
		pm := New(comm.Serial{}, testMemMax)
		pm.IntFaceComm = comm.NewIntComm(1)
		addSingleTetGroup(t, pm, leftTet, 1, [2]int{0, 0})
		pm.ExtFaceComms = []*comm.ExtComm{comm.NewExtComm(0, 1, []int{0})}
		_, err := pm.Reconcile()
		assert.True(t, errors.Is(err, comm.ErrExchange))
		assert.Nil(t, pm.ExtFaceComms[0].IToRecv)
		assert.Equal(t, int64(0), pm.Ledger.Rank().Snapshot().Current)
	})
	t.Run("memory", func(t *testing.T) {
		pm := New(comm.Serial{}, testMemMax)
		pm.IntFaceComm = comm.NewIntComm(1)
		addSingleTetGroup(t, pm, leftTet, 1, [2]int{0, 0})
		pm.Ledger.GlobalMax = pm.Ledger.Audit().Current
		_, err := pm.ParBdySet()
		assert.True(t, errors.Is(err, memory.ErrOutOfMemory))
	})
	t.Run("slot out of range", func(t *testing.T) {
		pm := New(comm.Serial{}, testMemMax)
		pm.IntFaceComm = comm.NewIntComm(1)
		addSingleTetGroup(t, pm, leftTet, 1, [2]int{0, 3})
		_, err := pm.ParBdySet()
		assert.Error(t, err)
	})
}

func TestRunRanks_PeerFailure(t *testing.T) {
	// Rank 1 runs out of memory before its exchange with rank 0
	pms := newTwoRanks(t, 5, 9)
	pms[1].Ledger.GlobalMax = pms[1].Ledger.Audit().Current

	done := make(chan error)
	go func() {
		done <- RunRanks(pms, func(pm *ParMesh) error {
			_, err := pm.Reconcile()
			return err
		})
	}()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, memory.ErrOutOfMemory))
		assert.False(t, errors.Is(err, comm.ErrPeerAborted))
	case <-time.After(5 * time.Second):
		t.Fatal("RunRanks blocked after rank 1 failed")
	}
	assert.Nil(t, pms[0].ExtFaceComms[0].IToRecv)
	assert.Equal(t, int64(0), pms[0].Ledger.Rank().Snapshot().Current)
}
