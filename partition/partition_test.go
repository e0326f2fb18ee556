package partition

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/parbdy/comm"
	"github.com/notargets/parbdy/mesh"
	"github.com/notargets/parbdy/parmesh"
	"github.com/notargets/parbdy/tags"
)

func blockConfig(ranks, groups int) Config {
	cfg := DefaultConfig()
	cfg.Method = "block"
	cfg.NumRanks = ranks
	cfg.GroupsPerRank = groups
	return cfg
}

func buildBar(t *testing.T, cubeTags []int, cfg Config) []*parmesh.ParMesh {
	m, err := mesh.NewBarMesh(len(cubeTags), func(cube int) int { return cubeTags[cube] })
	require.NoError(t, err)
	lay, err := NewLayout(m, cfg)
	require.NoError(t, err)
	pms, err := Build(m, lay, cfg)
	require.NoError(t, err)
	return pms
}

func reconcile(t *testing.T, pms []*parmesh.ParMesh) []parmesh.ParBdyStats {
	stats := make([]parmesh.ParBdyStats, len(pms))
	require.NoError(t, parmesh.RunRanks(pms, func(pm *parmesh.ParMesh) (err error) {
		stats[pm.Rank], err = pm.Reconcile()
		return
	}))
	for _, pm := range pms {
		require.NoError(t, pm.CheckEdgeTags())
	}
	return stats
}

func TestLayout(t *testing.T) {
	m, err := mesh.NewBarMesh(3, func(cube int) int { return 1 })
	require.NoError(t, err)

	lay, err := NewLayout(m, blockConfig(2, 3))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1}, lay.Rank)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1, 2, 2, 2, 0, 0, 0, 1, 1, 1, 2, 2, 2}, lay.Group)

	_, err = NewLayout(m, blockConfig(2, 10))
	assert.Error(t, err)
	cfg := blockConfig(2, 1)
	cfg.Method = "random"
	_, err = NewLayout(m, cfg)
	assert.Error(t, err)
	_, err = SplitGroups([]int{0, 3}, 2, 1)
	assert.Error(t, err)
	// Rank 1 has no element for its group
	_, err = SplitGroups([]int{0, 0, 0}, 2, 1)
	assert.Error(t, err)
	lay, err = SplitGroups([]int{1, 0, 1, 0}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1}, lay.Group)
}

func TestBuild_Communicators(t *testing.T) {
	pms := buildBar(t, []int{1, 1, 1, 1}, blockConfig(2, 2))
	require.Len(t, pms, 2)
	for _, pm := range pms {
		require.Len(t, pm.Groups, 2)
		// One internal cut and the rank cut, two triangles each
		assert.Equal(t, 4, pm.IntFaceComm.NItem)
		require.Len(t, pm.ExtFaceComms, 1)
		ext := pm.ExtFaceComms[0]
		assert.Equal(t, pm.Rank, ext.ColorIn)
		assert.Equal(t, 1-pm.Rank, ext.ColorOut)
		assert.Equal(t, 2, ext.NItem)
		for _, g := range pm.Groups {
			assert.Equal(t, 8, g.Mesh.NP())
			assert.Equal(t, 6, g.Mesh.NE())
			assert.Equal(t, len(g.Face2IntFaceCommIndex1), len(g.Face2IntFaceCommIndex2))
		}
	}
	// Inner groups see both cuts, outer groups one
	assert.Equal(t, 2, pms[0].Groups[0].NItemIntFaceComm())
	assert.Equal(t, 4, pms[0].Groups[1].NItemIntFaceComm())
	assert.Equal(t, 4, pms[1].Groups[0].NItemIntFaceComm())
	assert.Equal(t, 2, pms[1].Groups[1].NItemIntFaceComm())
}

// slotFaces returns the sorted coordinates of the face behind each slot of
// the rank
func slotFaces(pm *parmesh.ParMesh) map[int][3]r3.Vec {
	faces := make(map[int][3]r3.Vec)
	for _, g := range pm.Groups {
		for i, code := range g.Face2IntFaceCommIndex1 {
			iel, ifac, _ := comm.DecodeFace(code)
			var c [3]r3.Vec
			for j, ip := range g.Mesh.FaceVertices(iel, ifac) {
				c[j] = g.Mesh.Points[ip].C
			}
			sort.Slice(c[:], func(a, b int) bool {
				if c[a].X != c[b].X {
					return c[a].X < c[b].X
				}
				if c[a].Y != c[b].Y {
					return c[a].Y < c[b].Y
				}
				return c[a].Z < c[b].Z
			})
			faces[g.Face2IntFaceCommIndex2[i]] = c
		}
	}
	return faces
}

func TestBuild_ExternalItemsMatch(t *testing.T) {
	pms := buildBar(t, []int{1, 2, 3}, blockConfig(3, 1))
	require.Len(t, pms[1].ExtFaceComms, 2)
	assert.Equal(t, 0, pms[1].ExtFaceComms[0].ColorOut)
	assert.Equal(t, 2, pms[1].ExtFaceComms[1].ColorOut)

	for _, pm := range pms {
		mine := slotFaces(pm)
		for _, ext := range pm.ExtFaceComms {
			theirs := slotFaces(pms[ext.ColorOut])
			var back *comm.ExtComm
			for _, e := range pms[ext.ColorOut].ExtFaceComms {
				if e.ColorOut == pm.Rank {
					back = e
				}
			}
			require.NotNil(t, back)
			require.Equal(t, ext.NItem, back.NItem)
			for i := range ext.IntCommIndex {
				assert.Equal(t, mine[ext.IntCommIndex[i]], theirs[back.IntCommIndex[i]])
			}
		}
	}
}

func TestBuild_ReconcileAcrossRanks(t *testing.T) {
	// Materials change between cubes 1 and 2, which is also the rank cut
	pms := buildBar(t, []int{1, 1, 2, 2}, blockConfig(2, 2))
	for pass := 0; pass < 2; pass++ {
		stats := reconcile(t, pms)
		for _, pm := range pms {
			assert.Equal(t, parmesh.ParBdyStats{Phase1Slots: 2, Phase2Slots: 2, Marked: 2}, stats[pm.Rank])
			// Two internal cuts seen from both groups, plus the rank cut
			assert.Equal(t, []int{6, 2}, pm.TagCount(tags.ParBdy, tags.ParBdyBdy))
			assert.Nil(t, pm.IntFaceComm.IntValues)
			assert.Equal(t, pm.Ledger.Rank(), pm.Ledger.Holder())
		}
	}
}

func TestBuild_ReconcileInsideRank(t *testing.T) {
	// Materials change between the two groups of rank 0
	pms := buildBar(t, []int{1, 3, 2, 2}, blockConfig(2, 2))
	stats := reconcile(t, pms)
	assert.Equal(t, parmesh.ParBdyStats{Phase1Slots: 2, Phase2Slots: 2, Marked: 4}, stats[0])
	assert.Equal(t, parmesh.ParBdyStats{Phase1Slots: 2, Phase2Slots: 2, Marked: 2}, stats[1])
	// Only the second group sees the internal jump
	countBdy := func(g *parmesh.Group) (n int) {
		for _, pxt := range g.Mesh.XTetras {
			for _, ft := range pxt.FTag {
				if ft.Has(tags.ParBdyBdy) {
					n++
				}
			}
		}
		return
	}
	assert.Equal(t, 0, countBdy(pms[0].Groups[0]))
	assert.Equal(t, 4, countBdy(pms[0].Groups[1]))
	assert.Equal(t, 2, countBdy(pms[1].Groups[0]))
	assert.Equal(t, 0, countBdy(pms[1].Groups[1]))
}
