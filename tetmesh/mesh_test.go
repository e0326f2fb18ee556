package tetmesh

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/parbdy/memory"
	"github.com/notargets/parbdy/tags"
)

func TestLocalNumbering(t *testing.T) {
	// The edges of face i are the edges between the vertices of face i
	for ifac := 0; ifac < 4; ifac++ {
		verts := map[int]bool{}
		for _, v := range IDir[ifac] {
			assert.NotEqual(t, ifac, v, "face %d contains its opposite vertex", ifac)
			verts[v] = true
		}
		for _, ia := range IArF[ifac] {
			assert.True(t, verts[IArE[ia][0]] && verts[IArE[ia][1]],
				"edge %d is not on face %d", ia, ifac)
		}
	}
}

func TestAdjacency(t *testing.T) {
	m, err := NewTwoTetMesh(nil, 1, 1)
	require.NoError(t, err)
	adja := m.Adjacency()
	// The shared face {1,2,3} is face 0 of tetra 0 and face 3 of tetra 1
	assert.Equal(t, 4*1+3, adja[0])
	assert.Equal(t, 0, adja[4*1+3])
	nbdy := 0
	for _, a := range adja {
		if a < 0 {
			nbdy++
		}
	}
	assert.Equal(t, 6, nbdy)

	cube, err := NewCubeMesh(nil, [6]int{})
	require.NoError(t, err)
	nbdy = 0
	for i, a := range cube.Adjacency() {
		if a < 0 {
			nbdy++
			continue
		}
		assert.Equal(t, i, cube.Adjacency()[a], "adjacency is not reciprocal")
	}
	assert.Equal(t, 12, nbdy)
}

func TestAnalyzeBoundary(t *testing.T) {
	cube, err := NewCubeMesh(nil, [6]int{1, 1, 1, 2, 2, 2})
	require.NoError(t, err)
	nbdy, err := cube.AnalyzeBoundary(nil)
	require.NoError(t, err)
	// 12 outer faces, plus both sides of the two faces between materials
	assert.Equal(t, 16, nbdy)
	assert.Equal(t, 6, cube.XT())
	for _, p := range cube.Points {
		assert.True(t, p.Tag.Has(tags.Boundary))
		assert.NotEqual(t, NoRecord, p.XP)
	}
	// The diagonal 0-6 is only on the material boundary
	pxt, err := cube.XTetraOf(0)
	require.NoError(t, err)
	assert.True(t, pxt.ETag[2].Has(tags.Boundary))
}

func TestAnalyzeBoundary_Interface(t *testing.T) {
	m, err := NewTwoTetMesh(nil, 1, 1)
	require.NoError(t, err)
	// Pretend face 1 of tetra 1 is a partition cut
	isCut := func(k, ifac int) bool { return k == 1 && ifac == 1 }
	nbdy, err := m.AnalyzeBoundary(isCut)
	require.NoError(t, err)
	assert.Equal(t, 5, nbdy)
	pxt, err := m.XTetraOf(1)
	require.NoError(t, err)
	assert.Equal(t, tags.NoTag, pxt.FTag[1])
	assert.Equal(t, tags.NoTag, pxt.FTag[3])
	assert.True(t, pxt.FTag[0].Has(tags.Boundary))
}

func TestXTetraOf(t *testing.T) {
	m, err := NewTwoTetMesh(nil, 1, 1)
	require.NoError(t, err)
	_, err = m.XTetraOf(0)
	assert.True(t, errors.Is(err, ErrNoXTetra))
	_, err = m.XTetraOf(5)
	assert.Error(t, err)
	_, err = m.AddTetra([4]int{0, 1, 2, 9}, 1)
	assert.Error(t, err)
}

func TestMesh_MemoryCharged(t *testing.T) {
	acct := memory.NewAccount("small", pointSize*5+tetraSize)
	_, err := NewTwoTetMesh(acct, 1, 1)
	assert.True(t, errors.Is(err, memory.ErrOutOfMemory))
	assert.Equal(t, pointSize*5+tetraSize, acct.Snapshot().Current)
}

func TestEdgeTagTable(t *testing.T) {
	m, err := NewCubeMesh(nil, [6]int{})
	require.NoError(t, err)
	before := m.Memory.Snapshot().Current
	h, err := NewEdgeTagTable(m, 6)
	require.NoError(t, err)
	assert.Equal(t, before+49*edgeEntrySize, m.Memory.Snapshot().Current)

	require.NoError(t, h.Edge(0, 6, 3, tags.NoTag))
	require.NoError(t, h.Edge(6, 0, 4, tags.Boundary))
	require.NoError(t, h.Tag(0, 6, tags.Required))
	ref, tag, err := h.Get(6, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, ref)
	assert.Equal(t, tags.Boundary|tags.Required, tag)
	assert.Equal(t, 1, h.Len())

	assert.True(t, errors.Is(h.Tag(1, 7, tags.Boundary), ErrEdgeNotFound))
	_, _, err = h.Get(1, 7)
	assert.True(t, errors.Is(err, ErrEdgeNotFound))
	assert.Error(t, h.Edge(2, 2, 0, tags.NoTag))

	h.Release()
	h.Release()
	assert.Equal(t, before, m.Memory.Snapshot().Current)
}

func TestEdgeTagTable_OutOfMemory(t *testing.T) {
	m, err := NewCubeMesh(memory.NewAccount("tight", 8*pointSize+6*tetraSize+edgeEntrySize), [6]int{})
	require.NoError(t, err)
	_, err = NewEdgeTagTable(m, 6)
	assert.True(t, errors.Is(err, memory.ErrOutOfMemory))
}
