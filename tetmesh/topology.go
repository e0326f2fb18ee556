package tetmesh

import "sort"

// Local numbering of a tetrahedron. Face i is opposite vertex i and its
// vertices are listed so that the face normal points outward.
var (
	IDir = [4][3]int{{1, 2, 3}, {0, 3, 2}, {0, 1, 3}, {0, 2, 1}}
	// IArE gives the two vertices of each edge
	IArE = [6][2]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	// IArF gives the three edges of each face
	IArF = [4][3]int{{5, 4, 3}, {5, 1, 2}, {4, 2, 0}, {3, 0, 1}}
)

type faceKey [3]int

func newFaceKey(v [3]int) faceKey {
	s := v[:]
	sort.Ints(s)
	return faceKey{s[0], s[1], s[2]}
}

// Adjacency returns the face neighbour table: entry 4*k+i holds 4*k'+i' when
// face i of tetra k is glued to face i' of tetra k', -1 on a mesh boundary
func (m *Mesh) Adjacency() (adja []int) {
	adja = make([]int, 4*len(m.Tetras))
	open := make(map[faceKey]int, 2*len(m.Tetras))
	for k := range m.Tetras {
		for i := 0; i < 4; i++ {
			adja[4*k+i] = -1
			key := newFaceKey(m.FaceVertices(k, i))
			if other, found := open[key]; found {
				adja[4*k+i] = other
				adja[other] = 4*k + i
				delete(open, key)
			} else {
				open[key] = 4*k + i
			}
		}
	}
	return
}
