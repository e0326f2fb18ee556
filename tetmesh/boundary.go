package tetmesh

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/parbdy/tags"
)

// FaceNormal returns the unit outward normal of face ifac of tetra k
func (m *Mesh) FaceNormal(k, ifac int) r3.Vec {
	v := m.FaceVertices(k, ifac)
	a, b, c := m.Points[v[0]].C, m.Points[v[1]].C, m.Points[v[2]].C
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if r3.Norm(n) == 0 {
		return n
	}
	return r3.Unit(n)
}

// AnalyzeBoundary tags the geometric boundary of a freshly loaded mesh. A face
// is a boundary when it has no neighbour, or when its neighbour carries a
// different material reference. Faces without neighbour for which isInterface
// returns true lie on a partition cut: their tetra gets an extended record but
// no tag, the tag pass handles them. The per-tetra edge tags written here are
// not made consistent across tetrahedra.
func (m *Mesh) AnalyzeBoundary(isInterface func(k, ifac int) bool) (nbdy int, err error) {
	adja := m.Adjacency()
	for k := range m.Tetras {
		for ifac := 0; ifac < 4; ifac++ {
			var (
				nb       = adja[4*k+ifac]
				cut      = nb < 0 && isInterface != nil && isInterface(k, ifac)
				boundary bool
			)
			switch {
			case nb < 0:
				boundary = !cut
			default:
				boundary = m.Tetras[nb/4].Ref != m.Tetras[k].Ref
			}
			if !boundary && !cut {
				continue
			}
			var pxt *XTetra
			if pxt, err = m.NewXTetra(k); err != nil {
				return
			}
			if !boundary {
				continue
			}
			nbdy++
			pxt.FTag[ifac] |= tags.Boundary
			pxt.FRef[ifac] = m.Tetras[k].Ref
			for j := 0; j < 3; j++ {
				pxt.ETag[IArF[ifac][j]] |= tags.Boundary
			}
			n := m.FaceNormal(k, ifac)
			for _, ip := range m.FaceVertices(k, ifac) {
				m.Points[ip].Tag |= tags.Boundary
				if _, err = m.NewXPoint(ip, n); err != nil {
					return
				}
			}
		}
	}
	return
}
