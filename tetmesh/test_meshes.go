package tetmesh

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/parbdy/memory"
)

// Standard small meshes shared by the tests of this and dependent packages

var (
	twoTetPoints = []r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1},
		{X: 1, Y: 1, Z: 1},
	}
	twoTetElements = [][4]int{
		{0, 1, 2, 3},
		{1, 2, 3, 4}, // Shares face {1,2,3} with tetra 0
	}

	cubePoints = []r3.Vec{
		{X: 0, Y: 0, Z: 0}, // 0: origin
		{X: 1, Y: 0, Z: 0}, // 1: x
		{X: 1, Y: 1, Z: 0}, // 2: xy
		{X: 0, Y: 1, Z: 0}, // 3: y
		{X: 0, Y: 0, Z: 1}, // 4: z
		{X: 1, Y: 0, Z: 1}, // 5: xz
		{X: 1, Y: 1, Z: 1}, // 6: xyz
		{X: 0, Y: 1, Z: 1}, // 7: yz
	}
	// Kuhn split of the unit cube, every tetra shares the diagonal 0-6
	cubeElements = [][4]int{
		{0, 1, 2, 6},
		{0, 2, 3, 6},
		{0, 3, 7, 6},
		{0, 7, 4, 6},
		{0, 4, 5, 6},
		{0, 5, 1, 6},
	}
)

// CubeElements returns the connectivity of NewCubeMesh
func CubeElements() [][4]int { return append([][4]int(nil), cubeElements...) }

// CubePoints returns the coordinates of NewCubeMesh
func CubePoints() []r3.Vec { return append([]r3.Vec(nil), cubePoints...) }

// NewTwoTetMesh builds two tetrahedra glued by one face with the given
// references
func NewTwoTetMesh(acct *memory.Account, ref0, ref1 int) (*Mesh, error) {
	return newFixture("two-tet", acct, twoTetPoints, twoTetElements, []int{ref0, ref1})
}

// NewCubeMesh builds the six-tetra unit cube with the given references
func NewCubeMesh(acct *memory.Account, refs [6]int) (*Mesh, error) {
	return newFixture("cube", acct, cubePoints, cubeElements, refs[:])
}

func newFixture(name string, acct *memory.Account, pts []r3.Vec, elems [][4]int, refs []int) (m *Mesh, err error) {
	m = NewMesh(name, acct)
	for _, c := range pts {
		if _, err = m.AddPoint(c); err != nil {
			return nil, err
		}
	}
	for k, v := range elems {
		if _, err = m.AddTetra(v, refs[k]); err != nil {
			return nil, err
		}
	}
	return m, nil
}
