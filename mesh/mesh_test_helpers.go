package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/parbdy/tetmesh"
)

// Standard global meshes shared by the tests of this and dependent packages.
// They use the same vertex layout as the tetmesh fixtures.

// NewCubeMesh returns the six-tetra unit cube with the given material tags
func NewCubeMesh(tags [6]int) (*Mesh, error) {
	return NewTetMesh(tetmesh.CubePoints(), tetmesh.CubeElements(), tags[:])
}

// NewBarMesh returns n unit cubes stacked along x, each split in six
// tetrahedra like NewCubeMesh. Elements 6*i to 6*i+5 fill cube i and get the
// material tag tag(i).
func NewBarMesh(n int, tag func(cube int) int) (*Mesh, error) {
	if n < 1 {
		return nil, fmt.Errorf("bar of %d cubes", n)
	}
	var (
		cubePts = tetmesh.CubePoints()
		index   = func(x, y, z int) int { return 4*x + 2*y + z }
		verts   = make([]r3.Vec, 4*(n+1))
		etov    [][4]int
		tags    []int
	)
	for x := 0; x <= n; x++ {
		for y := 0; y < 2; y++ {
			for z := 0; z < 2; z++ {
				verts[index(x, y, z)] = r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)}
			}
		}
	}
	for i := 0; i < n; i++ {
		for _, el := range tetmesh.CubeElements() {
			var v [4]int
			for j, ip := range el {
				c := cubePts[ip]
				v[j] = index(i+int(c.X), int(c.Y), int(c.Z))
			}
			etov = append(etov, v)
			tags = append(tags, tag(i))
		}
	}
	return NewTetMesh(verts, etov, tags)
}
