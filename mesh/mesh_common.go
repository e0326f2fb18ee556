package mesh

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/parbdy/tetmesh"
)

// Face represents a face of an element
type Face struct {
	Vertices [3]int // Sorted vertex indices
	Element  int    // Parent element
	LocalID  int    // Local face ID within element
}

// Mesh is the complete tetrahedral mesh before distribution
type Mesh struct {
	// Geometry
	Vertices []r3.Vec

	// Element data
	EtoV        [][4]int // Element to vertex connectivity
	ElementTags []int    // Material reference of each element

	// Connectivity (built during initialization)
	EToE [][4]int // Element to element connectivity, -1 on the boundary
	EToF [][4]int // Element to face connectivity
	EToP []int    // Element to partition mapping (set after partitioning)

	// Face data
	Faces        []Face
	FaceMap      map[[3]int]int // Map from sorted vertices to face ID
	BoundaryTags map[int]string // Boundary condition names

	// Mesh statistics
	NumElements int
	NumVertices int
	NumFaces    int
}

// NewMesh creates an empty mesh
func NewMesh() *Mesh {
	return &Mesh{
		FaceMap:      make(map[[3]int]int),
		BoundaryTags: make(map[int]string),
	}
}

// NewTetMesh creates a mesh from its vertices, connectivity and material
// tags and builds its connectivity
func NewTetMesh(verts []r3.Vec, etov [][4]int, tags []int) (m *Mesh, err error) {
	if len(tags) != len(etov) {
		return nil, fmt.Errorf("%d element tags for %d elements", len(tags), len(etov))
	}
	m = NewMesh()
	m.Vertices = verts
	m.EtoV = etov
	m.ElementTags = tags
	m.NumVertices = len(verts)
	m.NumElements = len(etov)
	if err = m.BuildConnectivity(); err != nil {
		return nil, err
	}
	return
}

// ReadMeshFile reads a mesh file based on extension
func ReadMeshFile(filename string) (*Mesh, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".neu":
		return ReadGambitNeutral(filename)
	default:
		return nil, fmt.Errorf("unsupported mesh format: %s", ext)
	}
}

// GetElementFaces returns the vertices of the four faces of a tetrahedron,
// face i being opposite vertex i as in the local meshes
func GetElementFaces(v [4]int) (faces [4][3]int) {
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			faces[i][j] = v[tetmesh.IDir[i][j]]
		}
	}
	return
}

// BuildConnectivity builds element-to-element and face connectivity
func (m *Mesh) BuildConnectivity() error {
	m.EToE = make([][4]int, m.NumElements)
	m.EToF = make([][4]int, m.NumElements)
	m.Faces = m.Faces[:0]
	m.FaceMap = make(map[[3]int]int, 2*m.NumElements)

	for elemID, verts := range m.EtoV {
		for _, v := range verts {
			if v < 0 || v >= m.NumVertices {
				return fmt.Errorf("element %d: vertex %d out of range [0,%d)", elemID, v, m.NumVertices)
			}
		}
		for localFaceID, faceVerts := range GetElementFaces(verts) {
			m.EToE[elemID][localFaceID] = -1
			sorted := faceVerts
			sort.Ints(sorted[:])

			if faceID, exists := m.FaceMap[sorted]; exists {
				// Face already exists - this is an interior face
				face := &m.Faces[faceID]
				neighborElem, neighborLocalID := face.Element, face.LocalID
				if m.EToE[neighborElem][neighborLocalID] >= 0 {
					return fmt.Errorf("face %v is shared by more than two elements", sorted)
				}
				m.EToE[elemID][localFaceID] = neighborElem
				m.EToE[neighborElem][neighborLocalID] = elemID
				m.EToF[elemID][localFaceID] = faceID
			} else {
				faceID = len(m.Faces)
				m.Faces = append(m.Faces, Face{
					Vertices: sorted,
					Element:  elemID,
					LocalID:  localFaceID,
				})
				m.FaceMap[sorted] = faceID
				m.EToF[elemID][localFaceID] = faceID
			}
		}
	}

	m.NumFaces = len(m.Faces)
	return nil
}

// IsMaterialInterface reports whether face i of element k separates two
// different material references
func (m *Mesh) IsMaterialInterface(k, i int) bool {
	nb := m.EToE[k][i]
	return nb >= 0 && m.ElementTags[nb] != m.ElementTags[k]
}

// PrintStatistics prints mesh statistics
func (m *Mesh) PrintStatistics() {
	fmt.Printf("Mesh Statistics:\n")
	fmt.Printf("  Vertices: %d\n", m.NumVertices)
	fmt.Printf("  Elements: %d\n", m.NumElements)
	fmt.Printf("  Faces: %d\n", m.NumFaces)

	// Count material references
	tagCounts := make(map[int]int)
	for _, t := range m.ElementTags {
		tagCounts[t]++
	}
	tags := make([]int, 0, len(tagCounts))
	for t := range tagCounts {
		tags = append(tags, t)
	}
	sort.Ints(tags)
	fmt.Printf("  Materials:\n")
	for _, t := range tags {
		fmt.Printf("    %d: %d elements\n", t, tagCounts[t])
	}

	// Count boundary and interface faces
	var boundaryFaces, interfaceFaces int
	for k := 0; k < m.NumElements; k++ {
		for i, neighbor := range m.EToE[k] {
			switch {
			case neighbor < 0:
				boundaryFaces++
			case neighbor > k && m.IsMaterialInterface(k, i):
				interfaceFaces++
			}
		}
	}
	fmt.Printf("  Boundary faces: %d\n", boundaryFaces)
	fmt.Printf("  Material interface faces: %d\n", interfaceFaces)
}
