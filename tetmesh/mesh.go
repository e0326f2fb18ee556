package tetmesh

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/parbdy/memory"
	"github.com/notargets/parbdy/tags"
)

// NoRecord marks an absent extended point/tetra record
const NoRecord = -1

var ErrNoXTetra = errors.New("tetrahedron has no extended record")

// Point is a mesh vertex
type Point struct {
	C   r3.Vec
	Ref int
	Tag tags.Tag
	XP  int // Index into Mesh.XPoints, NoRecord if none
}

// XPoint holds attributes only meaningful on boundary points
type XPoint struct {
	N1, N2 r3.Vec // Surface normals, N2 is set on ridges only
}

type Tetra struct {
	V   [4]int // Point indices
	Ref int    // Material reference
	XT  int    // Index into Mesh.XTetras, NoRecord for an interior tetrahedron
}

// XTetra exists only for tetrahedra touching a boundary or a partition cut
type XTetra struct {
	FTag [4]tags.Tag // Face tags, face i is opposite vertex i
	ETag [6]tags.Tag // Edge tags, edge numbering from IArE
	FRef [4]int      // Face references
}

type Info struct {
	NoSurf bool // Freeze the surface: boundary faces, edges and points become Required|NoSurf
}

// Mesh is the local mesh of one group
type Mesh struct {
	Name    string
	Points  []Point
	XPoints []XPoint
	Tetras  []Tetra
	XTetras []XTetra
	Info    Info
	Memory  *memory.Account
}

var (
	pointSize  = int64(unsafe.Sizeof(Point{}))
	xpointSize = int64(unsafe.Sizeof(XPoint{}))
	tetraSize  = int64(unsafe.Sizeof(Tetra{}))
	xtetraSize = int64(unsafe.Sizeof(XTetra{}))
)

// NewMesh returns an empty mesh charging its allocations to acct. A nil
// account is replaced by an unbounded standalone one.
func NewMesh(name string, acct *memory.Account) *Mesh {
	if acct == nil {
		acct = memory.NewAccount(name, math.MaxInt64)
	}
	return &Mesh{
		Name:   name,
		Memory: acct,
	}
}

func (m *Mesh) NP() int { return len(m.Points) }
func (m *Mesh) NE() int { return len(m.Tetras) }
func (m *Mesh) XT() int { return len(m.XTetras) }

func (m *Mesh) AddPoint(c r3.Vec) (ip int, err error) {
	if err = m.Memory.Alloc(pointSize, "point"); err != nil {
		return NoRecord, err
	}
	m.Points = append(m.Points, Point{C: c, XP: NoRecord})
	return len(m.Points) - 1, nil
}

func (m *Mesh) AddTetra(v [4]int, ref int) (k int, err error) {
	for _, ip := range v {
		if ip < 0 || ip >= len(m.Points) {
			return NoRecord, fmt.Errorf("%s: tetra vertex %d out of range [0,%d)", m.Name, ip, len(m.Points))
		}
	}
	if err = m.Memory.Alloc(tetraSize, "tetra"); err != nil {
		return NoRecord, err
	}
	m.Tetras = append(m.Tetras, Tetra{V: v, Ref: ref, XT: NoRecord})
	return len(m.Tetras) - 1, nil
}

// NewXTetra returns the extended record of tetra k, allocating it if needed
func (m *Mesh) NewXTetra(k int) (pxt *XTetra, err error) {
	pt := &m.Tetras[k]
	if pt.XT != NoRecord {
		return &m.XTetras[pt.XT], nil
	}
	if err = m.Memory.Alloc(xtetraSize, "xtetra"); err != nil {
		return nil, err
	}
	m.XTetras = append(m.XTetras, XTetra{})
	pt.XT = len(m.XTetras) - 1
	return &m.XTetras[pt.XT], nil
}

// NewXPoint links point ip to an extended record holding normal n
func (m *Mesh) NewXPoint(ip int, n r3.Vec) (pxp *XPoint, err error) {
	ppt := &m.Points[ip]
	if ppt.XP != NoRecord {
		return &m.XPoints[ppt.XP], nil
	}
	if err = m.Memory.Alloc(xpointSize, "xpoint"); err != nil {
		return nil, err
	}
	m.XPoints = append(m.XPoints, XPoint{N1: n})
	ppt.XP = len(m.XPoints) - 1
	return &m.XPoints[ppt.XP], nil
}

// XTetraOf returns the extended record of tetra k
func (m *Mesh) XTetraOf(k int) (*XTetra, error) {
	if k < 0 || k >= len(m.Tetras) {
		return nil, fmt.Errorf("%s: tetra %d out of range [0,%d)", m.Name, k, len(m.Tetras))
	}
	xt := m.Tetras[k].XT
	if xt == NoRecord {
		return nil, fmt.Errorf("%s: tetra %d: %w", m.Name, k, ErrNoXTetra)
	}
	return &m.XTetras[xt], nil
}

// FaceVertices returns the point indices of face ifac of tetra k
func (m *Mesh) FaceVertices(k, ifac int) (v [3]int) {
	pt := &m.Tetras[k]
	for j := 0; j < 3; j++ {
		v[j] = pt.V[IDir[ifac][j]]
	}
	return
}

// EdgeVertices returns the point indices of edge ia of tetra k
func (m *Mesh) EdgeVertices(k, ia int) (ip0, ip1 int) {
	pt := &m.Tetras[k]
	return pt.V[IArE[ia][0]], pt.V[IArE[ia][1]]
}
