package tetmesh

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/notargets/parbdy/tags"
)

var ErrEdgeNotFound = errors.New("edge not found in edge table")

// EdgeKey identifies an edge by its two point indices, smallest first
type EdgeKey struct {
	A, B int
}

func NewEdgeKey(ip0, ip1 int) EdgeKey {
	if ip0 > ip1 {
		ip0, ip1 = ip1, ip0
	}
	return EdgeKey{ip0, ip1}
}

type edgeEntry struct {
	Ref int
	Tag tags.Tag
}

var edgeEntrySize = int64(unsafe.Sizeof(EdgeKey{}) + unsafe.Sizeof(edgeEntry{}))

// EdgeTagTable accumulates one tag per edge while the faces of a mesh are
// visited. Every tetrahedron sharing an edge reads back the same value.
type EdgeTagTable struct {
	mesh    *Mesh
	entries map[EdgeKey]edgeEntry
	charged int64
}

// NewEdgeTagTable sizes the table for a mesh with nxt extended tetrahedra and
// charges it against the mesh memory account
func NewEdgeTagTable(m *Mesh, nxt int) (*EdgeTagTable, error) {
	hmax := 8*nxt + 1
	charge := int64(hmax) * edgeEntrySize
	if err := m.Memory.Alloc(charge, "edge table"); err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}
	return &EdgeTagTable{
		mesh:    m,
		entries: make(map[EdgeKey]edgeEntry, 6*nxt),
		charged: charge,
	}, nil
}

// Edge inserts an edge, or ORs tag into it when already present
func (h *EdgeTagTable) Edge(ip0, ip1, ref int, tag tags.Tag) error {
	if ip0 == ip1 {
		return fmt.Errorf("%s: degenerate edge (%d,%d)", h.mesh.Name, ip0, ip1)
	}
	key := NewEdgeKey(ip0, ip1)
	e, found := h.entries[key]
	if !found {
		e.Ref = ref
	}
	e.Tag |= tag
	h.entries[key] = e
	return nil
}

// Tag ORs tag into an existing edge
func (h *EdgeTagTable) Tag(ip0, ip1 int, tag tags.Tag) error {
	key := NewEdgeKey(ip0, ip1)
	e, found := h.entries[key]
	if !found {
		return fmt.Errorf("%s: edge (%d,%d): %w", h.mesh.Name, ip0, ip1, ErrEdgeNotFound)
	}
	e.Tag |= tag
	h.entries[key] = e
	return nil
}

func (h *EdgeTagTable) Get(ip0, ip1 int) (ref int, tag tags.Tag, err error) {
	e, found := h.entries[NewEdgeKey(ip0, ip1)]
	if !found {
		return 0, tags.NoTag, fmt.Errorf("%s: edge (%d,%d): %w", h.mesh.Name, ip0, ip1, ErrEdgeNotFound)
	}
	return e.Ref, e.Tag, nil
}

func (h *EdgeTagTable) Len() int { return len(h.entries) }

// Release drops the entries and returns the memory charge to the mesh account
func (h *EdgeTagTable) Release() {
	if h.entries == nil {
		return
	}
	h.entries = nil
	h.mesh.Memory.Free(h.charged)
	h.charged = 0
}
