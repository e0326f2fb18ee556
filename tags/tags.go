package tags

import (
	"strconv"
	"strings"
)

// Tag is a set of independent boundary/interface flags carried by points,
// tetrahedron edges and tetrahedron faces
type Tag uint16

const NoTag Tag = 0

const (
	Ref          Tag = 1 << 0  // Entity carries a reference edge/point
	Geo          Tag = 1 << 1  // Ridge (sharp geometric feature)
	Required     Tag = 1 << 2  // Immutable by remeshing
	NonManifold  Tag = 1 << 3  // Non-manifold entity
	Boundary     Tag = 1 << 4  // Geometric boundary
	Corner       Tag = 1 << 5  // Corner point
	NoSurf       Tag = 1 << 6  // Boundary constrained not to change as a surface
	OpenBoundary Tag = 1 << 7  // Internal open boundary
	ParBdyBdy    Tag = 1 << 12 // Partition cut that is also a material boundary
	ParBdy       Tag = 1 << 13 // Partition cut
)

// ParallelMask is the set of flags written on every entity of a partition cut
const ParallelMask = ParBdy | Boundary | Required | NoSurf

var names = []struct {
	t    Tag
	name string
}{
	{Ref, "REF"},
	{Geo, "GEO"},
	{Required, "REQ"},
	{NonManifold, "NOM"},
	{Boundary, "BDY"},
	{Corner, "CRN"},
	{NoSurf, "NOSURF"},
	{OpenBoundary, "OPNBDY"},
	{ParBdyBdy, "PARBDYBDY"},
	{ParBdy, "PARBDY"},
}

// Has reports whether every bit of flags is set
func (t Tag) Has(flags Tag) bool { return t&flags == flags }

// HasAny reports whether at least one bit of flags is set
func (t Tag) HasAny(flags Tag) bool { return t&flags != 0 }

func (t Tag) Set(flags Tag) Tag { return t | flags }

func (t Tag) Clear(flags Tag) Tag { return t &^ flags }

func (t Tag) String() string {
	if t == NoTag {
		return "NOTAG"
	}
	var (
		parts []string
		rest  = t
	)
	for _, n := range names {
		if t.Has(n.t) {
			parts = append(parts, n.name)
			rest &^= n.t
		}
	}
	if rest != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(rest), 16))
	}
	return strings.Join(parts, "|")
}

// TagParallel marks an entity as lying on a partition cut
func TagParallel(t Tag) Tag { return t | ParallelMask }

// UntagParallel removes the flags of a stale partition cut. Nothing is cleared
// unless ParBdy is present; in that case ParBdy is removed together with
// whichever of Boundary, Required and NoSurf are set. ParBdyBdy and every
// other durable flag survive, so a face that was both a cut and a material
// boundary keeps that information until the boundary pass reinstates it.
func UntagParallel(t Tag) Tag {
	if !t.Has(ParBdy) {
		return t
	}
	t &^= ParBdy
	if t.Has(Boundary) {
		t &^= Boundary
	}
	if t.Has(Required) {
		t &^= Required
	}
	if t.Has(NoSurf) {
		t &^= NoSurf
	}
	return t
}
