package comm

// Message tags of the exchanges issued by this module
const (
	RefTag = 1000 + iota // Tetra references on face communicators
)

// EncodeFace packs a tetra index, a local face index and the local index of
// the face vertex used as origin into one integer
func EncodeFace(iel, ifac, iploc int) int { return 12*iel + 3*ifac + iploc }

func DecodeFace(code int) (iel, ifac, iploc int) {
	iel = code / 12
	ifac = (code % 12) / 3
	iploc = code % 3
	return
}

// IntComm is the internal communicator of a rank: one slot per interface item
// known to the rank, addressed by slot id. Several groups of the rank, and at
// most two ranks, may reference the same slot.
type IntComm struct {
	NItem     int
	IntValues []int // Scratch values, one per slot
}

func NewIntComm(nitem int) *IntComm { return &IntComm{NItem: nitem} }

// ExtComm links the slots of the internal communicator to the matching items
// of one neighbour rank. Entry i of both sides designates the same item.
type ExtComm struct {
	ColorIn      int // This rank
	ColorOut     int // Neighbour rank
	NItem        int
	IntCommIndex []int // Local slot id of each item
	IToSend      []int
	IToRecv      []int
}

func NewExtComm(colorIn, colorOut int, intCommIndex []int) *ExtComm {
	return &ExtComm{
		ColorIn:      colorIn,
		ColorOut:     colorOut,
		NItem:        len(intCommIndex),
		IntCommIndex: intCommIndex,
	}
}
