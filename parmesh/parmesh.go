package parmesh

import (
	"errors"
	"fmt"
	"math/bits"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/parbdy/comm"
	"github.com/notargets/parbdy/memory"
	"github.com/notargets/parbdy/tetmesh"
)

const intSize = int64(bits.UintSize / 8)

// Group is one local partition of a rank
type Group struct {
	ID   int
	Mesh *tetmesh.Mesh
	// Face interface items of the group: packed {tetra, face} (see
	// comm.EncodeFace) and the internal communicator slot of each item
	Face2IntFaceCommIndex1 []int
	Face2IntFaceCommIndex2 []int
}

func (g *Group) NItemIntFaceComm() int { return len(g.Face2IntFaceCommIndex1) }

// AddFaceItem registers face ifac of tetra iel as interface item of slot idx
func (g *Group) AddFaceItem(iel, ifac, iploc, idx int) {
	g.Face2IntFaceCommIndex1 = append(g.Face2IntFaceCommIndex1, comm.EncodeFace(iel, ifac, iploc))
	g.Face2IntFaceCommIndex2 = append(g.Face2IntFaceCommIndex2, idx)
}

// ParMesh is the state of one rank: its local groups, its face communicators
// and the memory ledger shared by the rank and its group meshes
type ParMesh struct {
	Rank, NProcs int
	Groups       []*Group
	IntFaceComm  *comm.IntComm
	ExtFaceComms []*comm.ExtComm
	Ledger       *memory.Ledger
	Comm         comm.Exchanger
}

func New(ex comm.Exchanger, memGlobalMax int64) *ParMesh {
	return &ParMesh{
		Rank:        ex.Rank(),
		NProcs:      ex.Size(),
		IntFaceComm: comm.NewIntComm(0),
		Ledger:      memory.NewLedger(fmt.Sprintf("rank %d", ex.Rank()), memGlobalMax),
		Comm:        ex,
	}
}

// NewGroup appends a group with an empty mesh charged to the rank ledger
func (pm *ParMesh) NewGroup() *Group {
	id := len(pm.Groups)
	name := fmt.Sprintf("rank %d group %d", pm.Rank, id)
	g := &Group{
		ID:   id,
		Mesh: tetmesh.NewMesh(name, pm.Ledger.NewAccount(name)),
	}
	pm.Groups = append(pm.Groups, g)
	return g
}

// CheckMemory audits the memory counters of the rank, logging violations
func (pm *ParMesh) CheckMemory(msg string) memory.Report {
	return pm.Ledger.Check(msg)
}

// Reconcile runs one consistency pass on the rank: local tags of every group,
// then the cross-rank boundary resolution
func (pm *ParMesh) Reconcile() (stats ParBdyStats, err error) {
	if err = pm.UpdateTag(); err != nil {
		return
	}
	if stats, err = pm.ParBdySet(); err != nil {
		return
	}
	pm.CheckMemory("reconcile")
	return
}

// RunRanks runs fn concurrently on every rank. A failing rank aborts the
// exchanges of the others, and the error of a rank that failed on its own is
// returned in preference to the ErrPeerAborted errors it caused.
func RunRanks(pms []*ParMesh, fn func(pm *ParMesh) error) error {
	var (
		g    errgroup.Group
		errs = make([]error, len(pms))
	)
	for i, pm := range pms {
		g.Go(func() error {
			if errs[i] = fn(pm); errs[i] != nil {
				if a, ok := pm.Comm.(comm.Aborter); ok {
					a.Abort()
				}
			}
			return errs[i]
		})
	}
	if err := g.Wait(); err == nil {
		return nil
	}
	var first error
	for _, err := range errs {
		switch {
		case err == nil:
		case !errors.Is(err, comm.ErrPeerAborted):
			return err
		case first == nil:
			first = err
		}
	}
	return first
}
