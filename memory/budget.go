package memory

import (
	"errors"
	"fmt"
	"log"
)

var (
	ErrOutOfMemory = errors.New("allocation exceeds memory budget")
	ErrNotOwner    = errors.New("account does not hold the budget token")
)

// Snapshot is the counter state of one owner, in bytes
type Snapshot struct {
	Current   int64 // Bytes currently allocated
	HighWater int64 // Largest value Current has reached
	Capacity  int64 // Bytes this owner may reach; Current while not holding the token
}

func (s Snapshot) Headroom() int64 {
	if s.Capacity < s.Current {
		return 0
	}
	return s.Capacity - s.Current
}

// Account tracks the allocations of a single owner: the rank-level context
// or one local mesh
type Account struct {
	Name   string
	snap   Snapshot
	ledger *Ledger
}

// NewAccount returns a standalone account with a fixed capacity. It is never
// lent or reclaimed and always holds its own token.
func NewAccount(name string, capacity int64) *Account {
	return &Account{
		Name: name,
		snap: Snapshot{Capacity: capacity},
	}
}

func (a *Account) Snapshot() Snapshot { return a.snap }

// Alloc checks an allocation of n bytes against the account capacity
func (a *Account) Alloc(n int64, what string) error {
	if a.ledger != nil && a.ledger.holder != a {
		return fmt.Errorf("%s: %s (%d bytes): %w", a.Name, what, n, ErrNotOwner)
	}
	if a.snap.Current+n > a.snap.Capacity {
		return fmt.Errorf("%s: %s needs %d bytes, %d available: %w",
			a.Name, what, n, a.snap.Headroom(), ErrOutOfMemory)
	}
	a.snap.Current += n
	if a.snap.Current > a.snap.HighWater {
		a.snap.HighWater = a.snap.Current
	}
	return nil
}

func (a *Account) Free(n int64) {
	a.snap.Current -= n
	if a.snap.Current < 0 {
		a.snap.Current = 0
	}
}

// Token is a value snapshot of the budget ownership
type Token struct {
	Holder   string
	Headroom int64
}

// Ledger shares one ceiling between a rank-level account and the local mesh
// accounts of that rank. Exactly one account holds the token at a time, and
// only that account may allocate.
type Ledger struct {
	GlobalMax int64
	rank      *Account
	meshes    []*Account
	holder    *Account
}

func NewLedger(name string, globalMax int64) *Ledger {
	l := &Ledger{GlobalMax: globalMax}
	l.rank = &Account{
		Name:   name,
		snap:   Snapshot{Capacity: globalMax},
		ledger: l,
	}
	l.holder = l.rank
	return l
}

func (l *Ledger) Rank() *Account { return l.rank }

func (l *Ledger) Meshes() []*Account { return l.meshes }

func (l *Ledger) Holder() *Account { return l.holder }

func (l *Ledger) Token() Token {
	return Token{Holder: l.holder.Name, Headroom: l.holder.snap.Headroom()}
}

// NewAccount registers a local mesh account. It starts with no headroom.
func (l *Ledger) NewAccount(name string) *Account {
	a := &Account{Name: name, ledger: l}
	l.meshes = append(l.meshes, a)
	return a
}

// Reclaim gives all memory not currently in use to the rank account and makes
// it the token holder. It returns the available headroom.
func (l *Ledger) Reclaim() (available int64) {
	used := l.rank.snap.Current
	for _, m := range l.meshes {
		used += m.snap.Current
		m.snap.Capacity = m.snap.Current
	}
	if available = l.GlobalMax - used; available < 0 {
		available = 0
	}
	l.rank.snap.Capacity = l.rank.snap.Current + available
	l.holder = l.rank
	return
}

// Transfer moves the unused headroom of the current holder to the given
// account, which becomes the holder
func (l *Ledger) Transfer(to *Account) error {
	if to.ledger != l {
		return fmt.Errorf("transfer to %s: account not registered with %s", to.Name, l.rank.Name)
	}
	if to == l.holder {
		return nil
	}
	from := l.holder
	available := from.snap.Headroom()
	from.snap.Capacity = from.snap.Current
	to.snap.Capacity = to.snap.Current + available
	l.holder = to
	return nil
}

// Lend makes the given account the holder while fn runs, then returns the
// headroom to the rank account whatever fn returned
func (l *Ledger) Lend(to *Account, fn func() error) (err error) {
	if err = l.Transfer(to); err != nil {
		return
	}
	defer func() {
		if terr := l.Transfer(l.rank); err == nil {
			err = terr
		}
	}()
	return fn()
}

// Report is the result of an audit of the summed counters of a rank
type Report struct {
	Current, HighWater, GlobalMax      int64
	CurrentExceeded, HighWaterExceeded bool
}

// Audit sums the counters of the rank and all its local meshes and compares
// them with the ceiling. It does not change any state.
func (l *Ledger) Audit() (r Report) {
	r.GlobalMax = l.GlobalMax
	r.Current, r.HighWater = l.rank.snap.Current, l.rank.snap.HighWater
	for _, m := range l.meshes {
		r.Current += m.snap.Current
		r.HighWater += m.snap.HighWater
	}
	r.CurrentExceeded = r.Current > r.GlobalMax
	r.HighWaterExceeded = r.HighWater > r.GlobalMax
	return
}

// Check runs Audit and logs a warning for each violated ceiling
func (l *Ledger) Check(msg string) Report {
	const mb = 1024. * 1024.
	r := l.Audit()
	if r.CurrentExceeded {
		log.Printf("%s: %s: current memory check failed: %8.2fMb > ceiling %8.2fMb",
			l.rank.Name, msg, float64(r.Current)/mb, float64(r.GlobalMax)/mb)
	}
	if r.HighWaterExceeded {
		log.Printf("%s: %s: high-water memory check failed: %8.2fMb > ceiling %8.2fMb",
			l.rank.Name, msg, float64(r.HighWater)/mb, float64(r.GlobalMax)/mb)
	}
	return r
}
