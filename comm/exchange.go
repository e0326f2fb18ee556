package comm

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrExchange    = errors.New("exchange failed")
	ErrPeerAborted = fmt.Errorf("peer rank aborted: %w", ErrExchange)
)

// Exchanger performs blocking paired exchanges between ranks. SendRecv sends
// send to peer and fills recv with the buffer peer sent back under the same
// tag. Both sides must post the matching exchange; there is no timeout.
type Exchanger interface {
	Rank() int
	Size() int
	SendRecv(peer, tag int, send, recv []int) error
}

// Aborter is implemented by exchangers whose pending and future exchanges can
// be released when a rank gives up
type Aborter interface {
	Abort()
}

type message struct {
	tag  int
	data []int
}

// Network connects in-process ranks with one channel per ordered pair of
// ranks. Posting never blocks while fewer than Depth messages are pending.
// Once aborted, every pending or future exchange fails with ErrPeerAborted.
type Network struct {
	size  int
	chans [][]chan message // [source][destination]
	done  chan struct{}
	once  sync.Once
}

const Depth = 4

func NewNetwork(size int) *Network {
	n := &Network{
		size:  size,
		chans: make([][]chan message, size),
		done:  make(chan struct{}),
	}
	for src := 0; src < size; src++ {
		n.chans[src] = make([]chan message, size)
		for dst := 0; dst < size; dst++ {
			if src != dst {
				n.chans[src][dst] = make(chan message, Depth)
			}
		}
	}
	return n
}

func (n *Network) Size() int { return n.size }

// Abort releases every rank blocked in an exchange
func (n *Network) Abort() { n.once.Do(func() { close(n.done) }) }

func (n *Network) Endpoint(rank int) (*Endpoint, error) {
	if rank < 0 || rank >= n.size {
		return nil, fmt.Errorf("rank %d out of range [0,%d)", rank, n.size)
	}
	return &Endpoint{net: n, rank: rank}, nil
}

// Endpoint is the view of the network owned by one rank
type Endpoint struct {
	net  *Network
	rank int
}

func (e *Endpoint) Rank() int { return e.rank }
func (e *Endpoint) Size() int { return e.net.size }
func (e *Endpoint) Abort() { e.net.Abort() }

func (e *Endpoint) SendRecv(peer, tag int, send, recv []int) error {
	if peer < 0 || peer >= e.net.size || peer == e.rank {
		return fmt.Errorf("rank %d: invalid peer %d: %w", e.rank, peer, ErrExchange)
	}
	select {
	case <-e.net.done:
		return fmt.Errorf("rank %d: exchange with rank %d: %w", e.rank, peer, ErrPeerAborted)
	default:
	}
	select {
	case e.net.chans[e.rank][peer] <- message{tag: tag, data: append([]int(nil), send...)}:
	case <-e.net.done:
		return fmt.Errorf("rank %d: sending to rank %d: %w", e.rank, peer, ErrPeerAborted)
	}
	var msg message
	select {
	case msg = <-e.net.chans[peer][e.rank]:
	case <-e.net.done:
		return fmt.Errorf("rank %d: receiving from rank %d: %w", e.rank, peer, ErrPeerAborted)
	}
	if msg.tag != tag {
		return fmt.Errorf("rank %d: received tag %d from rank %d, expected %d: %w",
			e.rank, msg.tag, peer, tag, ErrExchange)
	}
	if len(msg.data) != len(recv) {
		return fmt.Errorf("rank %d: received %d items from rank %d, expected %d: %w",
			e.rank, len(msg.data), peer, len(recv), ErrExchange)
	}
	copy(recv, msg.data)
	return nil
}

// Serial is the exchanger of a run on a single rank, where no exchange can
// have a partner
type Serial struct{}

func (Serial) Rank() int { return 0 }
func (Serial) Size() int { return 1 }

func (Serial) SendRecv(peer, tag int, send, recv []int) error {
	return fmt.Errorf("single rank run has no peer %d: %w", peer, ErrExchange)
}
