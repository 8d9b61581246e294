// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pool provides the fixed-size packet buffer pool that every hot
// stage borrows from and returns to without heap traffic on the hot path.
package pool

import (
	"errors"

	"github.com/Numi2/Numi-orderbook/lfq"
)

// Channel tags the feed a frame arrived on.
type Channel uint8

const (
	ChannelA Channel = iota
	ChannelB
	ChannelRecovery
)

func (c Channel) String() string {
	switch c {
	case ChannelA:
		return "A"
	case ChannelB:
		return "B"
	case ChannelRecovery:
		return "recovery"
	default:
		return "unknown"
	}
}

// TimestampSource ranks the provenance of a frame's wire timestamp, best
// first: hardware raw > hardware sys > software > off.
type TimestampSource uint8

const (
	TSOff TimestampSource = iota
	TSSoftware
	TSHWSys
	TSHWRaw
)

// ErrPoolExhausted is returned by Acquire when no free buffer is available.
var ErrPoolExhausted = errors.New("pool: exhausted")

// Frame is a pool-owned buffer. Exactly one holder owns it at any time on
// the hot path; ownership transfers through SPSC hand-offs between stages,
// and Release returns it to the pool.
type Frame struct {
	Payload     []byte
	Len         int
	Channel     Channel
	ReceiptNS   int64
	WireTS      int64
	TSSource    TimestampSource

	idx  uintptr
	pool *Pool
}

// Release returns the frame to its owning pool. Safe to call only once per
// acquisition; a double release is not detected and puts the same slot on
// the free list twice.
func (f *Frame) Release() {
	if f.pool == nil {
		return
	}
	f.pool.release(f.idx)
}

// Pool is a bounded free-list of fixed-size buffers addressed by slot
// index. The default free-list is lfq.MPMCIndirect, since buffers are
// acquired concurrently by RX-A and RX-B and released by Decode and by
// Merge (on its duplicate, stale-slot and eviction paths). A per-channel carve-out using
// lfq.SPSCIndirect is available via NewChannelPool for the hottest
// RX->Merge edge, where a single RX goroutine is the sole acquirer and a
// single Merge goroutine is the sole releaser.
type Pool struct {
	backing       [][]byte
	frames        []Frame
	free          lfq.QueueIndirect
	maxPacketSize int
}

// New creates a pool of size buffers, each maxPacketSize bytes.
func New(size, maxPacketSize int) *Pool {
	return newPool(size, maxPacketSize, lfq.NewMPMCIndirect(size))
}

// NewChannelPool creates a single-producer single-consumer carve-out pool,
// for use on a dedicated RX channel -> Merge edge.
func NewChannelPool(size, maxPacketSize int) *Pool {
	return newPool(size, maxPacketSize, lfq.NewSPSCIndirect(size))
}

func newPool(size, maxPacketSize int, free lfq.QueueIndirect) *Pool {
	p := &Pool{
		backing:       make([][]byte, size),
		frames:        make([]Frame, size),
		free:          free,
		maxPacketSize: maxPacketSize,
	}
	for i := range p.backing {
		p.backing[i] = make([]byte, maxPacketSize)
		p.frames[i] = Frame{pool: p, idx: uintptr(i)}
		// Seeding fails only if size exceeds the rounded-up free-list
		// capacity, which newPool's caller never does (size == cap).
		_ = p.free.Enqueue(uintptr(i))
	}
	return p
}

// MaxPacketSize returns the fixed buffer size every frame carries.
func (p *Pool) MaxPacketSize() int { return p.maxPacketSize }

// Acquire returns an exclusively owned frame or ErrPoolExhausted.
func (p *Pool) Acquire() (*Frame, error) {
	idx, err := p.free.Dequeue()
	if err != nil {
		return nil, ErrPoolExhausted
	}
	f := &p.frames[idx]
	f.Payload = p.backing[idx][:0]
	f.Len = 0
	return f, nil
}

func (p *Pool) release(idx uintptr) {
	// Enqueue onto a full free-list cannot happen: exactly as many slots
	// are ever outstanding as backing buffers exist.
	_ = p.free.Enqueue(idx)
}

// Drain signals the pool's free-list that producers have stopped, so a
// final drain of in-flight frames during shutdown does not get stalled by
// the livelock-prevention threshold in lfq.MPMCIndirect. Channel carve-out
// pools (SPSCIndirect) have no such threshold and ignore this call.
func (p *Pool) Drain() {
	if d, ok := p.free.(lfq.Drainer); ok {
		d.Drain()
	}
}
