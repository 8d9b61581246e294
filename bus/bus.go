// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bus implements the PubSub fan-out stage: Decode publishes OBO
// frames, the bus assigns a per-instrument monotonic sequence, and each
// subscriber drains its own bounded ring without ever stalling the
// producer.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/Numi2/Numi-orderbook/lfq"
	"github.com/Numi2/Numi-orderbook/proto"
)

const maxPayload = 64

// Frame is the value type carried by every SubscriberRing: a copy of the
// OBO header plus a fixed-size payload buffer, sized generously above any
// payload defined in proto (the largest is OBOAddPayload at 40 bytes).
type Frame struct {
	Header     proto.Header
	Payload    [maxPayload]byte
	PayloadLen int
}

// isControlMsg reports whether mt is exempt from per-instrument sequence
// assignment: snapshot-protocol frames and Gap sidebands are not part of
// the per-instrument OBO sequence space, so they always carry Sequence 0.
func isControlMsg(mt proto.MessageType) bool {
	switch mt {
	case proto.MsgSnapshotStart, proto.MsgSnapshotEnd, proto.MsgSnapshotHdr, proto.MsgGap:
		return true
	}
	return false
}

type historyEntry struct {
	seq   uint64
	frame Frame
}

type instrumentState struct {
	seq     uint64
	history []historyEntry // ring buffer, oldest overwritten first
	histPos int
}

type subscriberHandle struct {
	id          uint64
	instruments map[uint64]bool
	ring        *lfq.SPSC[Frame]
	dropped     atomic.Bool
}

func (s *subscriberHandle) wants(instrumentID uint64) bool {
	if len(s.instruments) == 0 {
		return true // empty set subscribes to everything
	}
	return s.instruments[instrumentID]
}

// Hooks receives the bus's countable events.
type Hooks interface {
	OnFramesOut(n int)
	OnBytesOut(n int)
	OnSubscriberDropped()
}

// NoopHooks implements Hooks with no-ops.
type NoopHooks struct{}

func (NoopHooks) OnFramesOut(int)        {}
func (NoopHooks) OnBytesOut(int)         {}
func (NoopHooks) OnSubscriberDropped()   {}

// Bus is the PubSub fan-out stage. Publish has a single producer (Decode)
// by architecture, so instrument sequence counters need no synchronization
// of their own; subscriber administration (Subscribe/unsubscribe) is rare
// and protected by a mutex, while the hot publish path reads the
// subscriber list through an atomic snapshot pointer.
type Bus struct {
	ringCapacity int
	historySize  int
	nowFunc      func() int64
	hooks        Hooks

	instruments map[uint64]*instrumentState

	mu          sync.Mutex
	nextSubID   uint64
	subscribers atomic.Pointer[[]*subscriberHandle]
}

// New creates a Bus. ringCapacity bounds each subscriber's unread frames;
// historySize bounds how far back Subscribe's from_seq replay can reach.
func New(ringCapacity, historySize int, nowFunc func() int64, hooks Hooks) *Bus {
	if hooks == nil {
		hooks = NoopHooks{}
	}
	b := &Bus{
		ringCapacity: ringCapacity,
		historySize:  historySize,
		nowFunc:      nowFunc,
		hooks:        hooks,
		instruments:  make(map[uint64]*instrumentState),
	}
	empty := []*subscriberHandle{}
	b.subscribers.Store(&empty)
	return b
}

func (b *Bus) stateFor(instrumentID uint64) *instrumentState {
	st, ok := b.instruments[instrumentID]
	if !ok {
		st = &instrumentState{history: make([]historyEntry, b.historySize)}
		b.instruments[instrumentID] = st
	}
	return st
}

// Publish assigns the next per-instrument sequence (or 0, for the control
// message types of isControlMsg: snapshot-protocol frames and Gap), fans the frame out to every
// subscriber interested in instrumentID, and never blocks: a subscriber
// whose ring is full is marked dropped and its slot reclaimed on the next
// Subscribe administrative pass.
//
// Publish must be called from a single goroutine (Decode), matching
// spec.md §5's "single producer (Decode)" ring ownership rule.
func (b *Bus) Publish(instrumentID uint64, messageType proto.MessageType, payload []byte) (uint64, error) {
	st := b.stateFor(instrumentID)

	var seq uint64
	if !isControlMsg(messageType) {
		st.seq++
		seq = st.seq
	}

	fr := Frame{
		Header: proto.Header{
			MessageType:  messageType,
			ChannelID:    proto.ChannelOBOL3,
			InstrumentID: instrumentID,
			Sequence:     seq,
			SendTimeNS:   uint64(b.now()),
			PayloadLen:   uint32(len(payload)),
		},
	}
	fr.PayloadLen = copy(fr.Payload[:], payload)

	if b.historySize > 0 && seq > 0 {
		st.history[st.histPos%b.historySize] = historyEntry{seq: seq, frame: fr}
		st.histPos++
	}

	// MsgGap is a feed-wide sideband (spec.md §4.3/§4.6): every active
	// subscriber needs it regardless of its requested instrument set, so
	// it bypasses the normal per-instrument wants() filter.
	broadcastGap := messageType == proto.MsgGap

	subs := *b.subscribers.Load()
	framesOut, bytesOut := 0, 0
	for _, s := range subs {
		if s.dropped.Load() || (!broadcastGap && !s.wants(instrumentID)) {
			continue
		}
		if err := s.ring.Enqueue(&fr); err != nil {
			s.dropped.Store(true)
			b.hooks.OnSubscriberDropped()
			continue
		}
		framesOut++
		bytesOut += int(fr.Header.PayloadLen) + proto.HeaderSize
	}
	if framesOut > 0 {
		b.hooks.OnFramesOut(framesOut)
		b.hooks.OnBytesOut(bytesOut)
	}
	return seq, nil
}

func (b *Bus) now() int64 {
	if b.nowFunc != nil {
		return b.nowFunc()
	}
	return 0
}

// Subscription is a subscriber's handle to its bounded ring.
type Subscription struct {
	bus     *Bus
	handle  *subscriberHandle
	replay  []Frame
	replayN int
}

// ReadFrame returns the next frame for this subscriber: first any replayed
// history, then the live tail. Returns (Frame{}, false) when nothing is
// currently available (non-blocking; caller retries or sleeps).
func (s *Subscription) ReadFrame() (Frame, bool) {
	if s.replayN < len(s.replay) {
		fr := s.replay[s.replayN]
		s.replayN++
		return fr, true
	}
	fr, err := s.handle.ring.Dequeue()
	if err != nil {
		return Frame{}, false
	}
	return fr, true
}

// Dropped reports whether this subscriber has been detached for falling
// behind (ring overflow).
func (s *Subscription) Dropped() bool { return s.handle.dropped.Load() }

// Close detaches the subscription; it is marked dropped so Publish stops
// fanning out to it, and its ring is reclaimed by Subscribe's next
// garbage pass.
func (s *Subscription) Close() { s.handle.dropped.Store(true) }

// Subscribe registers a new subscriber for instruments (empty means "all
// instruments"). If fromSeq is non-nil, each requested instrument that has
// an entry in it is handled on its own by collectReplay: retained history
// from that sequence is replayed, or a Gap control frame is queued when the
// sequence is no longer retained. The subscription then tails the live
// stream.
func (b *Bus) Subscribe(instruments []uint64, fromSeq map[uint64]uint64) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	set := make(map[uint64]bool, len(instruments))
	for _, id := range instruments {
		set[id] = true
	}
	h := &subscriberHandle{
		id:          b.nextSubID,
		instruments: set,
		ring:        lfq.NewSPSC[Frame](b.ringCapacity),
	}

	sub := &Subscription{bus: b, handle: h}
	if fromSeq != nil {
		sub.replay = b.collectReplay(instruments, fromSeq)
	}

	old := *b.subscribers.Load()
	next := make([]*subscriberHandle, 0, len(old)+1)
	for _, s := range old {
		if !s.dropped.Load() {
			next = append(next, s)
		}
	}
	next = append(next, h)
	b.subscribers.Store(&next)

	return sub
}

// collectReplay builds the replay set for a new subscription. When
// fromSeq[id] is still covered by retained history, it replays from
// there in ascending sequence order; when the requested sequence has already rolled off the ring
// (or the instrument has never been published), it emits a Gap control
// frame instead so the client knows it missed a range (spec.md §4.6).
func (b *Bus) collectReplay(instruments []uint64, fromSeq map[uint64]uint64) []Frame {
	var out []Frame
	for _, id := range instruments {
		want, hasWant := fromSeq[id]
		if !hasWant {
			continue
		}
		st, ok := b.instruments[id]
		if !ok {
			out = append(out, b.gapFrame(id, want, want))
			continue
		}

		oldestRetained := uint64(1)
		if b.historySize > 0 && st.seq > uint64(b.historySize) {
			oldestRetained = st.seq - uint64(b.historySize) + 1
		}
		if want < oldestRetained {
			out = append(out, b.gapFrame(id, want, oldestRetained))
			continue
		}
		for i := 0; i < b.historySize; i++ {
			e := st.history[(st.histPos+i)%b.historySize]
			if e.seq >= want {
				out = append(out, e.frame)
			}
		}
	}
	return out
}

// gapFrame builds a MsgGap control frame reporting that instrumentID's
// history between [from, to) was not delivered to this subscriber.
func (b *Bus) gapFrame(instrumentID, from, to uint64) Frame {
	var buf [16]byte
	n, _ := proto.GapPayload{From: from, To: to}.Encode(buf[:])
	fr := Frame{Header: proto.Header{
		MessageType:  proto.MsgGap,
		ChannelID:    proto.ChannelOBOL3,
		InstrumentID: instrumentID,
		SendTimeNS:   uint64(b.now()),
	}}
	fr.PayloadLen = copy(fr.Payload[:], buf[:n])
	return fr
}

// SendSnapshot delivers SNAPSHOT_START, per-instrument SNAPSHOT_HDR plus
// every live order as an OBO_ADD (via InstrumentBook.SnapshotIter), then
// SNAPSHOT_END, all stamped with sequence 0, directly into sub's ring,
// behind any frames the ring already holds. It must be called
// immediately after Subscribe, before the subscriber is exposed to
// concurrent Publish fan-out from other instruments it also wants.
func (b *Bus) SendSnapshot(sub *Subscription, instrumentID uint64, records []SnapshotRecord) error {
	if err := sub.enqueueControl(proto.MsgSnapshotStart, instrumentID, nil); err != nil {
		return err
	}
	hdr := SnapshotHeaderPayload(instrumentID, len(records), records)
	if err := sub.enqueueControl(proto.MsgSnapshotHdr, instrumentID, hdr); err != nil {
		return err
	}
	for _, rec := range records {
		var buf [40]byte
		n, _ := proto.OBOAddPayload{OrderID: rec.OrderID, Side: rec.Side, Price: rec.Price, Quantity: rec.RemainingQty, ArrivalSeq: rec.ArrivalSeq}.Encode(buf[:])
		if err := sub.enqueueControl(proto.MsgOBOAdd, instrumentID, buf[:n]); err != nil {
			return err
		}
	}
	return sub.enqueueControl(proto.MsgSnapshotEnd, instrumentID, nil)
}

func (s *Subscription) enqueueControl(mt proto.MessageType, instrumentID uint64, payload []byte) error {
	fr := Frame{Header: proto.Header{MessageType: mt, ChannelID: proto.ChannelOBOL3, InstrumentID: instrumentID, Sequence: 0}}
	fr.PayloadLen = copy(fr.Payload[:], payload)
	return s.handle.ring.Enqueue(&fr)
}

// SnapshotRecord mirrors book.SnapshotRecord without importing package book,
// so bus stays usable without pulling in the order book for transports
// that only replay already-published history.
type SnapshotRecord struct {
	OrderID      uint64
	Side         proto.Side
	Price        int64
	RemainingQty uint64
	ArrivalSeq   uint64
}

// SnapshotHeaderPayload encodes a SNAPSHOT_HDR payload for instrumentID.
func SnapshotHeaderPayload(instrumentID uint64, orderCount int, records []SnapshotRecord) []byte {
	var nextArrival uint64
	for _, r := range records {
		if r.ArrivalSeq > nextArrival {
			nextArrival = r.ArrivalSeq
		}
	}
	buf := make([]byte, 24)
	_, _ = proto.SnapshotHdrPayload{InstrumentID: instrumentID, OrderCount: uint64(orderCount), NextArrivalSeq: nextArrival + 1}.Encode(buf)
	return buf
}
