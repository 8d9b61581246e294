// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package merge

import (
	"github.com/Numi2/Numi-orderbook/pool"
)

// Gap is a known skip in the feed sequence, reported as a control event.
type Gap struct {
	From uint64
	To   uint64
}

// Hooks receives the countable, non-fatal events Merge raises while
// reconciling the feed. Every method must return promptly; Merge calls
// these synchronously from the hot path. A nil *Hooks field is never
// dereferenced — callers that don't care about counters pass NoopHooks{}.
type Hooks interface {
	OnGap(g Gap)
	OnDup(channel pool.Channel)
	OnWindowFull()
	OnDropped()
	OnEviction()
}

// NoopHooks implements Hooks with no-ops, for callers that don't need
// counters wired (e.g. unit tests).
type NoopHooks struct{}

func (NoopHooks) OnGap(Gap)                  {}
func (NoopHooks) OnDup(pool.Channel)         {}
func (NoopHooks) OnWindowFull()              {}
func (NoopHooks) OnDropped()                 {}
func (NoopHooks) OnEviction()                {}

type windowSlot struct {
	occupied  bool
	seq       uint64
	frame     *pool.Frame
	arrivalNS int64
}

// Config carries the tunables spec.md §4.3 names explicitly.
type Config struct {
	ReorderWindow      int // rounded up to a power of 2
	MaxPendingPackets  int
	DwellNS            int64
	InitialExpectedSeq uint64
	SeqExtractor       SeqExtractor
}

// Merge is the single-consumer reconciliation stage draining RX-A, RX-B,
// and Recovery into one ordered stream.
type Merge struct {
	expectedSeq  uint64
	window       []windowSlot
	mask         uint64
	pendingCount int
	maxPending   int
	dwellNS      int64
	lastEmitNS   int64
	extractor    SeqExtractor

	hooks Hooks
}

// New creates a Merge stage. ReorderWindow rounds up to the next power of
// two; minimum 2.
func New(cfg Config, hooks Hooks) *Merge {
	n := roundToPow2(cfg.ReorderWindow)
	if n < 2 {
		n = 2
	}
	if hooks == nil {
		hooks = NoopHooks{}
	}
	return &Merge{
		expectedSeq: cfg.InitialExpectedSeq,
		window:      make([]windowSlot, n),
		mask:        uint64(n - 1),
		maxPending:  cfg.MaxPendingPackets,
		dwellNS:     cfg.DwellNS,
		extractor:   cfg.SeqExtractor,
		hooks:       hooks,
	}
}

func roundToPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Ingest admits one inbound frame (from RX-A, RX-B, or Recovery) at
// monotonic time nowNS, extracting its feed sequence and applying the
// reconciliation algorithm of spec.md §4.3. It returns, in emission order,
// every frame now ready for Decode (zero or more: a single in-order frame
// typically emits itself plus any contiguous frames the window was
// already holding).
func (m *Merge) Ingest(frame *pool.Frame, channel pool.Channel, nowNS int64) ([]*pool.Frame, error) {
	seq, err := m.extractor.Extract(frame.Payload[:frame.Len])
	if err != nil {
		frame.Release()
		return nil, err
	}

	switch {
	case seq < m.expectedSeq:
		frame.Release()
		m.hooks.OnDup(channel)
		return nil, nil

	case seq == m.expectedSeq:
		emitted := []*pool.Frame{frame}
		m.expectedSeq++
		m.lastEmitNS = nowNS
		emitted = append(emitted, m.drainContiguous()...)
		return emitted, nil

	case seq < m.expectedSeq+uint64(len(m.window)):
		slot := &m.window[seq&m.mask]
		if slot.occupied && slot.seq == seq {
			frame.Release()
			m.hooks.OnDup(channel)
			return nil, nil
		}
		if !slot.occupied {
			m.pendingCount++
		} else {
			// Slot held a different (stale) sequence; it was already
			// counted as pending and is being replaced without ever
			// having emitted.
			slot.frame.Release()
		}
		*slot = windowSlot{occupied: true, seq: seq, frame: frame, arrivalNS: nowNS}
		if m.pendingCount > m.maxPending {
			m.hooks.OnWindowFull()
			return m.evictOldest(nowNS), nil
		}
		return nil, nil

	default: // seq >= expectedSeq + W: window overflow
		gapFrom := m.expectedSeq
		m.clearStaleSlots(seq)
		m.hooks.OnGap(Gap{From: gapFrom, To: seq - 1})
		m.expectedSeq = seq + 1
		m.lastEmitNS = nowNS
		emitted := append([]*pool.Frame{frame}, m.drainContiguous()...)
		return emitted, nil
	}
}

// drainContiguous emits every window slot whose sequence now matches the
// (advancing) expectedSeq, in order.
func (m *Merge) drainContiguous() []*pool.Frame {
	var out []*pool.Frame
	for {
		slot := &m.window[m.expectedSeq&m.mask]
		if !slot.occupied || slot.seq != m.expectedSeq {
			return out
		}
		out = append(out, slot.frame)
		*slot = windowSlot{}
		m.pendingCount--
		m.expectedSeq++
	}
}

// clearStaleSlots drops every window entry with sequence < newExpected,
// since an overflow jump invalidates them as unreachable.
func (m *Merge) clearStaleSlots(newExpected uint64) {
	for i := range m.window {
		if m.window[i].occupied && m.window[i].seq < newExpected {
			m.window[i].frame.Release()
			m.hooks.OnDropped()
			m.window[i] = windowSlot{}
			m.pendingCount--
		}
	}
}

// evictOldest drops the oldest buffered frame when pendingCount would
// exceed maxPending, advancing expectedSeq past it with a gap
// notification, per spec.md §4.3 failure mode.
func (m *Merge) evictOldest(nowNS int64) []*pool.Frame {
	oldestIdx := -1
	var oldestSeq uint64
	for i := range m.window {
		if !m.window[i].occupied {
			continue
		}
		if oldestIdx == -1 || m.window[i].seq < oldestSeq {
			oldestIdx = i
			oldestSeq = m.window[i].seq
		}
	}
	if oldestIdx == -1 {
		return nil
	}
	m.window[oldestIdx].frame.Release()
	m.window[oldestIdx] = windowSlot{}
	m.pendingCount--
	m.hooks.OnEviction()

	gapFrom := m.expectedSeq
	m.hooks.OnGap(Gap{From: gapFrom, To: oldestSeq})
	m.expectedSeq = oldestSeq + 1
	m.lastEmitNS = nowNS
	return m.drainContiguous()
}

// Tick applies the dwell policy: if the window has buffered frames and
// expectedSeq has been missing for longer than dwellNS, Merge advances
// past the gap rather than waiting indefinitely, trading completeness for
// bounded latency (spec.md §4.3). Call periodically from the Merge
// goroutine's idle loop.
func (m *Merge) Tick(nowNS int64) []*pool.Frame {
	if m.pendingCount == 0 || m.dwellNS <= 0 {
		return nil
	}
	if nowNS-m.lastEmitNS < m.dwellNS {
		return nil
	}

	minIdx := -1
	var minSeq uint64
	for i := range m.window {
		if !m.window[i].occupied {
			continue
		}
		if minIdx == -1 || m.window[i].seq < minSeq {
			minIdx = i
			minSeq = m.window[i].seq
		}
	}
	if minIdx == -1 {
		return nil
	}

	gapFrom := m.expectedSeq
	m.clearStaleSlots(minSeq)
	m.hooks.OnGap(Gap{From: gapFrom, To: minSeq - 1})
	m.expectedSeq = minSeq
	slot := &m.window[minSeq&m.mask]
	emitted := []*pool.Frame{slot.frame}
	*slot = windowSlot{}
	m.pendingCount--
	m.expectedSeq++
	m.lastEmitNS = nowNS
	return append(emitted, m.drainContiguous()...)
}

// ExpectedSeq returns the next sequence Merge is waiting to emit.
func (m *Merge) ExpectedSeq() uint64 { return m.expectedSeq }

// PendingCount returns the number of currently buffered (out-of-order)
// frames.
func (m *Merge) PendingCount() int { return m.pendingCount }
