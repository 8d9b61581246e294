// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decode

import (
	"github.com/Numi2/Numi-orderbook/book"
	"github.com/Numi2/Numi-orderbook/pool"
	"github.com/Numi2/Numi-orderbook/proto"
)

// Publisher is the subset of the PubSub Bus Decode depends on, kept as an
// interface here so decode never imports bus (the dependency runs the
// other way: cmd/receiver wires a *bus.Bus into a Stage as a Publisher).
type Publisher interface {
	Publish(instrumentID uint64, messageType proto.MessageType, payload []byte) (seq uint64, err error)
}

// Hooks receives Decode's countable events: message counts, malformed
// packets, and per-queue timestamp monotonicity violations.
type Hooks interface {
	OnMessages(n int)
	OnDecodeError()
	OnTSMonotonicViolation(queue pool.Channel)
	OnE2ELatencyNS(source pool.TimestampSource, ns int64)
	OnApplyError(err error)
	OnReplaceSeries(from, to uint64)
	OnSnapshotMarker()
}

// NoopHooks implements Hooks with no-ops.
type NoopHooks struct{}

func (NoopHooks) OnMessages(int)                            {}
func (NoopHooks) OnDecodeError()                            {}
func (NoopHooks) OnTSMonotonicViolation(pool.Channel)        {}
func (NoopHooks) OnE2ELatencyNS(pool.TimestampSource, int64) {}
func (NoopHooks) OnApplyError(error)                         {}
func (NoopHooks) OnReplaceSeries(uint64, uint64)             {}
func (NoopHooks) OnSnapshotMarker()                          {}

// Stage is the Decode pipeline stage: one per process, single consumer of
// Merge's output.
type Stage struct {
	registry    *book.Registry
	publisher   Publisher
	maxMessages int
	kind        Kind
	hooks       Hooks

	scratch    []proto.Event
	lastWireTS map[pool.Channel]int64
}

// NewStage creates a Decode stage. maxMessages bounds the scratch vector
// and caps how many events a single packet may contribute.
func NewStage(registry *book.Registry, publisher Publisher, maxMessages int, hooks Hooks) *Stage {
	if hooks == nil {
		hooks = NoopHooks{}
	}
	return &Stage{
		registry:    registry,
		publisher:   publisher,
		maxMessages: maxMessages,
		kind:        KindFixedBinary,
		hooks:       hooks,
		scratch:     make([]proto.Event, 0, maxMessages),
		lastWireTS:  make(map[pool.Channel]int64),
	}
}

// Process decodes frame, stamps e2e latency, validates per-queue
// monotonicity, applies events to the book, and republishes OBO frames.
// The frame is released exactly once, regardless of outcome.
func (s *Stage) Process(frame *pool.Frame, nowMonotonicNS int64) error {
	defer frame.Release()

	s.hooks.OnE2ELatencyNS(frame.TSSource, nowMonotonicNS-frame.WireTS)

	last, seen := s.lastWireTS[frame.Channel]
	if seen && frame.WireTS < last {
		s.hooks.OnTSMonotonicViolation(frame.Channel)
	} else {
		s.lastWireTS[frame.Channel] = frame.WireTS
	}

	var err error
	s.scratch = s.scratch[:0]
	switch s.kind {
	case KindFixedBinary:
		s.scratch, err = ParseFixedBinary(frame.Payload[:frame.Len], s.maxMessages, s.scratch)
	default:
		err = ErrUnsupportedDecoder
	}
	if err != nil {
		s.hooks.OnDecodeError()
		return err
	}

	s.hooks.OnMessages(len(s.scratch))
	s.applyAndPublish(s.scratch)
	return nil
}

// applyAndPublish groups the scratch events into contiguous per-instrument
// runs (spec.md §4.4) and applies + republishes each run.
func (s *Stage) applyAndPublish(events []proto.Event) {
	i := 0
	for i < len(events) {
		j := i + 1
		for j < len(events) && events[j].InstrumentID == events[i].InstrumentID {
			j++
		}
		run := events[i:j]
		errs := s.registry.ApplyManyForInstr(run[0].InstrumentID, run)
		for k, ev := range run {
			switch ev.Kind {
			case proto.EventReplaceSeries:
				// Carries a recovered/resynced range, not a book mutation:
				// republish it as the same MsgGap control frame a Merge-level
				// gap produces, so subscribers treat it identically.
				s.hooks.OnReplaceSeries(ev.FromSeq, ev.ToSeq)
				s.publishGap(ev.FromSeq, ev.ToSeq)
				continue
			case proto.EventSnapshotMarker:
				s.hooks.OnSnapshotMarker()
				continue
			}
			if errs[k] != nil {
				s.hooks.OnApplyError(errs[k])
				continue
			}
			s.publishOBO(ev)
		}
		i = j
	}
}

func (s *Stage) publishOBO(ev proto.Event) {
	instrumentID := ev.InstrumentID
	if instrumentID == 0 {
		if id, ok := s.registry.InstrumentForOrder(ev.OrderID); ok {
			instrumentID = id
		}
	}

	var buf [64]byte
	var msgType proto.MessageType
	var n int

	switch ev.Kind {
	case proto.EventAdd:
		msgType = proto.MsgOBOAdd
		n, _ = proto.OBOAddPayload{OrderID: ev.OrderID, Side: ev.Side, Price: ev.Price, Quantity: ev.Quantity}.Encode(buf[:])
	case proto.EventModify:
		msgType = proto.MsgOBOModify
		n, _ = proto.OBOModifyPayload{OrderID: ev.OrderID, NewQuantity: ev.Quantity, NewPrice: ev.NewPrice, HasNewPrice: ev.HasNewPrice}.Encode(buf[:])
	case proto.EventCancel:
		msgType = proto.MsgOBOCancel
		n, _ = proto.OBOCancelPayload{OrderID: ev.OrderID}.Encode(buf[:])
	case proto.EventTrade:
		msgType = proto.MsgOBOExecute
		n, _ = proto.OBOExecutePayload{OrderID: ev.OrderID, TradedQuantity: ev.Quantity}.Encode(buf[:])
	default:
		return
	}
	if s.publisher == nil {
		return
	}
	_, _ = s.publisher.Publish(instrumentID, msgType, buf[:n])
}

// publishGap republishes a recovered range as a feed-wide MsgGap control
// frame (instrument_id 0: not tied to any single instrument, same sentinel
// Merge's own Gap sideband uses).
func (s *Stage) publishGap(from, to uint64) {
	if s.publisher == nil {
		return
	}
	var buf [16]byte
	n, _ := proto.GapPayload{From: from, To: to}.Encode(buf[:])
	_, _ = s.publisher.Publish(0, proto.MsgGap, buf[:n])
}
