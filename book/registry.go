// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package book

import (
	"sort"

	"github.com/Numi2/Numi-orderbook/proto"
)

// Registry owns one InstrumentBook per instrument and the cross-instrument
// order_id -> instrument_id index Decode needs to resolve instrument for
// Modify/Cancel/Trade events that omit it.
type Registry struct {
	books        map[uint64]*InstrumentBook
	orderToInstr map[uint64]uint64

	// ConsumeTrades controls whether Trade events reduce remaining_qty
	// immediately (true) or are trusted to be followed by an explicit
	// Modify/Cancel from the feed (false). See spec.md §4.5.
	ConsumeTrades bool
	// PreservePriorityOnQtyUp is applied to every InstrumentBook created
	// via GetOrCreate; see InstrumentBook.PreservePriorityOnQtyUp.
	PreservePriorityOnQtyUp bool
}

// NewRegistry creates an empty multi-instrument book registry.
func NewRegistry() *Registry {
	return &Registry{
		books:        make(map[uint64]*InstrumentBook),
		orderToInstr: make(map[uint64]uint64),
	}
}

// GetOrCreate returns the book for instrumentID, creating it on first use.
func (r *Registry) GetOrCreate(instrumentID uint64) *InstrumentBook {
	b, ok := r.books[instrumentID]
	if !ok {
		b = NewInstrumentBook(instrumentID)
		b.PreservePriorityOnQtyUp = r.PreservePriorityOnQtyUp
		r.books[instrumentID] = b
	}
	return b
}

// Get returns the book for instrumentID if it exists.
func (r *Registry) Get(instrumentID uint64) (*InstrumentBook, bool) {
	b, ok := r.books[instrumentID]
	return b, ok
}

// InstrumentIDs returns every instrument with a book, in ascending order
// (used by snapshot.Save for a deterministic file layout).
func (r *Registry) InstrumentIDs() []uint64 {
	ids := make([]uint64, 0, len(r.books))
	for id := range r.books {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// InstrumentForOrder returns the instrument currently holding orderID.
func (r *Registry) InstrumentForOrder(orderID uint64) (instrumentID uint64, ok bool) {
	instrumentID, ok = r.orderToInstr[orderID]
	return
}

// LiveOrders sums live orders across every instrument (book_live_orders).
func (r *Registry) LiveOrders() int {
	total := 0
	for _, b := range r.books {
		total += b.LiveOrders()
	}
	return total
}

// ApplyManyForInstr applies a contiguous run of events belonging to a
// single instrument, amortizing the per-instrument lookup. Each event's
// InstrumentID must equal instrumentID; Decode is responsible for grouping
// runs this way before calling in. The returned slice has exactly
// len(events) entries, nil at index i when events[i] applied cleanly —
// callers use this to decide which events are safe to republish
// downstream (spec.md §9(b): DuplicateOrderId/UnknownOrderId are counted
// and the offending event dropped, never republished as if it took
// effect).
func (r *Registry) ApplyManyForInstr(instrumentID uint64, events []proto.Event) []error {
	b := r.GetOrCreate(instrumentID)
	errs := make([]error, len(events))
	for i, ev := range events {
		errs[i] = r.applyOne(b, ev)
	}
	return errs
}

// ApplyMany groups events by instrument_id internally and applies each
// contiguous run via ApplyManyForInstr. The returned slice aligns 1:1
// with events, same convention as ApplyManyForInstr.
func (r *Registry) ApplyMany(events []proto.Event) []error {
	errs := make([]error, len(events))
	i := 0
	for i < len(events) {
		j := i + 1
		for j < len(events) && events[j].InstrumentID == events[i].InstrumentID {
			j++
		}
		copy(errs[i:j], r.ApplyManyForInstr(events[i].InstrumentID, events[i:j]))
		i = j
	}
	return errs
}

func (r *Registry) applyOne(b *InstrumentBook, ev proto.Event) error {
	switch ev.Kind {
	case proto.EventAdd:
		if err := b.Add(ev.OrderID, ev.Side, ev.Price, ev.Quantity); err != nil {
			return err
		}
		r.orderToInstr[ev.OrderID] = b.InstrumentID
		return nil
	case proto.EventModify:
		return b.Modify(ev.OrderID, ev.Quantity, ev.NewPrice, ev.HasNewPrice)
	case proto.EventCancel:
		if err := b.Cancel(ev.OrderID); err != nil {
			return err
		}
		delete(r.orderToInstr, ev.OrderID)
		return nil
	case proto.EventTrade:
		remaining, err := b.Trade(ev.OrderID, ev.Quantity, r.ConsumeTrades)
		if err != nil {
			return err
		}
		if r.ConsumeTrades && remaining == 0 {
			delete(r.orderToInstr, ev.OrderID)
		}
		return nil
	default:
		// EventReplaceSeries/EventSnapshotMarker never reach the book:
		// decode.Stage intercepts both before relying on this result (the
		// former is republished as a Gap control frame, the latter only
		// counted). Nil here is a true no-op, not a swallowed error.
		return nil
	}
}
