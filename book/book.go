// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package book implements the per-instrument price-time order book: a
// slab-backed arena of orders linked into per-price FIFO levels, with O(1)
// cached best bid/offer. Cyclic references between Order, Level, and
// InstrumentBook are resolved as integer slot-id indices into the slab
// rather than pointers, so the arena can be walked, snapshotted, and grown
// without a cyclic ownership graph.
package book

import (
	"errors"

	"github.com/Numi2/Numi-orderbook/proto"
)

// ErrDuplicateOrderID is returned by Add when a slot for order_id already
// exists in this instrument's book.
var ErrDuplicateOrderID = errors.New("book: duplicate order id")

// ErrUnknownOrderID is returned by Modify/Cancel/Trade when order_id is not
// currently live in this instrument's book.
var ErrUnknownOrderID = errors.New("book: unknown order id")

// slotID indexes into InstrumentBook.slab. Zero is reserved as "no slot".
type slotID uint32

const noSlot slotID = 0

// Order is a single resting order, intrusively linked into its level's FIFO
// list via prev/next slot ids.
type Order struct {
	OrderID      uint64
	InstrumentID uint64
	Side         proto.Side
	Price        int64
	RemainingQty uint64
	ArrivalSeq   uint64

	levelPrice int64
	prev, next slotID
}

// Level is one occupied price on one side: a FIFO list of order slot-ids.
type Level struct {
	Price       int64
	AggregateQty uint64
	head, tail  slotID
}

type bestQuote struct {
	price int64
	qty   uint64
	has   bool
}

// InstrumentBook is the price-time book for a single instrument.
type InstrumentBook struct {
	InstrumentID uint64

	slab     []Order // index 0 unused (noSlot sentinel)
	freeList []slotID
	byOrder  map[uint64]slotID

	bidLevels map[int64]*Level
	askLevels map[int64]*Level

	bestBid bestQuote
	bestAsk bestQuote

	nextArrivalSeq uint64
	liveOrders     int

	// PreservePriorityOnQtyUp resolves the open question of spec.md §9(a):
	// whether a Modify that increases quantity preserves FIFO time
	// priority. It is a per-feed/per-venue flag, not a hardcoded behavior;
	// see DESIGN.md.
	PreservePriorityOnQtyUp bool
}

// NewInstrumentBook creates an empty book for instrumentID.
func NewInstrumentBook(instrumentID uint64) *InstrumentBook {
	return &InstrumentBook{
		InstrumentID: instrumentID,
		slab:         make([]Order, 1, 256),
		byOrder:      make(map[uint64]slotID),
		bidLevels:    make(map[int64]*Level),
		askLevels:    make(map[int64]*Level),
	}
}

// LiveOrders returns the number of currently resting orders.
func (b *InstrumentBook) LiveOrders() int { return b.liveOrders }

// BestBid returns the best bid price and aggregate quantity at that price.
func (b *InstrumentBook) BestBid() (price int64, qty uint64, ok bool) {
	return b.bestBid.price, b.bestBid.qty, b.bestBid.has
}

// BestAsk returns the best ask price and aggregate quantity at that price.
func (b *InstrumentBook) BestAsk() (price int64, qty uint64, ok bool) {
	return b.bestAsk.price, b.bestAsk.qty, b.bestAsk.has
}

func (b *InstrumentBook) levelsFor(side proto.Side) map[int64]*Level {
	if side == proto.SideBid {
		return b.bidLevels
	}
	return b.askLevels
}

func (b *InstrumentBook) allocSlot() slotID {
	if n := len(b.freeList); n > 0 {
		id := b.freeList[n-1]
		b.freeList = b.freeList[:n-1]
		return id
	}
	b.slab = append(b.slab, Order{})
	return slotID(len(b.slab) - 1)
}

// Add inserts a new resting order, allocating a fresh arrival sequence.
func (b *InstrumentBook) Add(orderID uint64, side proto.Side, price int64, qty uint64) error {
	if _, exists := b.byOrder[orderID]; exists {
		return ErrDuplicateOrderID
	}

	id := b.allocSlot()
	b.nextArrivalSeq++
	o := Order{
		OrderID:      orderID,
		InstrumentID: b.InstrumentID,
		Side:         side,
		Price:        price,
		RemainingQty: qty,
		ArrivalSeq:   b.nextArrivalSeq,
		levelPrice:   price,
	}
	b.slab[id] = o
	b.byOrder[orderID] = id

	lvl := b.findOrCreateLevel(side, price)
	b.appendToLevel(lvl, id)
	lvl.AggregateQty += qty
	b.liveOrders++
	b.maybeImproveBest(side, price, lvl.AggregateQty)
	return nil
}

func (b *InstrumentBook) findOrCreateLevel(side proto.Side, price int64) *Level {
	levels := b.levelsFor(side)
	if lvl, ok := levels[price]; ok {
		return lvl
	}
	lvl := &Level{Price: price}
	levels[price] = lvl
	return lvl
}

func (b *InstrumentBook) appendToLevel(lvl *Level, id slotID) {
	o := &b.slab[id]
	o.prev, o.next = lvl.tail, noSlot
	if lvl.tail != noSlot {
		b.slab[lvl.tail].next = id
	} else {
		lvl.head = id
	}
	lvl.tail = id
}

func (b *InstrumentBook) removeFromLevel(lvl *Level, id slotID) {
	o := &b.slab[id]
	if o.prev != noSlot {
		b.slab[o.prev].next = o.next
	} else {
		lvl.head = o.next
	}
	if o.next != noSlot {
		b.slab[o.next].prev = o.prev
	} else {
		lvl.tail = o.prev
	}
	o.prev, o.next = noSlot, noSlot
}

func (b *InstrumentBook) maybeImproveBest(side proto.Side, price int64, levelQty uint64) {
	if side == proto.SideBid {
		if !b.bestBid.has || price > b.bestBid.price {
			b.bestBid = bestQuote{price: price, qty: levelQty, has: true}
		} else if price == b.bestBid.price {
			b.bestBid.qty = levelQty
		}
		return
	}
	if !b.bestAsk.has || price < b.bestAsk.price {
		b.bestAsk = bestQuote{price: price, qty: levelQty, has: true}
	} else if price == b.bestAsk.price {
		b.bestAsk.qty = levelQty
	}
}

// rescanBest recomputes the cached best for side by scanning every
// occupied level on that side (the level map is unordered, so this is a
// linear pass).
func (b *InstrumentBook) rescanBest(side proto.Side) {
	levels := b.levelsFor(side)
	if len(levels) == 0 {
		if side == proto.SideBid {
			b.bestBid = bestQuote{}
		} else {
			b.bestAsk = bestQuote{}
		}
		return
	}
	var best *Level
	for _, lvl := range levels {
		if best == nil {
			best = lvl
			continue
		}
		if side == proto.SideBid && lvl.Price > best.Price {
			best = lvl
		} else if side == proto.SideAsk && lvl.Price < best.Price {
			best = lvl
		}
	}
	q := bestQuote{price: best.Price, qty: best.AggregateQty, has: true}
	if side == proto.SideBid {
		b.bestBid = q
	} else {
		b.bestAsk = q
	}
}

// removeLevelIfEmpty drops an emptied level and, if it held the cached
// best, rescans for the new best.
func (b *InstrumentBook) removeLevelIfEmpty(side proto.Side, lvl *Level) {
	if lvl.head != noSlot {
		return
	}
	levels := b.levelsFor(side)
	delete(levels, lvl.Price)

	wasBest := (side == proto.SideBid && b.bestBid.has && b.bestBid.price == lvl.Price) ||
		(side == proto.SideAsk && b.bestAsk.has && b.bestAsk.price == lvl.Price)
	if wasBest {
		b.rescanBest(side)
	}
}

func (b *InstrumentBook) releaseOrder(id slotID) {
	o := &b.slab[id]
	delete(b.byOrder, o.OrderID)
	*o = Order{}
	b.freeList = append(b.freeList, id)
	b.liveOrders--
}

// Cancel removes order_id from its level. If the level becomes empty it is
// dropped, rescanning the cached best if necessary.
func (b *InstrumentBook) Cancel(orderID uint64) error {
	id, ok := b.byOrder[orderID]
	if !ok {
		return ErrUnknownOrderID
	}
	o := &b.slab[id]
	side, price := o.Side, o.levelPrice
	lvl := b.levelsFor(side)[price]

	b.removeFromLevel(lvl, id)
	lvl.AggregateQty -= o.RemainingQty
	b.releaseOrder(id)
	if lvl.AggregateQty > 0 || lvl.head != noSlot {
		b.maybeImproveBest(side, price, lvl.AggregateQty)
	}
	b.removeLevelIfEmpty(side, lvl)
	return nil
}

// Modify applies a quantity (and optionally price) change to a resting
// order. A price change always loses time priority (implemented as
// cancel+add). A pure quantity reduction preserves FIFO position. A
// quantity increase loses priority unless PreservePriorityOnQtyUp is set
// for this book's feed (spec.md §9, open question (a)).
func (b *InstrumentBook) Modify(orderID uint64, newQty uint64, newPrice int64, hasNewPrice bool) error {
	id, ok := b.byOrder[orderID]
	if !ok {
		return ErrUnknownOrderID
	}
	o := b.slab[id]

	priceChanged := hasNewPrice && newPrice != o.Price
	qtyIncreased := newQty > o.RemainingQty
	losesPriority := priceChanged || (qtyIncreased && !b.PreservePriorityOnQtyUp)

	if !losesPriority {
		lvl := b.levelsFor(o.Side)[o.levelPrice]
		delta := int64(newQty) - int64(o.RemainingQty)
		b.slab[id].RemainingQty = newQty
		if delta < 0 {
			lvl.AggregateQty -= uint64(-delta)
		} else {
			lvl.AggregateQty += uint64(delta)
		}
		b.maybeImproveBest(o.Side, o.levelPrice, lvl.AggregateQty)
		return nil
	}

	side, price := o.Side, o.Price
	if hasNewPrice {
		price = newPrice
	}
	if err := b.Cancel(orderID); err != nil {
		return err
	}
	return b.Add(orderID, side, price, newQty)
}

// Trade reduces a maker's remaining quantity by qty. If it reaches zero
// the order is treated like a cancel. When consumeTrades is false, the
// remaining-quantity accounting is skipped; only the trade itself is
// expected to be observed, trusting a subsequent explicit Modify/Cancel
// from the feed (spec.md §4.5).
func (b *InstrumentBook) Trade(orderID uint64, qty uint64, consumeTrades bool) (remaining uint64, err error) {
	id, ok := b.byOrder[orderID]
	if !ok {
		return 0, ErrUnknownOrderID
	}
	if !consumeTrades {
		o := b.slab[id]
		if qty >= o.RemainingQty {
			return 0, nil
		}
		return o.RemainingQty - qty, nil
	}

	o := &b.slab[id]
	if qty >= o.RemainingQty {
		rem := uint64(0)
		return rem, b.Cancel(orderID)
	}
	o.RemainingQty -= qty
	lvl := b.levelsFor(o.Side)[o.levelPrice]
	lvl.AggregateQty -= qty
	b.maybeImproveBest(o.Side, o.levelPrice, lvl.AggregateQty)
	return o.RemainingQty, nil
}

// SnapshotRecord is one order as yielded by SnapshotIter, in an order that
// allows exact reconstruction: per price level (best-to-worst), FIFO
// within level.
type SnapshotRecord struct {
	OrderID      uint64
	Side         proto.Side
	Price        int64
	RemainingQty uint64
	ArrivalSeq   uint64
}

// SnapshotIter returns every live order in reconstruction order. The
// traversal is finite and non-restartable: it is a point-in-time copy
// rather than a live cursor, so it never observes partial mutations from a
// concurrent writer.
func (b *InstrumentBook) SnapshotIter() []SnapshotRecord {
	out := make([]SnapshotRecord, 0, b.liveOrders)
	out = appendSide(out, b, proto.SideBid)
	out = appendSide(out, b, proto.SideAsk)
	return out
}

func appendSide(out []SnapshotRecord, b *InstrumentBook, side proto.Side) []SnapshotRecord {
	levels := b.levelsFor(side)
	ordered := make([]*Level, 0, len(levels))
	for _, lvl := range levels {
		ordered = append(ordered, lvl)
	}
	sortLevels(ordered, side)
	for _, lvl := range ordered {
		for id := lvl.head; id != noSlot; id = b.slab[id].next {
			o := b.slab[id]
			out = append(out, SnapshotRecord{
				OrderID:      o.OrderID,
				Side:         o.Side,
				Price:        o.Price,
				RemainingQty: o.RemainingQty,
				ArrivalSeq:   o.ArrivalSeq,
			})
		}
	}
	return out
}

func sortLevels(levels []*Level, side proto.Side) {
	// Small n in practice (depth per instrument); insertion sort avoids
	// pulling in sort.Slice's reflection overhead on the snapshot path.
	for i := 1; i < len(levels); i++ {
		for j := i; j > 0 && less(levels[j], levels[j-1], side); j-- {
			levels[j], levels[j-1] = levels[j-1], levels[j]
		}
	}
}

func less(a, b *Level, side proto.Side) bool {
	if side == proto.SideBid {
		return a.Price > b.Price
	}
	return a.Price < b.Price
}

// Restore re-inserts an order during snapshot/recovery load, preserving
// the recorded arrival sequence instead of allocating a fresh one.
func (b *InstrumentBook) Restore(rec SnapshotRecord) error {
	if _, exists := b.byOrder[rec.OrderID]; exists {
		return ErrDuplicateOrderID
	}
	id := b.allocSlot()
	o := Order{
		OrderID:      rec.OrderID,
		InstrumentID: b.InstrumentID,
		Side:         rec.Side,
		Price:        rec.Price,
		RemainingQty: rec.RemainingQty,
		ArrivalSeq:   rec.ArrivalSeq,
		levelPrice:   rec.Price,
	}
	b.slab[id] = o
	b.byOrder[rec.OrderID] = id
	if rec.ArrivalSeq > b.nextArrivalSeq {
		b.nextArrivalSeq = rec.ArrivalSeq
	}

	lvl := b.findOrCreateLevel(rec.Side, rec.Price)
	b.appendToLevel(lvl, id)
	lvl.AggregateQty += rec.RemainingQty
	b.liveOrders++
	b.maybeImproveBest(rec.Side, rec.Price, lvl.AggregateQty)
	return nil
}
