// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package proto defines the Event contract decoded from merged packets and
// the fixed-layout OBO wire frames republished downstream.
package proto

// Side is the resting side of an order.
type Side uint8

const (
	SideBid Side = 1
	SideAsk Side = 2
)

// EventKind tags the variant carried by an Event.
type EventKind uint8

const (
	EventAdd EventKind = iota + 1
	EventModify
	EventCancel
	EventTrade
	EventReplaceSeries
	EventSnapshotMarker
)

// Event is the tagged variant decoded from a merged packet. Only the fields
// relevant to Kind are meaningful; the struct is kept flat and fixed-size so
// Decode can fill a pre-sized scratch slice without per-event allocation.
type Event struct {
	Kind         EventKind
	InstrumentID uint64
	OrderID      uint64 // zero for anonymous
	Side         Side
	Price        int64  // signed, venue scale
	Quantity     uint64
	TimestampNS  uint64

	// NewPrice is set for EventModify when the order's price also changes.
	NewPrice int64
	// HasNewPrice distinguishes a pure quantity modify from a price+qty one.
	HasNewPrice bool

	// FromSeq/ToSeq carry the bounds of a Gap represented as ReplaceSeries.
	// The fixed-binary wire record has no dedicated ReplaceSeries layout, so
	// decode.ParseFixedBinary populates these by reinterpreting the generic
	// Price/Quantity fields for this one Kind; Decode republishes them as a
	// MsgGap control frame rather than applying them to the book.
	FromSeq uint64
	ToSeq   uint64
}
