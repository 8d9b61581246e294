// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package decode parses merged packets into Events, applies them to the
// order book, and republishes OBO-mapped frames to the bus.
package decode

import (
	"encoding/binary"
	"errors"

	"github.com/Numi2/Numi-orderbook/proto"
)

// ErrMalformedFrame marks a packet that failed to parse; Decode drops only
// the offending packet and continues the stream.
var ErrMalformedFrame = errors.New("decode: malformed frame")

// ErrUnsupportedDecoder is returned for decoder kinds not implemented.
// fixed_binary is the only kind this build speaks; itch50 and fast_like
// are reserved tags for vendor-specific wire parsers out of scope here
// (spec.md §1: "wire-level parsing of specific vendor protocols... beyond
// the Event contract").
var ErrUnsupportedDecoder = errors.New("decode: unsupported decoder kind")

// Kind tags which wire parser a packet should be run through. Dispatch
// happens once per packet rather than once per message inside it.
type Kind uint8

const (
	KindFixedBinary Kind = iota
	KindITCH50
	KindFASTLike
)

// eventWireSize is the fixed per-event record length after the 8-byte
// sequence header: kind(1) + instrument_id(8) + order_id(8) + side(1) +
// price(8) + quantity(8) + timestamp_ns(8) + new_price(8) +
// has_new_price(1).
const eventWireSize = 1 + 8 + 8 + 1 + 8 + 8 + 8 + 8 + 1

// headerSize is the feed sequence field every packet starts with (see
// merge.SeqExtractor; Decode skips it, Merge already consumed it).
const headerSize = 8

// ParseFixedBinary parses payload (the whole packet, starting with the
// 8-byte feed-sequence header, which it skips) into events, appending
// decoded Events into dst and returning the extended slice. dst's existing
// capacity is reused; callers should pass a pre-sized scratch slice
// truncated to length 0.
//
// ErrMalformedFrame is returned on any record that does not fit the
// remaining bytes or carries an unknown kind. After maxMessages records
// parsing stops with a nil error and any further records are ignored;
// truncation is capacity discipline only, not a claim the payload was
// corrupt.
func ParseFixedBinary(payload []byte, maxMessages int, dst []proto.Event) ([]proto.Event, error) {
	if len(payload) < headerSize {
		return dst, ErrMalformedFrame
	}
	body := payload[headerSize:]

	count := 0
	for len(body) > 0 {
		if count >= maxMessages {
			break
		}
		if len(body) < eventWireSize {
			return dst, ErrMalformedFrame
		}
		ev, err := decodeOneFixed(body[:eventWireSize])
		if err != nil {
			return dst, err
		}
		dst = append(dst, ev)
		body = body[eventWireSize:]
		count++
	}
	return dst, nil
}

func decodeOneFixed(b []byte) (proto.Event, error) {
	var ev proto.Event
	ev.Kind = proto.EventKind(b[0])
	if ev.Kind < proto.EventAdd || ev.Kind > proto.EventSnapshotMarker {
		return ev, ErrMalformedFrame
	}
	ev.InstrumentID = binary.LittleEndian.Uint64(b[1:9])
	ev.OrderID = binary.LittleEndian.Uint64(b[9:17])
	ev.Side = proto.Side(b[17])
	ev.Price = int64(binary.LittleEndian.Uint64(b[18:26]))
	ev.Quantity = binary.LittleEndian.Uint64(b[26:34])
	ev.TimestampNS = binary.LittleEndian.Uint64(b[34:42])
	ev.NewPrice = int64(binary.LittleEndian.Uint64(b[42:50]))
	ev.HasNewPrice = b[50] != 0
	if ev.Kind == proto.EventReplaceSeries {
		// No dedicated wire layout for ReplaceSeries: the record's generic
		// price/quantity fields double as the gap's from/to bounds.
		ev.FromSeq = uint64(ev.Price)
		ev.ToSeq = ev.Quantity
	}
	return ev, nil
}
