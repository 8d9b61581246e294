// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package merge reconciles the A and B feeds (plus Recovery) into a single
// gap-aware, strictly monotonic stream for Decode.
package merge

import (
	"encoding/binary"
	"errors"
)

// ErrShortPacket is returned by SeqExtractor.Extract when the payload is
// too short to contain the configured sequence field.
var ErrShortPacket = errors.New("merge: packet shorter than sequence field")

// SeqExtractor pulls the feed sequence number out of a raw packet payload
// at a configured byte offset/length/endianness, per spec.md §6.
type SeqExtractor struct {
	Offset    int
	Length    int // 1, 2, 4, or 8
	BigEndian bool
}

// Extract reads the sequence field from payload.
func (se SeqExtractor) Extract(payload []byte) (uint64, error) {
	end := se.Offset + se.Length
	if end > len(payload) {
		return 0, ErrShortPacket
	}
	field := payload[se.Offset:end]

	var order binary.ByteOrder = binary.LittleEndian
	if se.BigEndian {
		order = binary.BigEndian
	}

	switch se.Length {
	case 1:
		return uint64(field[0]), nil
	case 2:
		return uint64(order.Uint16(field)), nil
	case 4:
		return uint64(order.Uint32(field)), nil
	case 8:
		return order.Uint64(field), nil
	default:
		return 0, errors.New("merge: unsupported sequence length")
	}
}
