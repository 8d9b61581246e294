// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package proto

import (
	"encoding/binary"
	"errors"
)

// Magic identifies the OBO wire format.
var Magic = [4]byte{'O', 'B', 'v', '1'}

const (
	Version  uint8 = 1
	CodecRaw uint8 = 0

	HeaderSize = 40
)

// MessageType enumerates the frames carried after the OBO header.
type MessageType uint16

const (
	MsgHeartbeat     MessageType = 1
	MsgGap           MessageType = 2
	MsgSnapshotStart MessageType = 3
	MsgSnapshotEnd   MessageType = 4
	MsgSeqReset      MessageType = 5
	MsgOBOAdd        MessageType = 100
	MsgOBOModify     MessageType = 101
	MsgOBOCancel     MessageType = 102
	MsgOBOExecute    MessageType = 103
	MsgSnapshotHdr   MessageType = 104
)

// ChannelID is the egress channel tag; OBO L3 is always 0.
const ChannelOBOL3 uint32 = 0

// ErrShortBuffer is returned when a buffer is too small to hold a header or
// payload during Encode/Decode.
var ErrShortBuffer = errors.New("proto: short buffer")

// Header is the fixed 40-byte little-endian OBO frame header.
type Header struct {
	MessageType  MessageType
	ChannelID    uint32
	InstrumentID uint64
	Sequence     uint64 // per-instrument monotonic; 0 for snapshot frames
	SendTimeNS   uint64
	PayloadLen   uint32
}

// Encode writes the header into dst (must be at least HeaderSize bytes) and
// returns the number of bytes written.
func (h Header) Encode(dst []byte) (int, error) {
	if len(dst) < HeaderSize {
		return 0, ErrShortBuffer
	}
	copy(dst[0:4], Magic[:])
	dst[4] = Version
	dst[5] = CodecRaw
	binary.LittleEndian.PutUint16(dst[6:8], uint16(h.MessageType))
	binary.LittleEndian.PutUint32(dst[8:12], h.ChannelID)
	binary.LittleEndian.PutUint64(dst[12:20], h.InstrumentID)
	binary.LittleEndian.PutUint64(dst[20:28], h.Sequence)
	binary.LittleEndian.PutUint64(dst[28:36], h.SendTimeNS)
	binary.LittleEndian.PutUint32(dst[36:40], h.PayloadLen)
	return HeaderSize, nil
}

// DecodeHeader parses the fixed header from src.
func DecodeHeader(src []byte) (Header, error) {
	var h Header
	if len(src) < HeaderSize {
		return h, ErrShortBuffer
	}
	if string(src[0:4]) != string(Magic[:]) {
		return h, errors.New("proto: bad magic")
	}
	h.MessageType = MessageType(binary.LittleEndian.Uint16(src[6:8]))
	h.ChannelID = binary.LittleEndian.Uint32(src[8:12])
	h.InstrumentID = binary.LittleEndian.Uint64(src[12:20])
	h.Sequence = binary.LittleEndian.Uint64(src[20:28])
	h.SendTimeNS = binary.LittleEndian.Uint64(src[28:36])
	h.PayloadLen = binary.LittleEndian.Uint32(src[36:40])
	return h, nil
}

// OBOAddPayload is the fixed-layout payload for MsgOBOAdd.
type OBOAddPayload struct {
	OrderID    uint64
	Side       Side
	_          [7]byte // pad to 8-byte alignment
	Price      int64
	Quantity   uint64
	ArrivalSeq uint64
}

const oboAddPayloadSize = 8 + 8 + 8 + 8 + 8

func (p OBOAddPayload) Encode(dst []byte) (int, error) {
	if len(dst) < oboAddPayloadSize {
		return 0, ErrShortBuffer
	}
	binary.LittleEndian.PutUint64(dst[0:8], p.OrderID)
	dst[8] = byte(p.Side)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(p.Price))
	binary.LittleEndian.PutUint64(dst[24:32], p.Quantity)
	binary.LittleEndian.PutUint64(dst[32:40], p.ArrivalSeq)
	return oboAddPayloadSize, nil
}

func DecodeOBOAddPayload(src []byte) (OBOAddPayload, error) {
	var p OBOAddPayload
	if len(src) < oboAddPayloadSize {
		return p, ErrShortBuffer
	}
	p.OrderID = binary.LittleEndian.Uint64(src[0:8])
	p.Side = Side(src[8])
	p.Price = int64(binary.LittleEndian.Uint64(src[16:24]))
	p.Quantity = binary.LittleEndian.Uint64(src[24:32])
	p.ArrivalSeq = binary.LittleEndian.Uint64(src[32:40])
	return p, nil
}

// OBOModifyPayload is the fixed-layout payload for MsgOBOModify.
type OBOModifyPayload struct {
	OrderID     uint64
	NewQuantity uint64
	NewPrice    int64
	HasNewPrice bool
}

const oboModifyPayloadSize = 8 + 8 + 8 + 1

func (p OBOModifyPayload) Encode(dst []byte) (int, error) {
	if len(dst) < oboModifyPayloadSize {
		return 0, ErrShortBuffer
	}
	binary.LittleEndian.PutUint64(dst[0:8], p.OrderID)
	binary.LittleEndian.PutUint64(dst[8:16], p.NewQuantity)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(p.NewPrice))
	if p.HasNewPrice {
		dst[24] = 1
	} else {
		dst[24] = 0
	}
	return oboModifyPayloadSize, nil
}

func DecodeOBOModifyPayload(src []byte) (OBOModifyPayload, error) {
	var p OBOModifyPayload
	if len(src) < oboModifyPayloadSize {
		return p, ErrShortBuffer
	}
	p.OrderID = binary.LittleEndian.Uint64(src[0:8])
	p.NewQuantity = binary.LittleEndian.Uint64(src[8:16])
	p.NewPrice = int64(binary.LittleEndian.Uint64(src[16:24]))
	p.HasNewPrice = src[24] != 0
	return p, nil
}

// OBOCancelPayload is the fixed-layout payload for MsgOBOCancel.
type OBOCancelPayload struct {
	OrderID uint64
}

const oboCancelPayloadSize = 8

func (p OBOCancelPayload) Encode(dst []byte) (int, error) {
	if len(dst) < oboCancelPayloadSize {
		return 0, ErrShortBuffer
	}
	binary.LittleEndian.PutUint64(dst[0:8], p.OrderID)
	return oboCancelPayloadSize, nil
}

func DecodeOBOCancelPayload(src []byte) (OBOCancelPayload, error) {
	var p OBOCancelPayload
	if len(src) < oboCancelPayloadSize {
		return p, ErrShortBuffer
	}
	p.OrderID = binary.LittleEndian.Uint64(src[0:8])
	return p, nil
}

// OBOExecutePayload is the fixed-layout payload for MsgOBOExecute (trade).
type OBOExecutePayload struct {
	OrderID        uint64
	TradedQuantity uint64
	RemainingQty   uint64
}

const oboExecutePayloadSize = 8 + 8 + 8

func (p OBOExecutePayload) Encode(dst []byte) (int, error) {
	if len(dst) < oboExecutePayloadSize {
		return 0, ErrShortBuffer
	}
	binary.LittleEndian.PutUint64(dst[0:8], p.OrderID)
	binary.LittleEndian.PutUint64(dst[8:16], p.TradedQuantity)
	binary.LittleEndian.PutUint64(dst[16:24], p.RemainingQty)
	return oboExecutePayloadSize, nil
}

func DecodeOBOExecutePayload(src []byte) (OBOExecutePayload, error) {
	var p OBOExecutePayload
	if len(src) < oboExecutePayloadSize {
		return p, ErrShortBuffer
	}
	p.OrderID = binary.LittleEndian.Uint64(src[0:8])
	p.TradedQuantity = binary.LittleEndian.Uint64(src[8:16])
	p.RemainingQty = binary.LittleEndian.Uint64(src[16:24])
	return p, nil
}

// GapPayload is the fixed-layout payload for MsgGap.
type GapPayload struct {
	From uint64
	To   uint64
}

const gapPayloadSize = 16

func (p GapPayload) Encode(dst []byte) (int, error) {
	if len(dst) < gapPayloadSize {
		return 0, ErrShortBuffer
	}
	binary.LittleEndian.PutUint64(dst[0:8], p.From)
	binary.LittleEndian.PutUint64(dst[8:16], p.To)
	return gapPayloadSize, nil
}

func DecodeGapPayload(src []byte) (GapPayload, error) {
	var p GapPayload
	if len(src) < gapPayloadSize {
		return p, ErrShortBuffer
	}
	p.From = binary.LittleEndian.Uint64(src[0:8])
	p.To = binary.LittleEndian.Uint64(src[8:16])
	return p, nil
}

// SnapshotHdrPayload is the fixed-layout payload for MsgSnapshotHdr.
type SnapshotHdrPayload struct {
	InstrumentID   uint64
	OrderCount     uint64
	NextArrivalSeq uint64
}

const snapshotHdrPayloadSize = 24

func (p SnapshotHdrPayload) Encode(dst []byte) (int, error) {
	if len(dst) < snapshotHdrPayloadSize {
		return 0, ErrShortBuffer
	}
	binary.LittleEndian.PutUint64(dst[0:8], p.InstrumentID)
	binary.LittleEndian.PutUint64(dst[8:16], p.OrderCount)
	binary.LittleEndian.PutUint64(dst[16:24], p.NextArrivalSeq)
	return snapshotHdrPayloadSize, nil
}

func DecodeSnapshotHdrPayload(src []byte) (SnapshotHdrPayload, error) {
	var p SnapshotHdrPayload
	if len(src) < snapshotHdrPayloadSize {
		return p, ErrShortBuffer
	}
	p.InstrumentID = binary.LittleEndian.Uint64(src[0:8])
	p.OrderCount = binary.LittleEndian.Uint64(src[8:16])
	p.NextArrivalSeq = binary.LittleEndian.Uint64(src[16:24])
	return p, nil
}
