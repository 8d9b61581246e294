// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package proto_test

import (
	"testing"

	"github.com/Numi2/Numi-orderbook/proto"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := proto.Header{
		MessageType:  proto.MsgOBOAdd,
		ChannelID:    proto.ChannelOBOL3,
		InstrumentID: 7,
		Sequence:     42,
		SendTimeNS:   123456789,
		PayloadLen:   40,
	}
	buf := make([]byte, proto.HeaderSize)
	n, err := h.Encode(buf)
	if err != nil || n != proto.HeaderSize {
		t.Fatalf("encode: n=%d err=%v", n, err)
	}
	got, err := proto.DecodeHeader(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != h {
		t.Fatalf("round-trip mismatch: want %+v, got %+v", h, got)
	}
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, proto.HeaderSize)
	if _, err := proto.DecodeHeader(buf); err == nil {
		t.Fatal("expected error for zeroed buffer (bad magic)")
	}
}

func TestDecodeHeaderShortBuffer(t *testing.T) {
	if _, err := proto.DecodeHeader(make([]byte, 10)); err != proto.ErrShortBuffer {
		t.Fatalf("want ErrShortBuffer, got %v", err)
	}
}

func TestOBOAddPayloadRoundTrip(t *testing.T) {
	p := proto.OBOAddPayload{OrderID: 99, Side: proto.SideBid, Price: 10050, Quantity: 10, ArrivalSeq: 3}
	buf := make([]byte, 40)
	n, err := p.Encode(buf)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := proto.DecodeOBOAddPayload(buf[:n])
	if err != nil || got != p {
		t.Fatalf("round-trip mismatch: want %+v, got %+v (err %v)", p, got, err)
	}
}

func TestOBOModifyPayloadRoundTrip(t *testing.T) {
	p := proto.OBOModifyPayload{OrderID: 5, NewQuantity: 20, NewPrice: -100, HasNewPrice: true}
	buf := make([]byte, 32)
	n, _ := p.Encode(buf)
	got, err := proto.DecodeOBOModifyPayload(buf[:n])
	if err != nil || got != p {
		t.Fatalf("round-trip mismatch: want %+v, got %+v (err %v)", p, got, err)
	}
}

func TestGapPayloadRoundTrip(t *testing.T) {
	p := proto.GapPayload{From: 50, To: 60}
	buf := make([]byte, 16)
	p.Encode(buf)
	got, err := proto.DecodeGapPayload(buf)
	if err != nil || got != p {
		t.Fatalf("round-trip mismatch: want %+v, got %+v (err %v)", p, got, err)
	}
}
