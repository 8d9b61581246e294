// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decode_test

import (
	"encoding/binary"
	"testing"

	"github.com/Numi2/Numi-orderbook/book"
	"github.com/Numi2/Numi-orderbook/decode"
	"github.com/Numi2/Numi-orderbook/pool"
	"github.com/Numi2/Numi-orderbook/proto"
)

func putEvent(dst []byte, ev proto.Event) {
	dst[0] = byte(ev.Kind)
	binary.LittleEndian.PutUint64(dst[1:9], ev.InstrumentID)
	binary.LittleEndian.PutUint64(dst[9:17], ev.OrderID)
	dst[17] = byte(ev.Side)
	binary.LittleEndian.PutUint64(dst[18:26], uint64(ev.Price))
	binary.LittleEndian.PutUint64(dst[26:34], ev.Quantity)
	binary.LittleEndian.PutUint64(dst[34:42], ev.TimestampNS)
	binary.LittleEndian.PutUint64(dst[42:50], uint64(ev.NewPrice))
	if ev.HasNewPrice {
		dst[50] = 1
	}
}

func TestParseFixedBinarySingleEvent(t *testing.T) {
	payload := make([]byte, 8+51)
	ev := proto.Event{Kind: proto.EventAdd, InstrumentID: 7, OrderID: 1, Side: proto.SideBid, Price: 100, Quantity: 10}
	putEvent(payload[8:], ev)

	got, err := decode.ParseFixedBinary(payload, 16, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0].InstrumentID != 7 || got[0].OrderID != 1 || got[0].Quantity != 10 {
		t.Fatalf("want decoded add event, got %+v", got)
	}
}

func TestParseFixedBinaryMalformedShort(t *testing.T) {
	if _, err := decode.ParseFixedBinary(make([]byte, 10), 16, nil); err != decode.ErrMalformedFrame {
		t.Fatalf("want ErrMalformedFrame, got %v", err)
	}
}

type recordingPublisher struct {
	calls        []proto.MessageType
	instrumentID []uint64
	payloads     [][]byte
}

func (p *recordingPublisher) Publish(instrumentID uint64, mt proto.MessageType, payload []byte) (uint64, error) {
	p.calls = append(p.calls, mt)
	p.instrumentID = append(p.instrumentID, instrumentID)
	p.payloads = append(p.payloads, append([]byte(nil), payload...))
	return uint64(len(p.calls)), nil
}

func TestStageProcessAppliesAndPublishes(t *testing.T) {
	p := pool.New(4, 128)
	reg := book.NewRegistry()
	pub := &recordingPublisher{}
	stage := decode.NewStage(reg, pub, 16, nil)

	f, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	f.Payload = f.Payload[:8+51]
	f.Len = len(f.Payload)
	putEvent(f.Payload[8:], proto.Event{Kind: proto.EventAdd, InstrumentID: 7, OrderID: 1, Side: proto.SideBid, Price: 100, Quantity: 10})

	if err := stage.Process(f, 1000); err != nil {
		t.Fatalf("process: %v", err)
	}
	b, ok := reg.Get(7)
	if !ok || b.LiveOrders() != 1 {
		t.Fatalf("want 1 live order on instrument 7, got ok=%v", ok)
	}
	if len(pub.calls) != 1 || pub.calls[0] != proto.MsgOBOAdd {
		t.Fatalf("want 1 OBO_ADD publish, got %v", pub.calls)
	}
}

func TestStageProcessReplaceSeriesPublishesGap(t *testing.T) {
	p := pool.New(4, 128)
	reg := book.NewRegistry()
	pub := &recordingPublisher{}
	stage := decode.NewStage(reg, pub, 16, nil)

	f, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	f.Payload = f.Payload[:8+51]
	f.Len = len(f.Payload)
	// ReplaceSeries reuses Price/Quantity as FromSeq/ToSeq (decode/decoder.go).
	putEvent(f.Payload[8:], proto.Event{Kind: proto.EventReplaceSeries, InstrumentID: 7, Price: 10, Quantity: 20})

	if err := stage.Process(f, 1000); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(pub.calls) != 1 || pub.calls[0] != proto.MsgGap {
		t.Fatalf("want 1 MsgGap publish, got %v", pub.calls)
	}
	if pub.instrumentID[0] != 0 {
		t.Fatalf("want feed-wide instrument_id 0 for a ReplaceSeries gap, got %d", pub.instrumentID[0])
	}
	gap, err := proto.DecodeGapPayload(pub.payloads[0])
	if err != nil {
		t.Fatalf("decode gap payload: %v", err)
	}
	if gap.From != 10 || gap.To != 20 {
		t.Fatalf("want Gap{10,20}, got %+v", gap)
	}
}

func TestStageProcessSnapshotMarkerSkipsPublish(t *testing.T) {
	p := pool.New(4, 128)
	reg := book.NewRegistry()
	pub := &recordingPublisher{}
	stage := decode.NewStage(reg, pub, 16, nil)

	f, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	f.Payload = f.Payload[:8+51]
	f.Len = len(f.Payload)
	putEvent(f.Payload[8:], proto.Event{Kind: proto.EventSnapshotMarker, InstrumentID: 7})

	if err := stage.Process(f, 1000); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(pub.calls) != 0 {
		t.Fatalf("want no publish for a SnapshotMarker event, got %v", pub.calls)
	}
}
