// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bus_test

import (
	"testing"

	"github.com/Numi2/Numi-orderbook/bus"
	"github.com/Numi2/Numi-orderbook/proto"
)

func TestPublishAssignsMonotonicSequence(t *testing.T) {
	b := bus.New(8, 8, func() int64 { return 0 }, nil)
	sub := b.Subscribe([]uint64{7}, nil)

	for i := 0; i < 3; i++ {
		if _, err := b.Publish(7, proto.MsgOBOAdd, []byte{byte(i)}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	var seqs []uint64
	for i := 0; i < 3; i++ {
		fr, ok := sub.ReadFrame()
		if !ok {
			t.Fatalf("want frame %d available", i)
		}
		seqs = append(seqs, fr.Header.Sequence)
	}
	if seqs[0] != 1 || seqs[1] != 2 || seqs[2] != 3 {
		t.Fatalf("want sequence 1,2,3, got %v", seqs)
	}
}

func TestSlowSubscriberDroppedWithoutBlockingProducer(t *testing.T) {
	const capacity = 4
	b := bus.New(capacity, capacity, func() int64 { return 0 }, nil)
	slow := b.Subscribe([]uint64{1}, nil)
	fast := b.Subscribe([]uint64{1}, nil)

	// Drain nothing from slow; fill its ring plus one more to force drop.
	// Fast is drained after every publish, so its ring never fills.
	count := 0
	for i := 0; i < capacity+1; i++ {
		if _, err := b.Publish(1, proto.MsgOBOAdd, []byte{byte(i)}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		for {
			if _, ok := fast.ReadFrame(); !ok {
				break
			}
			count++
		}
	}

	if !slow.Dropped() {
		t.Fatal("want slow subscriber marked dropped")
	}

	// Fast subscriber, which we do drain, must still observe every frame:
	// the producer never stalled on the slow one.
	if fast.Dropped() || count != capacity+1 {
		t.Fatalf("want fast subscriber unaffected by slow subscriber's drop, got dropped=%v frames=%d", fast.Dropped(), count)
	}
}

func TestInstrumentFilterExcludesOtherInstruments(t *testing.T) {
	b := bus.New(4, 4, func() int64 { return 0 }, nil)
	sub := b.Subscribe([]uint64{1}, nil)

	b.Publish(2, proto.MsgOBOAdd, []byte{1})
	if _, ok := sub.ReadFrame(); ok {
		t.Fatal("want no frame for unsubscribed instrument")
	}

	b.Publish(1, proto.MsgOBOAdd, []byte{2})
	if _, ok := sub.ReadFrame(); !ok {
		t.Fatal("want frame for subscribed instrument")
	}
}

func TestSnapshotFramesCarrySequenceZero(t *testing.T) {
	b := bus.New(8, 8, func() int64 { return 0 }, nil)
	sub := b.Subscribe([]uint64{7}, nil)

	records := []bus.SnapshotRecord{
		{OrderID: 1, Side: proto.SideBid, Price: 100, RemainingQty: 5, ArrivalSeq: 1},
	}
	if err := b.SendSnapshot(sub, 7, records); err != nil {
		t.Fatalf("send snapshot: %v", err)
	}

	for i := 0; i < 3; i++ {
		fr, ok := sub.ReadFrame()
		if !ok {
			t.Fatalf("want snapshot frame %d", i)
		}
		if fr.Header.Sequence != 0 {
			t.Fatalf("want sequence 0 for snapshot frame, got %d", fr.Header.Sequence)
		}
	}
}

func TestSubscribeStaleFromSeqEmitsGap(t *testing.T) {
	const historySize = 2
	b := bus.New(8, historySize, func() int64 { return 0 }, nil)

	// Publish more than historySize frames so sequence 1 rolls off the ring.
	for i := 0; i < 5; i++ {
		if _, err := b.Publish(1, proto.MsgOBOAdd, []byte{byte(i)}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	sub := b.Subscribe([]uint64{1}, map[uint64]uint64{1: 1})
	fr, ok := sub.ReadFrame()
	if !ok {
		t.Fatal("want a replayed frame for the stale subscribe")
	}
	if fr.Header.MessageType != proto.MsgGap {
		t.Fatalf("want MsgGap for a from_seq below retained history, got %v", fr.Header.MessageType)
	}
	if fr.Header.Sequence != 0 {
		t.Fatalf("want sequence 0 for a Gap control frame, got %d", fr.Header.Sequence)
	}
	gap, err := proto.DecodeGapPayload(fr.Payload[:fr.PayloadLen])
	if err != nil {
		t.Fatalf("decode gap payload: %v", err)
	}
	if gap.From != 1 {
		t.Fatalf("want gap.From == requested from_seq 1, got %d", gap.From)
	}
}

func TestSubscribeUnknownInstrumentFromSeqEmitsGap(t *testing.T) {
	b := bus.New(8, 8, func() int64 { return 0 }, nil)

	sub := b.Subscribe([]uint64{42}, map[uint64]uint64{42: 1})
	fr, ok := sub.ReadFrame()
	if !ok {
		t.Fatal("want a Gap frame for an instrument never published")
	}
	if fr.Header.MessageType != proto.MsgGap {
		t.Fatalf("want MsgGap for an unseen instrument's from_seq request, got %v", fr.Header.MessageType)
	}
}

func TestPublishGapBroadcastsPastInstrumentFilter(t *testing.T) {
	b := bus.New(8, 8, func() int64 { return 0 }, nil)
	sub := b.Subscribe([]uint64{1}, nil) // only wants instrument 1

	var buf [16]byte
	n, _ := proto.GapPayload{From: 5, To: 9}.Encode(buf[:])
	if _, err := b.Publish(0, proto.MsgGap, buf[:n]); err != nil {
		t.Fatalf("publish gap: %v", err)
	}

	fr, ok := sub.ReadFrame()
	if !ok {
		t.Fatal("want the feed-wide Gap frame despite the subscriber's instrument filter")
	}
	if fr.Header.MessageType != proto.MsgGap {
		t.Fatalf("want MsgGap, got %v", fr.Header.MessageType)
	}
}
