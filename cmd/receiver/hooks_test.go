// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Numi2/Numi-orderbook/bus"
	"github.com/Numi2/Numi-orderbook/merge"
	"github.com/Numi2/Numi-orderbook/metrics"
	"github.com/Numi2/Numi-orderbook/proto"
	"github.com/Numi2/Numi-orderbook/recovery"
)

func TestGapHooksPublishesAndLogs(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())

	path := filepath.Join(t.TempDir(), "gaps.log")
	gapLog, err := recovery.OpenGapLog(path)
	if err != nil {
		t.Fatalf("open gap log: %v", err)
	}

	b := bus.New(8, 8, func() int64 { return 0 }, nil)
	sub := b.Subscribe(nil, nil)

	h := gapHooks{MergeHooks: metrics.MergeHooks{R: reg}, gapLog: gapLog, bus: b}
	h.OnGap(merge.Gap{From: 10, To: 20})

	if err := gapLog.Close(); err != nil {
		t.Fatalf("close gap log: %v", err)
	}

	fr, ok := sub.ReadFrame()
	if !ok {
		t.Fatal("want a MsgGap frame published to the bus")
	}
	if fr.Header.MessageType != proto.MsgGap {
		t.Fatalf("want MsgGap, got %v", fr.Header.MessageType)
	}
	gap, err := proto.DecodeGapPayload(fr.Payload[:fr.PayloadLen])
	if err != nil {
		t.Fatalf("decode gap payload: %v", err)
	}
	if gap.From != 10 || gap.To != 20 {
		t.Fatalf("want Gap{10,20}, got %+v", gap)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read gap log: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("want a record appended to the gap log")
	}
}

func TestGapHooksToleratesNilLogAndBus(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	h := gapHooks{MergeHooks: metrics.MergeHooks{R: reg}}
	h.OnGap(merge.Gap{From: 1, To: 2}) // must not panic with gapLog/bus unset
}
