// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"log"

	"github.com/Numi2/Numi-orderbook/bus"
	"github.com/Numi2/Numi-orderbook/merge"
	"github.com/Numi2/Numi-orderbook/metrics"
	"github.com/Numi2/Numi-orderbook/proto"
	"github.com/Numi2/Numi-orderbook/recovery"
)

// gapHooks extends metrics.MergeHooks' counter-only OnGap with the two
// other consumers spec.md §6/§7 name for a Merge Gap: the append-only
// recovery log, and a live MsgGap frame so subscribers learn about the
// skip instead of just silently missing sequences.
type gapHooks struct {
	metrics.MergeHooks
	gapLog *recovery.GapLog
	bus    *bus.Bus
}

func (h gapHooks) OnGap(g merge.Gap) {
	h.MergeHooks.OnGap(g)

	if h.gapLog != nil {
		if err := h.gapLog.Append(g); err != nil {
			log.Printf("receiver: gap log append: %v", err)
		}
	}

	if h.bus != nil {
		var buf [16]byte
		n, _ := proto.GapPayload{From: g.From, To: g.To}.Encode(buf[:])
		// instrument_id 0: a Merge-level gap precedes Decode's per-
		// instrument dispatch, so it isn't tied to any one instrument.
		if _, err := h.bus.Publish(0, proto.MsgGap, buf[:n]); err != nil {
			log.Printf("receiver: gap publish: %v", err)
		}
	}
}

var _ merge.Hooks = gapHooks{}
