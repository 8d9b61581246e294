// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"github.com/Numi2/Numi-orderbook/bus"
	"github.com/Numi2/Numi-orderbook/decode"
	"github.com/Numi2/Numi-orderbook/merge"
	"github.com/Numi2/Numi-orderbook/pool"
	"github.com/Numi2/Numi-orderbook/rx"
)

// MergeHooks adapts Registry to merge.Hooks.
type MergeHooks struct{ R *Registry }

func (h MergeHooks) OnGap(merge.Gap)        { h.R.MergeGaps.Inc() }
func (h MergeHooks) OnDup(c pool.Channel)   { h.R.MergeDups.WithLabelValues(c.String()).Inc() }
func (h MergeHooks) OnWindowFull()          { h.R.MergeWindowFull.Inc() }
func (h MergeHooks) OnDropped()             { h.R.MergeDropped.Inc() }
func (h MergeHooks) OnEviction()            { h.R.MergeEvictions.Inc() }

// DecodeHooks adapts Registry to decode.Hooks.
type DecodeHooks struct{ R *Registry }

func (h DecodeHooks) OnMessages(n int) { h.R.DecodeMessages.Add(float64(n)) }
func (h DecodeHooks) OnDecodeError()   { h.R.DecodeErrors.Inc() }
func (h DecodeHooks) OnTSMonotonicViolation(c pool.Channel) {
	h.R.TSMonotonicViolations.WithLabelValues(c.String()).Inc()
}
func (h DecodeHooks) OnE2ELatencyNS(source pool.TimestampSource, ns int64) {
	h.R.E2ELatencySeconds.WithLabelValues(sourceLabel(source)).Observe(float64(ns) / 1e9)
}
func (h DecodeHooks) OnApplyError(error)              { h.R.ApplyErrors.Inc() }
func (h DecodeHooks) OnReplaceSeries(_, _ uint64)     { h.R.DecodeReplaceSeries.Inc() }
func (h DecodeHooks) OnSnapshotMarker()               { h.R.DecodeSnapshotMarkers.Inc() }

func sourceLabel(s pool.TimestampSource) string {
	switch s {
	case pool.TSOff:
		return "off"
	case pool.TSSoftware:
		return "software"
	case pool.TSHWSys:
		return "hw_sys"
	case pool.TSHWRaw:
		return "hw_raw"
	default:
		return "unknown"
	}
}

// RXHooks adapts Registry to rx.Hooks for a fixed channel.
type RXHooks struct {
	R       *Registry
	Channel pool.Channel
}

func (h RXHooks) OnPacket(bytes int) {
	h.R.RXPackets.WithLabelValues(h.Channel.String()).Inc()
	h.R.RXBytes.WithLabelValues(h.Channel.String()).Add(float64(bytes))
}
func (h RXHooks) OnDrop()     {}
func (h RXHooks) OnOversize() {}

var _ rx.Hooks = RXHooks{}

// BusHooks adapts Registry to bus.Hooks.
type BusHooks struct{ R *Registry }

func (h BusHooks) OnFramesOut(n int)      { h.R.OutFramesTotal.Add(float64(n)) }
func (h BusHooks) OnBytesOut(n int)       { h.R.OutBytesTotal.Add(float64(n)) }
func (h BusHooks) OnSubscriberDropped()   { h.R.DroppedClients.Inc() }

var _ bus.Hooks = BusHooks{}
var _ decode.Hooks = DecodeHooks{}
var _ merge.Hooks = MergeHooks{}
