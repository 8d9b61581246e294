// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics instruments every counter, gauge, and histogram named
// in spec.md §6. Exposing them over HTTP is explicitly out of scope
// (spec.md §1); stages hold a *Registry and call Inc/Observe directly.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every named metric the core emits.
type Registry struct {
	RXPackets prometheus.CounterVec
	RXBytes   prometheus.CounterVec

	MergeGaps       prometheus.Counter
	MergeDups       prometheus.CounterVec
	MergeWindowFull prometheus.Counter
	MergeDropped    prometheus.Counter
	MergeEvictions  prometheus.Counter

	DecodeMessages        prometheus.Counter
	DecodeErrors          prometheus.Counter
	ApplyErrors           prometheus.Counter
	DecodeReplaceSeries   prometheus.Counter
	DecodeSnapshotMarkers prometheus.Counter

	BookLiveOrders prometheus.Gauge

	OutFramesTotal     prometheus.Counter
	OutBytesTotal      prometheus.Counter
	DroppedClients     prometheus.Counter

	E2ELatencySeconds     prometheus.HistogramVec
	TSMonotonicViolations prometheus.CounterVec
}

// NewRegistry constructs and registers every metric against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		RXPackets: *prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rx_packets", Help: "datagrams received per channel.",
		}, []string{"chan"}),
		RXBytes: *prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rx_bytes", Help: "bytes received per channel.",
		}, []string{"chan"}),

		MergeGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "merge_gaps", Help: "gaps raised by the merge stage.",
		}),
		MergeDups: *prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "merge_dups", Help: "duplicate sequences dropped per channel.",
		}, []string{"chan"}),
		MergeWindowFull: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "merge_window_full", Help: "reorder window saturation events.",
		}),
		MergeDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "merge_dropped", Help: "frames dropped clearing stale window slots.",
		}),
		MergeEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "merge_evictions", Help: "oldest-buffered-frame evictions under pending pressure.",
		}),

		DecodeMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "decode_messages", Help: "events parsed by Decode.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "decode_errors", Help: "malformed packets dropped by Decode.",
		}),
		ApplyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "book_apply_errors", Help: "events dropped by Book on DuplicateOrderId/UnknownOrderId (spec.md 9b).",
		}),
		DecodeReplaceSeries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "decode_replace_series_total", Help: "ReplaceSeries events republished as a Gap control frame.",
		}),
		DecodeSnapshotMarkers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "decode_snapshot_markers_total", Help: "SnapshotMarker events observed in the live feed.",
		}),

		BookLiveOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "book_live_orders", Help: "currently resting orders across all instruments.",
		}),

		OutFramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "out_frames_total", Help: "OBO frames published to subscribers.",
		}),
		OutBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "out_bytes_total", Help: "OBO bytes published to subscribers.",
		}),
		DroppedClients: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dropped_clients_total", Help: "subscribers detached for falling behind.",
		}),

		E2ELatencySeconds: *prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "e2e_latency_seconds", Help: "wire-to-decode latency by timestamp source.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"source"}),
		TSMonotonicViolations: *prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ts_monotonic_violations", Help: "wire timestamp non-monotonicity per queue.",
		}, []string{"queue"}),
	}

	for _, c := range []prometheus.Collector{
		&r.RXPackets, &r.RXBytes, r.MergeGaps, &r.MergeDups, r.MergeWindowFull,
		r.MergeDropped, r.MergeEvictions, r.DecodeMessages, r.DecodeErrors,
		r.ApplyErrors, r.DecodeReplaceSeries, r.DecodeSnapshotMarkers,
		r.BookLiveOrders, r.OutFramesTotal, r.OutBytesTotal, r.DroppedClients,
		&r.E2ELatencySeconds, &r.TSMonotonicViolations,
	} {
		reg.MustRegister(c)
	}
	return r
}
