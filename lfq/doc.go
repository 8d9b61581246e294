// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lfq provides the bounded, lock-free FIFO queues that back every
// hot-path hand-off in the receiver: the RX→Merge and Merge→Decode SPSC
// edges, the per-subscriber bus rings, and the packet pool's free list.
//
// Two variants are kept, matched to the two access patterns the pipeline
// actually needs:
//
//   - SPSC: one producer, one consumer. Used for every pinned-thread
//     pipeline edge ("pinned OS threads per stage, one producer and one
//     consumer per edge").
//   - MPMCIndirect: many producers, many consumers, of uintptr values.
//     Used as the packet pool's shared free list, since buffers are
//     acquired by RX-A and RX-B concurrently and released by Decode and by
//     Merge (on its duplicate, stale-slot and eviction paths).
//
// # Quick Start
//
//	edge := lfq.NewSPSC[*pool.Frame](4096)
//	freeList := lfq.NewMPMCIndirect(poolSize)
//
// # Basic Usage
//
//	// Enqueue (non-blocking)
//	err := edge.Enqueue(&frame)
//	if lfq.IsWouldBlock(err) {
//	    // consumer is behind; the hot path never blocks, the caller decides
//	}
//
//	// Dequeue (non-blocking)
//	frame, err := edge.Dequeue()
//	if lfq.IsWouldBlock(err) {
//	    // nothing to do this tick
//	}
//
// # SPSCIndirect
//
// SPSCIndirect carries a uintptr (a pool slot index) instead of a typed
// value, for the optional per-channel pool carve-out: "For the hottest
// RX→Merge edge, per-channel pools may be carved out so RX and Merge
// communicate over SPSC."
//
//	freeList := lfq.NewSPSCIndirect(channelPoolSize)
//	idx, err := freeList.Dequeue()
//	buf := backing[idx]
//	// ... fill buf ...
//	freeList.Enqueue(idx) // returned by the sole consumer of this channel
//
// # Graceful Shutdown
//
// MPMCIndirect includes a threshold mechanism to prevent livelock. This
// mechanism may cause Dequeue to return [ErrWouldBlock] even when items
// remain, waiting for producer activity to reset the threshold. Call
// Drain once producers have stopped so consumers can empty the queue:
//
//	if d, ok := q.(lfq.Drainer); ok {
//	    d.Drain()
//	}
//
// SPSC queues do not implement Drainer; they have no threshold mechanism.
//
// # Capacity
//
// Capacity rounds up to the next power of 2; minimum is 2. Length is
// intentionally not provided — accurate counts in lock-free algorithms
// require expensive cross-core synchronization, and the pipeline tracks
// what it needs (pending_count, live order counts) in application state.
//
// # Race Detection
//
// Go's race detector tracks explicit synchronization primitives (mutex,
// channels, WaitGroup) but not the acquire-release orderings these queues
// establish through atomics on separate variables. Concurrent tests for
// the generic [T] queue are skipped at run time under race by checking
// [RaceEnabled].
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit memory
// ordering, and [code.hybscloud.com/spin] for CPU pause instructions.
package lfq
