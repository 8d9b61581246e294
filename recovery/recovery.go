// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package recovery implements the boundary contract of spec.md §4.7: an
// append-only gap log, and an injector that feeds previously-gapped
// sequences back into Merge tagged Recovery, identically to RX frames.
// The replay transport's own retries, timeouts, and acking are out of
// scope; this package only defines the log record and the injection call
// shape Merge consumes.
package recovery

import (
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/Numi2/Numi-orderbook/merge"
	"github.com/Numi2/Numi-orderbook/pool"
)

// GapRecord is one append-only entry in the gap log.
type GapRecord struct {
	From uint64
	To   uint64
	AtNS int64
}

const gapRecordSize = 8 + 8 + 8

// GapLog appends Gap{from,to,t} tuples to a flat file for later recovery
// tooling to read and replay.
type GapLog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenGapLog opens (creating if necessary) an append-only gap log at path.
func OpenGapLog(path string) (*GapLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &GapLog{file: f}, nil
}

// Append writes one gap record, stamping AtNS with time.Now.
func (l *GapLog) Append(g merge.Gap) error {
	rec := GapRecord{From: g.From, To: g.To, AtNS: time.Now().UnixNano()}
	var buf [gapRecordSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], rec.From)
	binary.LittleEndian.PutUint64(buf[8:16], rec.To)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(rec.AtNS))

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.file.Write(buf[:])
	return err
}

// Close flushes and closes the underlying file.
func (l *GapLog) Close() error { return l.file.Close() }

// Injector pushes externally-sourced frames into Merge's Ingest boundary,
// tagged pool.ChannelRecovery, with the same non-blocking contract RX
// observes.
type Injector struct {
	target *merge.Merge
}

// NewInjector binds an Injector to the Merge stage it feeds.
func NewInjector(target *merge.Merge) *Injector {
	return &Injector{target: target}
}

// Inject hands one recovered frame to Merge as if it had arrived on a
// third redundant feed. Sequences already emitted are dropped as
// duplicates by Merge itself; sequences filling a known gap close it.
func (i *Injector) Inject(frame *pool.Frame, nowNS int64) ([]*pool.Frame, error) {
	frame.Channel = pool.ChannelRecovery
	return i.target.Ingest(frame, pool.ChannelRecovery, nowNS)
}
