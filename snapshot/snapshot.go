// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package snapshot implements the book-state file format of spec.md §6:
// per-instrument header and order records, written atomically and
// verified per-instrument on load so a single corrupted instrument never
// blocks the rest of the book from restoring.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/OneOfOne/xxhash"

	"github.com/Numi2/Numi-orderbook/book"
	"github.com/Numi2/Numi-orderbook/proto"
)

// ErrSnapshotCorrupt is returned for an individual instrument whose
// checksum does not match; that instrument alone starts empty for the
// session (spec.md §7 addition).
var ErrSnapshotCorrupt = errors.New("snapshot: instrument checksum mismatch")

const recordSize = 8 + 1 + 8 + 8 + 8 // order_id, side, price, remaining_qty, arrival_seq

// Save writes every instrument in reg, in ascending instrument_id order,
// to path atomically (write to path+".tmp", then rename).
func Save(path string, reg *book.Registry) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	for _, id := range reg.InstrumentIDs() {
		b, _ := reg.Get(id)
		if err := writeInstrument(w, b); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeInstrument(w io.Writer, b *book.InstrumentBook) error {
	records := b.SnapshotIter()

	var next uint64
	for _, r := range records {
		if r.ArrivalSeq >= next {
			next = r.ArrivalSeq + 1
		}
	}

	block := make([]byte, 0, 24+len(records)*recordSize)
	var hdr [24]byte
	binary.LittleEndian.PutUint64(hdr[0:8], b.InstrumentID)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(len(records)))
	binary.LittleEndian.PutUint64(hdr[16:24], next)
	block = append(block, hdr[:]...)

	for _, r := range records {
		var rec [recordSize]byte
		binary.LittleEndian.PutUint64(rec[0:8], r.OrderID)
		rec[8] = byte(r.Side)
		binary.LittleEndian.PutUint64(rec[9:17], uint64(r.Price))
		binary.LittleEndian.PutUint64(rec[17:25], r.RemainingQty)
		binary.LittleEndian.PutUint64(rec[25:33], r.ArrivalSeq)
		block = append(block, rec[:]...)
	}

	if _, err := w.Write(block); err != nil {
		return err
	}
	var checksum [8]byte
	binary.LittleEndian.PutUint64(checksum[:], xxhash.Checksum64(block))
	_, err := w.Write(checksum[:])
	return err
}

// Load rebuilds a Registry from path, restoring each instrument's records
// in file order (price level by price level, FIFO within each level) with
// their recorded arrival_seq, so FIFO and arrival_seq reconstruct exactly. An instrument whose checksum fails to verify is skipped (that
// instrument starts empty); Load still returns the other instruments and
// a non-nil error identifying the problem, since the caller must be able
// to tell "partial" from "complete" without parsing error text.
func Load(path string) (*book.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	reg := book.NewRegistry()
	var firstErr error
	off := 0
	for off+24 <= len(data) {
		instrumentID := binary.LittleEndian.Uint64(data[off : off+8])
		orderCount := binary.LittleEndian.Uint64(data[off+8 : off+16])
		blockLen := 24 + int(orderCount)*recordSize
		if off+blockLen+8 > len(data) {
			if firstErr == nil {
				firstErr = ErrSnapshotCorrupt
			}
			break
		}
		block := data[off : off+blockLen]
		wantChecksum := binary.LittleEndian.Uint64(data[off+blockLen : off+blockLen+8])
		off += blockLen + 8

		if xxhash.Checksum64(block) != wantChecksum {
			if firstErr == nil {
				firstErr = ErrSnapshotCorrupt
			}
			continue
		}

		b := reg.GetOrCreate(instrumentID)
		recs := block[24:]
		for i := uint64(0); i < orderCount; i++ {
			rb := recs[i*recordSize : (i+1)*recordSize]
			rec := book.SnapshotRecord{
				OrderID:      binary.LittleEndian.Uint64(rb[0:8]),
				Side:         proto.Side(rb[8]),
				Price:        int64(binary.LittleEndian.Uint64(rb[9:17])),
				RemainingQty: binary.LittleEndian.Uint64(rb[17:25]),
				ArrivalSeq:   binary.LittleEndian.Uint64(rb[25:33]),
			}
			if err := b.Restore(rec); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	return reg, firstErr
}
