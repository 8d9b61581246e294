// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recovery_test

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/Numi2/Numi-orderbook/merge"
	"github.com/Numi2/Numi-orderbook/pool"
	"github.com/Numi2/Numi-orderbook/recovery"
)

func TestGapLogAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gaps.log")
	log, err := recovery.OpenGapLog(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := log.Append(merge.Gap{From: 50, To: 60}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestInjectorFillsGap(t *testing.T) {
	p := pool.New(8, 32)
	m := merge.New(merge.Config{
		ReorderWindow:      8,
		MaxPendingPackets:  8,
		InitialExpectedSeq: 50,
		SeqExtractor:       merge.SeqExtractor{Offset: 0, Length: 8},
	}, nil)
	inj := recovery.NewInjector(m)

	f, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	f.Payload = f.Payload[:8]
	binary.LittleEndian.PutUint64(f.Payload, 50)
	f.Len = 8

	emitted, err := inj.Inject(f, 0)
	if err != nil {
		t.Fatalf("inject: %v", err)
	}
	if len(emitted) != 1 {
		t.Fatalf("want 1 emitted frame, got %d", len(emitted))
	}
	if emitted[0].Channel != pool.ChannelRecovery {
		t.Fatalf("want channel tagged Recovery, got %v", emitted[0].Channel)
	}
	emitted[0].Release()
}
