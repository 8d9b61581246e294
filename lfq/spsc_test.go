// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq_test

import (
	"testing"

	"github.com/Numi2/Numi-orderbook/lfq"
)

func TestSPSCEnqueueDequeueOrder(t *testing.T) {
	q := lfq.NewSPSC[int](8)
	for i := 0; i < 8; i++ {
		if err := q.Enqueue(&i); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	nine := 9
	if err := q.Enqueue(&nine); !lfq.IsWouldBlock(err) {
		t.Fatalf("expected ErrWouldBlock on full queue, got %v", err)
	}

	for i := 0; i < 8; i++ {
		got, err := q.Dequeue()
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if got != i {
			t.Fatalf("fifo order violated: want %d, got %d", i, got)
		}
	}

	if _, err := q.Dequeue(); !lfq.IsWouldBlock(err) {
		t.Fatalf("expected ErrWouldBlock on empty queue, got %v", err)
	}
}

func TestSPSCCapacityRoundsUpToPow2(t *testing.T) {
	q := lfq.NewSPSC[int](3)
	if q.Cap() != 4 {
		t.Fatalf("want capacity 4, got %d", q.Cap())
	}
}

func TestSPSCPanicsBelowMinCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for capacity < 2")
		}
	}()
	lfq.NewSPSC[int](1)
}

func TestSPSCIndirectFreeList(t *testing.T) {
	q := lfq.NewSPSCIndirect(4)
	for i := uintptr(0); i < 4; i++ {
		if err := q.Enqueue(i); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := q.Enqueue(4); !lfq.IsWouldBlock(err) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}
	for i := uintptr(0); i < 4; i++ {
		got, err := q.Dequeue()
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if got != i {
			t.Fatalf("fifo order violated: want %d, got %d", i, got)
		}
	}
}

// TestSPSCConcurrentProducerConsumer is excluded under the race detector:
// the happens-before relationship here is established by acquire/release
// atomics on separate head/tail variables, which the detector cannot see.
func TestSPSCConcurrentProducerConsumer(t *testing.T) {
	if lfq.RaceEnabled {
		t.Skip("lock-free ordering not observable by the race detector")
	}

	const n = 100_000
	q := lfq.NewSPSC[int](1024)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			v := i
			for q.Enqueue(&v) != nil {
			}
		}
	}()

	sum := 0
	for i := 0; i < n; i++ {
		var v int
		var err error
		for {
			v, err = q.Dequeue()
			if err == nil {
				break
			}
		}
		sum += v
	}
	<-done

	want := n * (n - 1) / 2
	if sum != want {
		t.Fatalf("want sum %d, got %d", want, sum)
	}
}
