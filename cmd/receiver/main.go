// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command receiver is the process entry point: it loads configuration,
// wires the pinned-thread pipeline stages together, and runs until
// signaled to shut down.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Numi2/Numi-orderbook/affinity"
	"github.com/Numi2/Numi-orderbook/book"
	"github.com/Numi2/Numi-orderbook/bus"
	"github.com/Numi2/Numi-orderbook/config"
	"github.com/Numi2/Numi-orderbook/decode"
	"github.com/Numi2/Numi-orderbook/lfq"
	"github.com/Numi2/Numi-orderbook/merge"
	"github.com/Numi2/Numi-orderbook/metrics"
	"github.com/Numi2/Numi-orderbook/pool"
	"github.com/Numi2/Numi-orderbook/recovery"
	"github.com/Numi2/Numi-orderbook/rx"
	"github.com/Numi2/Numi-orderbook/snapshot"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file; defaults are used if empty")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("receiver: .env not loaded: %v", err)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("receiver: loading config: %v", err)
		}
		cfg = loaded
	}
	cfg = config.FromEnv(cfg)

	reg := metrics.NewRegistry(prometheus.NewRegistry())

	bookRegistry := book.NewRegistry()

	if cfg.SnapshotPath != "" {
		if loaded, err := snapshot.Load(cfg.SnapshotPath); err != nil {
			log.Printf("receiver: snapshot load: %v (continuing with empty/partial book)", err)
			if loaded != nil {
				bookRegistry = loaded
			}
		} else {
			bookRegistry = loaded
		}
	}
	bookRegistry.ConsumeTrades = cfg.ConsumeTrades
	bookRegistry.PreservePriorityOnQtyUp = cfg.PreservePriorityOnQtyUp
	for _, id := range bookRegistry.InstrumentIDs() {
		if b, ok := bookRegistry.Get(id); ok {
			b.PreservePriorityOnQtyUp = cfg.PreservePriorityOnQtyUp
		}
	}

	framePool := pool.New(cfg.PoolSize, cfg.MaxPacketSize)
	if err := framePool.Prewarm(); err != nil {
		log.Printf("receiver: pool prewarm: %v (continuing; pages may page-fault on first touch)", err)
	}

	rxA, err := rx.New(rx.Config{Group: cfg.ChannelA.Group, Port: cfg.ChannelA.Port, Iface: cfg.ChannelA.Iface},
		framePool, pool.ChannelA, metrics.RXHooks{R: reg, Channel: pool.ChannelA})
	if err != nil {
		log.Fatalf("receiver: opening channel A: %v", err)
	}
	rxB, err := rx.New(rx.Config{Group: cfg.ChannelB.Group, Port: cfg.ChannelB.Port, Iface: cfg.ChannelB.Iface},
		framePool, pool.ChannelB, metrics.RXHooks{R: reg, Channel: pool.ChannelB})
	if err != nil {
		log.Fatalf("receiver: opening channel B: %v", err)
	}

	subscriberBus := bus.New(cfg.BusRingCapacity, cfg.BusHistorySize, time.Now().UnixNano, metrics.BusHooks{R: reg})
	decodeStage := decode.NewStage(bookRegistry, subscriberBus, cfg.MaxMessagesPerPacket, metrics.DecodeHooks{R: reg})

	var gapLog *recovery.GapLog
	if cfg.GapLogPath != "" {
		gapLog, err = recovery.OpenGapLog(cfg.GapLogPath)
		if err != nil {
			log.Printf("receiver: opening gap log: %v (continuing without it)", err)
		}
	}

	m := merge.New(merge.Config{
		ReorderWindow:      cfg.ReorderWindow,
		MaxPendingPackets:  cfg.MaxPendingPackets,
		DwellNS:            cfg.DwellNS,
		InitialExpectedSeq: cfg.InitialExpectedSeq,
		SeqExtractor:       merge.SeqExtractor{Offset: cfg.Sequence.Offset, Length: cfg.Sequence.Length, BigEndian: cfg.Sequence.BigEndian},
	}, gapHooks{MergeHooks: metrics.MergeHooks{R: reg}, gapLog: gapLog, bus: subscriberBus})

	var shuttingDown atomic.Bool

	rxToMergeA := lfq.NewSPSC[*pool.Frame](1024)
	rxToMergeB := lfq.NewSPSC[*pool.Frame](1024)
	mergeToDecode := lfq.NewSPSC[*pool.Frame](1024)

	go rxLoop(rxA, rxToMergeA, 0, &shuttingDown)
	go rxLoop(rxB, rxToMergeB, 1, &shuttingDown)
	go mergeLoop(m, rxToMergeA, rxToMergeB, mergeToDecode, cfg.SpinLoopsPerYield, 2, &shuttingDown)
	go decodeLoop(decodeStage, mergeToDecode, reg, bookRegistry, cfg.SpinLoopsPerYield, 3, &shuttingDown)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Print("receiver: shutting down")
	shuttingDown.Store(true)
	framePool.Drain()
	time.Sleep(100 * time.Millisecond) // let pinned loops observe the flag and drain

	rxA.Close()
	rxB.Close()
	if gapLog != nil {
		gapLog.Close()
	}
	if cfg.SnapshotPath != "" {
		if err := snapshot.Save(cfg.SnapshotPath, bookRegistry); err != nil {
			log.Printf("receiver: snapshot save: %v", err)
		}
	}
}

func pinSelf(cpu int) {
	runtime.LockOSThread()
	if err := affinity.Pin(cpu); err != nil {
		log.Printf("receiver: best-effort CPU pin to %d failed: %v", cpu, err)
	}
}

func rxLoop(r *rx.Receiver, out *lfq.SPSC[*pool.Frame], cpu int, shuttingDown *atomic.Bool) {
	pinSelf(cpu)
	for !shuttingDown.Load() {
		frame, err := r.ReceiveOnce()
		if err != nil {
			continue
		}
		for out.Enqueue(&frame) != nil {
			if shuttingDown.Load() {
				frame.Release()
				return
			}
			runtime.Gosched()
		}
	}
}

func mergeLoop(m *merge.Merge, inA, inB, out *lfq.SPSC[*pool.Frame], spinLoopsPerYield, cpu int, shuttingDown *atomic.Bool) {
	pinSelf(cpu)
	spins := 0
	for !shuttingDown.Load() {
		progressed := false

		if f, err := inA.Dequeue(); err == nil {
			emitted, ingestErr := m.Ingest(f, f.Channel, time.Now().UnixNano())
			forward(out, emitted, ingestErr)
			progressed = true
		}
		if f, err := inB.Dequeue(); err == nil {
			emitted, ingestErr := m.Ingest(f, f.Channel, time.Now().UnixNano())
			forward(out, emitted, ingestErr)
			progressed = true
		}
		if !progressed {
			if emitted := m.Tick(time.Now().UnixNano()); len(emitted) > 0 {
				enqueueAll(out, emitted)
			}
			spins++
			if spins >= spinLoopsPerYield {
				runtime.Gosched()
				spins = 0
			}
		} else {
			spins = 0
		}
	}
}

func forward(out *lfq.SPSC[*pool.Frame], emitted []*pool.Frame, err error) {
	if err != nil {
		return
	}
	enqueueAll(out, emitted)
}

func enqueueAll(out *lfq.SPSC[*pool.Frame], frames []*pool.Frame) {
	for _, f := range frames {
		for out.Enqueue(&f) != nil {
			runtime.Gosched()
		}
	}
}

func decodeLoop(stage *decode.Stage, in *lfq.SPSC[*pool.Frame], reg *metrics.Registry, books interface{ LiveOrders() int }, spinLoopsPerYield, cpu int, shuttingDown *atomic.Bool) {
	pinSelf(cpu)
	spins := 0
	for !shuttingDown.Load() {
		f, err := in.Dequeue()
		if err != nil {
			spins++
			if spins >= spinLoopsPerYield {
				runtime.Gosched()
				spins = 0
			}
			continue
		}
		spins = 0
		_ = stage.Process(f, time.Now().UnixNano())
		reg.BookLiveOrders.Set(float64(books.LiveOrders()))
	}
}
