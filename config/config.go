// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config builds the immutable configuration record every stage is
// constructed from at startup (spec.md §9: "global configuration is
// passed as an immutable configuration record... no process-wide mutable
// singletons on the hot path").
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ChannelConfig is one feed's multicast ingress parameters.
type ChannelConfig struct {
	Group string `toml:"group"`
	Port  int    `toml:"port"`
	Iface string `toml:"iface"`
}

// SequenceConfig describes where the feed sequence lives in each packet.
type SequenceConfig struct {
	Offset    int  `toml:"offset"`
	Length    int  `toml:"length"`
	BigEndian bool `toml:"big_endian"`
}

// Config is the full, immutable process configuration. Once returned by
// Load, it is never mutated; every stage receives it by value or as a
// read-only pointer.
type Config struct {
	ChannelA ChannelConfig  `toml:"channel_a"`
	ChannelB ChannelConfig  `toml:"channel_b"`
	Sequence SequenceConfig `toml:"sequence"`

	MaxPacketSize      int   `toml:"max_packet_size"`
	PoolSize           int   `toml:"pool_size"`
	ReorderWindow      int   `toml:"reorder_window"`
	MaxPendingPackets  int   `toml:"max_pending_packets"`
	DwellNS            int64 `toml:"dwell_ns"`
	InitialExpectedSeq uint64 `toml:"initial_expected_seq"`
	MaxMessagesPerPacket int `toml:"max_messages_per_packet"`
	SpinLoopsPerYield  int   `toml:"spin_loops_per_yield"`

	BusRingCapacity int `toml:"bus_ring_capacity"`
	BusHistorySize  int `toml:"bus_history_size"`

	ConsumeTrades           bool `toml:"consume_trades"`
	PreservePriorityOnQtyUp bool `toml:"preserve_priority_on_qty_up"`

	SnapshotPath string `toml:"snapshot_path"`
	GapLogPath   string `toml:"gap_log_path"`
}

// Default returns a Config with the same conservative defaults the
// distilled spec implies (small reorder window, modest pool), suitable
// for local development and as a base FromEnv overrides on top of.
func Default() Config {
	return Config{
		ChannelA:             ChannelConfig{Group: "239.1.1.1", Port: 30001},
		ChannelB:              ChannelConfig{Group: "239.1.1.2", Port: 30002},
		Sequence:             SequenceConfig{Offset: 0, Length: 8, BigEndian: false},
		MaxPacketSize:        1500,
		PoolSize:             4096,
		ReorderWindow:        1024,
		MaxPendingPackets:    512,
		DwellNS:              2_000_000,
		InitialExpectedSeq:   1,
		MaxMessagesPerPacket: 32,
		SpinLoopsPerYield:    1000,
		BusRingCapacity:      4096,
		BusHistorySize:       4096,
	}
}

// Load parses a TOML document at path on top of Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
