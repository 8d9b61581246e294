// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"strconv"
)

// FromEnv applies a small set of NUMI_-prefixed overrides on top of cfg,
// for local development only: group/port/iface per channel, plus the
// snapshot path. This is
// deliberately thin, not a full config-service replacement (spec.md §1
// places config loading itself out of core scope; this override layer
// exists purely for developer convenience).
func FromEnv(cfg Config) Config {
	if v := os.Getenv("NUMI_CHANNEL_A_GROUP"); v != "" {
		cfg.ChannelA.Group = v
	}
	if v := os.Getenv("NUMI_CHANNEL_A_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.ChannelA.Port = p
		}
	}
	if v := os.Getenv("NUMI_CHANNEL_A_IFACE"); v != "" {
		cfg.ChannelA.Iface = v
	}
	if v := os.Getenv("NUMI_CHANNEL_B_GROUP"); v != "" {
		cfg.ChannelB.Group = v
	}
	if v := os.Getenv("NUMI_CHANNEL_B_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.ChannelB.Port = p
		}
	}
	if v := os.Getenv("NUMI_CHANNEL_B_IFACE"); v != "" {
		cfg.ChannelB.Iface = v
	}
	if v := os.Getenv("NUMI_SNAPSHOT_PATH"); v != "" {
		cfg.SnapshotPath = v
	}
	return cfg
}
