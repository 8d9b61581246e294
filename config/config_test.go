// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Numi2/Numi-orderbook/config"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "numi.toml")
	doc := `
reorder_window = 2048
dwell_ns = 5000000

[channel_a]
group = "239.5.5.5"
port = 40001
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 2048, cfg.ReorderWindow)
	require.EqualValues(t, 5_000_000, cfg.DwellNS)
	require.Equal(t, "239.5.5.5", cfg.ChannelA.Group)
	require.Equal(t, 40001, cfg.ChannelA.Port)
	// Unset fields keep Default()'s values.
	require.Equal(t, config.Default().PoolSize, cfg.PoolSize)
}

func TestFromEnvOverridesChannelA(t *testing.T) {
	t.Setenv("NUMI_CHANNEL_A_GROUP", "239.9.9.9")
	t.Setenv("NUMI_CHANNEL_A_PORT", "50001")

	cfg := config.FromEnv(config.Default())
	require.Equal(t, "239.9.9.9", cfg.ChannelA.Group)
	require.Equal(t, 50001, cfg.ChannelA.Port)
}
