package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20, cfg.Analysis.Window)
	assert.Equal(t, 2.0, cfg.Analysis.VolMultiple)
	assert.Equal(t, 2.5, cfg.Analysis.ZThreshold)
	assert.Equal(t, 3.0, cfg.Analysis.MinPctChg)
	assert.Equal(t, 9.5, cfg.Analysis.MaxPctChg)
	assert.Equal(t, 1e8, cfg.Analysis.MinAmount)
	assert.Equal(t, []int{1, 5}, cfg.Analysis.Horizons)
	assert.Equal(t, 5, cfg.Analysis.MaxHorizon())
	assert.Equal(t, 26, cfg.Analysis.MinHistory())
	assert.Equal(t, 3, cfg.Sync.RetryAttempts)
	assert.Equal(t, "csv", cfg.Store.Backend)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
analysis:
  window: 30
  min_pct_chg: 0
  horizons: [1, 3, 10]
sync:
  retry_delay: 2s
store:
  backend: sqlite
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("ANALYSIS_Z_THRESHOLD", "3.1")
	t.Setenv("SYNC_PACING", "50ms")
	t.Setenv("UNIVERSE_PREFIXES", "60,00")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30, cfg.Analysis.Window)
	assert.Equal(t, 0.0, cfg.Analysis.MinPctChg, "explicit zero overrides the default")
	assert.Equal(t, 10, cfg.Analysis.MaxHorizon())
	assert.Equal(t, 2*time.Second, cfg.Sync.RetryDelay)
	assert.Equal(t, 3.1, cfg.Analysis.ZThreshold)
	assert.Equal(t, 50*time.Millisecond, cfg.Sync.Pacing)
	assert.Equal(t, []string{"60", "00"}, cfg.Universe.Prefixes)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 2.0, cfg.Analysis.VolMultiple, "untouched keys keep defaults")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"small window", func(c *Config) { c.Analysis.Window = 1 }},
		{"no horizons", func(c *Config) { c.Analysis.Horizons = nil }},
		{"negative horizon", func(c *Config) { c.Analysis.Horizons = []int{1, -5} }},
		{"inverted pct band", func(c *Config) { c.Analysis.MaxPctChg = 2 }},
		{"zero attempts", func(c *Config) { c.Sync.RetryAttempts = 0 }},
		{"bad default start", func(c *Config) { c.Sync.DefaultStart = "2018-01-01" }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "parquet" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
