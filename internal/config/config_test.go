package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DIDACTIC_PROVIDER", "DIDACTIC_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY",
		"DIDACTIC_BASE_URL", "DIDACTIC_CODEC_ADDR", "DIDACTIC_MODEL_FAST", "DIDACTIC_MODEL_MID",
		"DIDACTIC_MODEL_SLOW", "DIDACTIC_RATE", "DIDACTIC_RUBRIC", "DIDACTIC_DB",
		"DIDACTIC_HISTORY_CAP", "DIDACTIC_NUDGE_INTERVAL", "DIDACTIC_NUDGE",
		"DIDACTIC_LOG_MODE", "DIDACTIC_METRICS_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "tutor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider:
  kind: openai
  api_key: from-file
  models:
    fast: gpt-mini
    mid: gpt
    slow: gpt-large
session:
  history_cap: 20
nudge:
  interval: 2s
`), 0o644))

	t.Setenv("DIDACTIC_API_KEY", "from-env")
	t.Setenv("DIDACTIC_HISTORY_CAP", "30")
	t.Setenv("DIDACTIC_METRICS_ADDR", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, KindOpenAI, cfg.Provider.Kind)
	assert.Equal(t, "from-env", cfg.Provider.APIKey)
	assert.Equal(t, "gpt", cfg.Provider.Models.Mid)
	assert.Equal(t, 30, cfg.Session.HistoryCap)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, 2*time.Second, cfg.NudgeInterval())
	assert.InDelta(t, 0.7, cfg.Session.Temperature, 1e-6, "unset keys keep defaults")
	assert.NoError(t, cfg.Validate())
}

func TestVendorKeyFillsEmptyKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "g-key")
	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "g-key", cfg.Provider.APIKey)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Provider.APIKey = "k"
		return c
	}
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults with key", func(*Config) {}, true},
		{"missing key", func(c *Config) { c.Provider.APIKey = "" }, false},
		{"unknown kind", func(c *Config) { c.Provider.Kind = "llama" }, false},
		{"codec needs addr", func(c *Config) { c.Provider.Kind = KindCodec }, false},
		{"codec with addr", func(c *Config) { c.Provider.Kind = KindCodec; c.Provider.CodecAddr = "localhost:50051" }, true},
		{"missing tier model", func(c *Config) { c.Provider.Models.Slow = "" }, false},
		{"bad timeout", func(c *Config) { c.Provider.Timeout = "soon" }, false},
		{"negative timeout", func(c *Config) { c.Provider.Timeout = "-1s" }, false},
		{"unset timeout", func(c *Config) { c.Provider.Timeout = "" }, true},
		{"zero interval", func(c *Config) { c.Nudge.Interval = "0s" }, false},
		{"zero history", func(c *Config) { c.Session.HistoryCap = 0 }, false},
		{"negative rate", func(c *Config) { c.Provider.Rate = -1 }, false},
		{"hot temperature", func(c *Config) { c.Session.Temperature = 3 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
