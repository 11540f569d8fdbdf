package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/provider"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Provider kinds.
const (
	KindGenAI  = "genai"
	KindOpenAI = "openai"
	KindCodec  = "codec"
)

// #region types
// Config holds the tutor's runtime configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Rubric   string         `yaml:"rubric"` // empty uses the embedded rubric
	Journal  JournalConfig  `yaml:"journal"`
	Session  SessionConfig  `yaml:"session"`
	Nudge    NudgeConfig    `yaml:"nudge"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ProviderConfig selects and configures the model backend.
type ProviderConfig struct {
	Kind      string              `yaml:"kind"` // genai, openai, codec
	APIKey    string              `yaml:"api_key"`
	BaseURL   string              `yaml:"base_url"`
	CodecAddr string              `yaml:"codec_addr"`
	Models    provider.TierModels `yaml:"models"`
	Timeout   string              `yaml:"timeout"`
	Rate      float64             `yaml:"rate"` // requests per second, 0 = unlimited
	Burst     int                 `yaml:"burst"`
}

// JournalConfig controls the sqlite state store and turn log.
type JournalConfig struct {
	Path string `yaml:"path"` // empty keeps state in memory only
}

// SessionConfig tunes the turn pipeline.
type SessionConfig struct {
	HistoryCap  int     `yaml:"history_cap"`
	Temperature float32 `yaml:"temperature"`
}

// NudgeConfig controls the idle scheduler.
type NudgeConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
}

// LoggingConfig selects the zap preset.
type LoggingConfig struct {
	Mode    string `yaml:"mode"` // dev or prod
	Verbose bool   `yaml:"verbose"`
}

// MetricsConfig exposes prometheus collectors over HTTP.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// #endregion types

// #region defaults
// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Kind: KindGenAI,
			Models: provider.TierModels{
				Fast: "gemini-2.5-flash-lite",
				Mid:  "gemini-2.5-flash",
				Slow: "gemini-2.5-pro",
			},
			Timeout: "60s",
			Burst:   1,
		},
		Journal: JournalConfig{Path: "didactic.db"},
		Session: SessionConfig{HistoryCap: 50, Temperature: 0.7},
		Nudge:   NudgeConfig{Enabled: true, Interval: "5s"},
		Logging: LoggingConfig{Mode: "dev"},
	}
}

// #endregion defaults

// #region load
// Load reads a YAML config over the defaults and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from DIDACTIC_* variables. The vendor key
// variables GEMINI_API_KEY and OPENAI_API_KEY fill an empty API key for the
// matching provider kind.
func (c *Config) ApplyEnv() {
	c.Provider.Kind = strings.ToLower(envOr("DIDACTIC_PROVIDER", c.Provider.Kind))
	c.Provider.APIKey = envOr("DIDACTIC_API_KEY", c.Provider.APIKey)
	if c.Provider.APIKey == "" {
		switch c.Provider.Kind {
		case KindGenAI:
			c.Provider.APIKey = os.Getenv("GEMINI_API_KEY")
		case KindOpenAI:
			c.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	c.Provider.BaseURL = envOr("DIDACTIC_BASE_URL", c.Provider.BaseURL)
	c.Provider.CodecAddr = envOr("DIDACTIC_CODEC_ADDR", c.Provider.CodecAddr)
	c.Provider.Models.Fast = envOr("DIDACTIC_MODEL_FAST", c.Provider.Models.Fast)
	c.Provider.Models.Mid = envOr("DIDACTIC_MODEL_MID", c.Provider.Models.Mid)
	c.Provider.Models.Slow = envOr("DIDACTIC_MODEL_SLOW", c.Provider.Models.Slow)
	if v, err := strconv.ParseFloat(os.Getenv("DIDACTIC_RATE"), 64); err == nil {
		c.Provider.Rate = v
	}

	c.Rubric = envOr("DIDACTIC_RUBRIC", c.Rubric)
	c.Journal.Path = envOr("DIDACTIC_DB", c.Journal.Path)
	if v, err := strconv.Atoi(os.Getenv("DIDACTIC_HISTORY_CAP")); err == nil {
		c.Session.HistoryCap = v
	}
	c.Nudge.Interval = envOr("DIDACTIC_NUDGE_INTERVAL", c.Nudge.Interval)
	if v, err := strconv.ParseBool(os.Getenv("DIDACTIC_NUDGE")); err == nil {
		c.Nudge.Enabled = v
	}
	c.Logging.Mode = envOr("DIDACTIC_LOG_MODE", c.Logging.Mode)
	c.Metrics.Addr = envOr("DIDACTIC_METRICS_ADDR", c.Metrics.Addr)
}

// #endregion load

// #region validate
// Validate checks the configuration before any backend is dialed.
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case KindGenAI, KindOpenAI:
		if c.Provider.APIKey == "" {
			return fmt.Errorf("%w: provider %s needs an api key (DIDACTIC_API_KEY)", ErrInvalidConfig, c.Provider.Kind)
		}
	case KindCodec:
		if c.Provider.CodecAddr == "" {
			return fmt.Errorf("%w: provider codec needs codec_addr", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown provider kind %q (valid: genai, openai, codec)", ErrInvalidConfig, c.Provider.Kind)
	}
	m := c.Provider.Models
	if m.Fast == "" || m.Mid == "" || m.Slow == "" {
		return fmt.Errorf("%w: every tier needs a model name", ErrInvalidConfig)
	}
	if c.Provider.Rate < 0 {
		return fmt.Errorf("%w: negative provider rate", ErrInvalidConfig)
	}
	if d, err := parseDuration(c.Provider.Timeout); err != nil || d < 0 {
		return fmt.Errorf("%w: provider timeout %q", ErrInvalidConfig, c.Provider.Timeout)
	}
	if d, err := parseDuration(c.Nudge.Interval); err != nil || d <= 0 {
		return fmt.Errorf("%w: nudge interval %q", ErrInvalidConfig, c.Nudge.Interval)
	}
	if c.Session.HistoryCap < 1 {
		return fmt.Errorf("%w: history cap must be positive", ErrInvalidConfig)
	}
	if c.Session.Temperature < 0 || c.Session.Temperature > 2 {
		return fmt.Errorf("%w: temperature %.2f out of range 0..2", ErrInvalidConfig, c.Session.Temperature)
	}
	return nil
}

// #endregion validate

// #region accessors
// ProviderTimeout returns the per-call timeout. 0 means no deadline.
func (c *Config) ProviderTimeout() time.Duration {
	d, _ := parseDuration(c.Provider.Timeout)
	return d
}

// NudgeInterval returns the idle check interval.
func (c *Config) NudgeInterval() time.Duration {
	d, err := parseDuration(c.Nudge.Interval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// #endregion accessors

// #region helpers
func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
