// Package config resolves loadsum settings from defaults, an optional YAML
// file and LOADSUM_* environment variables. Command-line flags are applied
// on top by the cli package.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/grantcarthew/loadsum/internal/logging"
	"gopkg.in/yaml.v3"
)

// Defaults for the idle heuristic, matching what full browsers appear to use.
const (
	DefaultIdleThreshold = 1500 * time.Millisecond
	DefaultPollInterval  = 50 * time.Millisecond
	DefaultMaxWait       = 2 * time.Minute
)

// Config holds every tunable of an analysis run and of the shell.
type Config struct {
	Chrome        string        `yaml:"chrome"`
	ChromeArgs    []string      `yaml:"chrome_args"`
	Headless      bool          `yaml:"headless"`
	IdleThreshold time.Duration `yaml:"idle_threshold"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxWait       time.Duration `yaml:"max_wait"`
	LogLevel      string        `yaml:"log_level"`
	MetricsAddr   string        `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Headless:      true,
		IdleThreshold: DefaultIdleThreshold,
		PollInterval:  DefaultPollInterval,
		MaxWait:       DefaultMaxWait,
		LogLevel:      "warn",
	}
}

// DefaultPath is $XDG_CONFIG_HOME/loadsum/config.yaml (or the platform
// equivalent). It returns "" when no config directory is known.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "loadsum", "config.yaml")
}

// Load builds a Config. An explicit path must exist; the default path is
// used only if present.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("LOADSUM_CHROME"); ok {
		c.Chrome = v
	}
	if v, ok := get("LOADSUM_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("LOADSUM_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok := get("LOADSUM_HEADLESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOADSUM_HEADLESS: %w", err)
		}
		c.Headless = b
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"LOADSUM_IDLE", &c.IdleThreshold},
		{"LOADSUM_POLL", &c.PollInterval},
		{"LOADSUM_MAX_WAIT", &c.MaxWait},
	}
	for _, d := range durations {
		if v, ok := get(d.key); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", d.key, err)
			}
			*d.dst = parsed
		}
	}

	return nil
}

// Validate rejects settings the idle loop cannot work with.
func (c Config) Validate() error {
	switch {
	case c.IdleThreshold <= 0:
		return fmt.Errorf("idle threshold must be positive, got %s", c.IdleThreshold)
	case c.PollInterval <= 0:
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	case c.PollInterval >= c.IdleThreshold:
		return fmt.Errorf("poll interval %s must be shorter than idle threshold %s", c.PollInterval, c.IdleThreshold)
	case c.MaxWait < 0:
		return fmt.Errorf("max wait must not be negative, got %s", c.MaxWait)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
