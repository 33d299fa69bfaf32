// Package ptyconfig loads daemon-wide defaults: the on-disk root, the
// quiescence window, wait ceilings, and default screen dimensions. Values
// come from environment variables first (matching the external interface's
// wire-stable env vars), an optional YAML file second, and built-in
// defaults last.
package ptyconfig

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the core components need at construction
// time. Nothing in internal/ptysession or internal/termvt reads the
// environment directly; everything comes from a Config.
type Config struct {
	RootDir         string        `mapstructure:"root_dir"`
	QuiescenceMS    int           `mapstructure:"quiescence_ms"`
	MaxWaitMS       int           `mapstructure:"max_wait_ms"`
	Cols            int           `mapstructure:"cols"`
	Rows            int           `mapstructure:"rows"`
	ScrollbackLines int           `mapstructure:"scrollback_lines"`
	RingSize        int           `mapstructure:"ring_size"`
}

// Quiescence returns the configured quiescence window as a Duration.
func (c Config) Quiescence() time.Duration {
	return time.Duration(c.QuiescenceMS) * time.Millisecond
}

// MaxWait returns the configured wait ceiling as a Duration.
func (c Config) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitMS) * time.Millisecond
}

// Default returns the built-in defaults, matching the external interface:
// root ~/.piloty, 1000ms quiescence, 80x24, 2000 scrollback lines.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		RootDir:         filepath.Join(home, ".piloty"),
		QuiescenceMS:    1000,
		MaxWaitMS:       30000,
		Cols:            80,
		Rows:            24,
		ScrollbackLines: 2000,
		RingSize:        1024 * 1024,
	}
}

// Load reads configuration from an optional YAML file at path (skipped if
// empty or missing), then overlays environment variables, then falls back
// to Default() for anything unset.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetDefault("root_dir", cfg.RootDir)
	v.SetDefault("quiescence_ms", cfg.QuiescenceMS)
	v.SetDefault("max_wait_ms", cfg.MaxWaitMS)
	v.SetDefault("cols", cfg.Cols)
	v.SetDefault("rows", cfg.Rows)
	v.SetDefault("scrollback_lines", cfg.ScrollbackLines)
	v.SetDefault("ring_size", cfg.RingSize)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return Config{}, err
			}
		}
	}

	applyEnvOverride(v, "root_dir", "PILOTY_HOME")
	applyEnvOverride(v, "quiescence_ms", "QUIESCENCE_MS")

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.RootDir = expandHome(cfg.RootDir)
	return cfg, nil
}

// applyEnvOverride copies envVar into v's key if set, mirroring the
// external interface's rule that environment variables take precedence
// over file-based configuration.
func applyEnvOverride(v *viper.Viper, key, envVar string) {
	raw, ok := os.LookupEnv(envVar)
	if !ok || raw == "" {
		return
	}
	if n, err := strconv.Atoi(raw); err == nil {
		v.Set(key, n)
		return
	}
	v.Set(key, raw)
}

func expandHome(path string) string {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			return home
		}
		return path
	}
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
