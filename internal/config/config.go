// Package config loads slsctl's configuration, grounded on the
// teacher's root config.go: JSONC (via hujson) parsed into a small,
// flat struct, with a default-then-file-then-CLI precedence chain.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds slsctl's configuration.
type Config struct {
	RegionPath  string `json:"region_path"`
	RegionSize  int    `json:"region_size,omitempty"`
	LogLevel    string `json:"log_level,omitempty"`
	LogPretty   bool   `json:"log_pretty,omitempty"`
	MetricsAddr string `json:"metrics_addr,omitempty"`
}

// ConfigFileName is the default config file name looked up in the
// working directory.
const ConfigFileName = ".slsctl.json"

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		RegionPath:  "sls.region",
		RegionSize:  0, // region.DefaultSize
		LogLevel:    "info",
		LogPretty:   true,
		MetricsAddr: "",
	}
}

// Load reads defaults, then overlays workDir/.slsctl.json if present,
// then overlays an explicit configPath if given. CLI flags are applied
// by the caller afterwards, by setting the returned fields directly.
func Load(workDir, configPath string) (Config, error) {
	cfg := Default()

	projectPath := filepath.Join(workDir, ConfigFileName)
	if fileCfg, ok, err := loadFile(projectPath, false); err != nil {
		return Config{}, err
	} else if ok {
		cfg = cfg.merge(fileCfg)
	}

	if configPath != "" {
		fileCfg, ok, err := loadFile(configPath, true)
		if err != nil {
			return Config{}, err
		}
		if ok {
			cfg = cfg.merge(fileCfg)
		}
	}

	return cfg, nil
}

func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("read config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("parse config %s: invalid JSONC: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, true, nil
}

// merge overlays non-zero fields of overlay onto base, returning the
// result.
func (base Config) merge(overlay Config) Config {
	if overlay.RegionPath != "" {
		base.RegionPath = overlay.RegionPath
	}
	if overlay.RegionSize != 0 {
		base.RegionSize = overlay.RegionSize
	}
	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}
	if overlay.MetricsAddr != "" {
		base.MetricsAddr = overlay.MetricsAddr
	}
	base.LogPretty = overlay.LogPretty || base.LogPretty
	return base
}

// Format renders cfg as indented JSON, for slsctl's "config" subcommand.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}
	return string(data), nil
}
