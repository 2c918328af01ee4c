// Package config loads the application configuration: YAML file, overridden
// by EVENTLAKE_-prefixed environment variables, on top of defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Store   StoreConfig   `koanf:"store"`
	Prepare PrepareConfig `koanf:"prepare"`
	Run     RunConfig     `koanf:"run"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	Mode string `koanf:"mode"` // debug | release
}

type StoreConfig struct {
	// DataDir is the data-store root: events/ and summaries/ live under it.
	DataDir string `koanf:"data_dir"`
	// CatalogDir holds the summary spec YAML files.
	CatalogDir string `koanf:"catalog_dir"`
}

type PrepareConfig struct {
	Compression string `koanf:"compression"` // zstd | snappy | uncompressed
	Parallelism int    `koanf:"parallelism"`
}

type RunConfig struct {
	OutDir string `koanf:"out_dir"`
	// Format is the batch output format: csv | jsonl | table.
	Format      string `koanf:"format"`
	Parallelism int    `koanf:"parallelism"`
	// RetryFallback re-runs a query on the full dataset when its summary
	// execution fails. Off by default; turning it on trades latency for
	// availability, never correctness.
	RetryFallback bool `koanf:"retry_fallback"`
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Store.DataDir) == "" {
		return fmt.Errorf("store.data_dir is required")
	}
	if strings.TrimSpace(c.Store.CatalogDir) == "" {
		return fmt.Errorf("store.catalog_dir is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}
	switch c.Prepare.Compression {
	case "zstd", "snappy", "uncompressed":
	default:
		return fmt.Errorf("invalid prepare.compression %q", c.Prepare.Compression)
	}
	if c.Prepare.Parallelism <= 0 {
		return fmt.Errorf("prepare.parallelism must be > 0")
	}
	if c.Run.Parallelism <= 0 {
		return fmt.Errorf("run.parallelism must be > 0")
	}
	switch c.Run.Format {
	case "csv", "jsonl", "table":
	default:
		return fmt.Errorf("invalid run.format %q (must be csv, jsonl, or table)", c.Run.Format)
	}
	if strings.TrimSpace(c.Run.OutDir) == "" {
		return fmt.Errorf("run.out_dir is required")
	}
	return nil
}

// Load parses config from the optional file path plus environment, applies
// defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.host":         "0.0.0.0",
		"server.port":         8080,
		"server.mode":         "release",
		"store.data_dir":      "data_store",
		"store.catalog_dir":   "data_store/catalog",
		"prepare.compression": "zstd",
		"prepare.parallelism": 4,
		"run.out_dir":         "out",
		"run.format":          "csv",
		"run.parallelism":     4,
		"run.retry_fallback":  false,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("EVENTLAKE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "EVENTLAKE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
