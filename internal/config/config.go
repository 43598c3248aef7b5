// Package config loads the daemon's static configuration: path and
// name length limits enforced by the resource tree, pool capacities,
// and the admin HTTP listen address.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document for a datahub process.
type Config struct {
	// Limits bound path grammar parsing (spec.md §4.1).
	Limits LimitsConfig `yaml:"limits"`

	// Pools sizes the process-wide entry and sample pools (spec.md §5).
	Pools PoolsConfig `yaml:"pools"`

	// HTTP configures the admin surface in internal/hub.
	HTTP HTTPConfig `yaml:"http"`

	// ManifestPath points at a YAML manifest of initial resources to
	// create at startup. Empty means start with an empty tree.
	ManifestPath string `yaml:"manifest_path"`
}

type LimitsConfig struct {
	MaxNameBytes int `yaml:"max_name_bytes"`
	MaxPathBytes int `yaml:"max_path_bytes"`
}

type PoolsConfig struct {
	EntryCapacity       int `yaml:"entry_capacity"`
	SampleCapacity      int `yaml:"sample_capacity"`
	StringSmallCapacity int `yaml:"string_small_capacity"`
	StringMediumCapacity int `yaml:"string_medium_capacity"`
	StringLargeCapacity int `yaml:"string_large_capacity"`
}

type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the configuration used when no file is supplied,
// matching the bounds named throughout spec.md (MAX_NAME_BYTES,
// MAX_PATH_BYTES) with production-sized pool capacities.
func Default() *Config {
	return &Config{
		Limits: LimitsConfig{
			MaxNameBytes: 64,
			MaxPathBytes: 512,
		},
		Pools: PoolsConfig{
			EntryCapacity:        65536,
			SampleCapacity:       65536,
			StringSmallCapacity:  4096,
			StringMediumCapacity: 1024,
			StringLargeCapacity:  256,
		},
		HTTP: HTTPConfig{
			ListenAddr: ":8090",
		},
	}
}

// Load reads a YAML configuration file over the defaults: any field
// the file does not set keeps its default; a field the file sets
// explicitly, even to zero, takes the file's value.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays DATAHUB_-prefixed environment variables onto cfg.
// Only the handful of settings operators tend to flip per-environment
// are exposed this way; everything else belongs in the YAML file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DATAHUB_HTTP_ADDR"); v != "" {
		c.HTTP.ListenAddr = v
	}
	if v := os.Getenv("DATAHUB_MANIFEST_PATH"); v != "" {
		c.ManifestPath = v
	}
}
