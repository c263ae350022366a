// Package config loads the kitsunedb yaml configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kitsune-db/kitsunedb/pkg/logger"
	"github.com/kitsune-db/kitsunedb/pkg/telemetry"
)

// Storage configures the on-disk index subsystem.
type Storage struct {
	// Path of the index database file.
	Path string `yaml:"path"`
	// PageSize in bytes. Defaults to 4096.
	PageSize int `yaml:"page_size"`
	// PoolSize is the number of buffer pool frames. Defaults to 64.
	PoolSize int `yaml:"pool_size"`
	// ReplacerK is the K of the LRU-K replacer. Defaults to 2.
	ReplacerK int `yaml:"replacer_k"`
	// KeySize is the fixed key width in bytes (4/8/16/32/64). Defaults to 8.
	KeySize int `yaml:"key_size"`
	// LeafMaxSize and InternalMaxSize are slot counts; zero means derive
	// from the page size.
	LeafMaxSize     int `yaml:"leaf_max_size"`
	InternalMaxSize int `yaml:"internal_max_size"`
}

// Config is the root configuration document.
type Config struct {
	Logger    logger.Config    `yaml:"logger"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Storage   Storage          `yaml:"storage"`
}

// Load reads and parses a yaml configuration file, applying defaults for
// unset storage fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.PageSize == 0 {
		c.Storage.PageSize = 4096
	}
	if c.Storage.PoolSize == 0 {
		c.Storage.PoolSize = 64
	}
	if c.Storage.ReplacerK == 0 {
		c.Storage.ReplacerK = 2
	}
	if c.Storage.KeySize == 0 {
		c.Storage.KeySize = 8
	}
}
