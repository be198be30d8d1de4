// Package config loads the optional on-disk configuration file (§6): listen
// addresses, the storage path, and the log level. Every field has a
// sensible default, so a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHTTPAddr = "127.0.0.1:6767"
	DefaultGRPCAddr = "127.0.0.1:4567"
	DefaultDBPath   = "traces.db"
	DefaultLogLevel = "info"
)

// Config is the root configuration structure, loaded from
// ~/.studio/config.yaml if present.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`
}

// Default returns a Config with every field set to its documented default.
func Default() Config {
	return Config{
		HTTPAddr: DefaultHTTPAddr,
		GRPCAddr: DefaultGRPCAddr,
		DBPath:   DefaultDBPath,
		LogLevel: DefaultLogLevel,
	}
}

// Load reads ~/.studio/config.yaml, starting from Default() and overlaying
// whatever fields the file sets. A missing file is not an error; the
// defaults are returned unchanged.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("config: finding home directory: %w", err)
	}
	return LoadFrom(filepath.Join(home, ".studio", "config.yaml"))
}

// LoadFrom is Load with an explicit path, split out so tests don't depend
// on the real home directory.
func LoadFrom(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
