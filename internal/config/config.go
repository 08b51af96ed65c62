// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Backend kinds a store directory can be initialized as.
const (
	BackendCommit  = "commit"
	BackendWorkdir = "workdir"
)

type Config struct {
	// Backend selects which implementation serves the store: "commit"
	// for the immutable object-graph store, "workdir" for the mutable
	// working copy.
	Backend string `json:"backend"`

	Cache struct {
		Size int `json:"size"`
	} `json:"cache"`

	Compression struct {
		Level int `json:"level"` // 1=fastest, 3=best
	} `json:"compression"`

	LogLevel string `json:"log_level"` // debug, info, warn, error
}

// Default returns the settings a freshly initialized store uses.
func Default() *Config {
	cfg := &Config{
		Backend:  BackendCommit,
		LogLevel: "info",
	}
	cfg.Cache.Size = 1000
	cfg.Compression.Level = 2
	return cfg
}

// Path returns the config file location for a store rooted at root.
// VELLUM_CONFIG overrides it.
func Path(root string) string {
	if override := os.Getenv("VELLUM_CONFIG"); override != "" {
		return override
	}
	return filepath.Join(root, ".vellum", "config.json")
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Save writes the config as indented JSON.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendCommit, BackendWorkdir:
		return nil
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
}
