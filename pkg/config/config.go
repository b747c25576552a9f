package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/abought/jamdb/pkg/log"
	"github.com/abought/jamdb/pkg/types"
)

// Config is the process configuration loaded from YAML
type Config struct {
	DataDir     string                                `yaml:"data_dir"`
	Log         LogConfig                             `yaml:"log"`
	Collections map[string]types.CollectionDescriptor `yaml:"collections"`
}

// LogConfig selects logging level and format
type LogConfig struct {
	Level log.Level `yaml:"level"`
	JSON  bool      `yaml:"json"`
}

// Load reads and parses a config file
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{
		DataDir: ".",
		Log:     LogConfig{Level: log.InfoLevel},
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Resolve boltdb paths relative to the data dir so descriptors stay
	// portable
	for name, desc := range cfg.Collections {
		desc.Logger = resolvePath(cfg.DataDir, desc.Logger)
		desc.Storage = resolvePath(cfg.DataDir, desc.Storage)
		desc.State = resolvePath(cfg.DataDir, desc.State)
		cfg.Collections[name] = desc
	}
	return cfg, nil
}

// Descriptor returns the named collection descriptor
func (c *Config) Descriptor(name string) (*types.CollectionDescriptor, error) {
	desc, ok := c.Collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %q is not configured", name)
	}
	return &desc, nil
}

func resolvePath(dataDir string, desc types.BackendDescriptor) types.BackendDescriptor {
	path, ok := desc.Settings["path"].(string)
	if !ok || filepath.IsAbs(path) {
		return desc
	}
	settings := make(map[string]any, len(desc.Settings))
	for k, v := range desc.Settings {
		settings[k] = v
	}
	settings["path"] = filepath.Join(dataDir, path)
	desc.Settings = settings
	return desc
}
