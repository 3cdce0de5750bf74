// Package config loads the landcover service configuration from YAML and
// provides defaults for everything, so an empty file is a valid config.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/landcover/pkg/regions"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Model struct {
		// ConfigFile is the JSON model description
		ConfigFile string `yaml:"configFile"`
		// TileSize overrides the model's native tile size. 0 uses the model's.
		TileSize int `yaml:"tileSize"`
		// Subdivisions is the blending overlap. Higher is smoother and slower.
		Subdivisions int `yaml:"subdivisions"`
		// Workers running inference. 0 is serial, -1 uses all cores.
		Workers int `yaml:"workers"`
	} `yaml:"model"`

	Measure struct {
		// ScaleFactor is the physical area of a single pixel
		ScaleFactor float64 `yaml:"scaleFactor"`
		// Connectivity is 4 or 8
		Connectivity int `yaml:"connectivity"`
		// Cleanup maps class id to a morphology: none, open or close
		Cleanup map[int]string `yaml:"cleanup"`
	} `yaml:"measure"`

	Server struct {
		Port int `yaml:"port"`
		// DataRoot holds the run database and cached artifacts
		DataRoot string `yaml:"dataRoot"`
		// MaxUploadMB caps the size of an uploaded image
		MaxUploadMB int `yaml:"maxUploadMB"`
		// KeepRuns is how many finished runs stay in memory for inspection
		KeepRuns int `yaml:"keepRuns"`
	} `yaml:"server"`
}

func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Model.TileSize = 0
	cfg.Model.Subdivisions = 2
	cfg.Model.Workers = -1
	cfg.Measure.ScaleFactor = 0.25
	cfg.Measure.Connectivity = 8
	cfg.Server.Port = 8082
	cfg.Server.DataRoot = "landcover-data"
	cfg.Server.MaxUploadMB = 64
	cfg.Server.KeepRuns = 8
	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// Connectivity returns the configured connectivity as a regions constant.
func (c *Config) Connectivity() (regions.Connectivity, error) {
	switch c.Measure.Connectivity {
	case 4:
		return regions.Connect4, nil
	case 8:
		return regions.Connect8, nil
	}
	return 0, fmt.Errorf("connectivity must be 4 or 8, not %v", c.Measure.Connectivity)
}

// CleanupMap parses the configured per class morphology names.
func (c *Config) CleanupMap() (regions.CleanupMap, error) {
	out := regions.CleanupMap{}
	for id, name := range c.Measure.Cleanup {
		op, err := regions.ParseMorph(name)
		if err != nil {
			return nil, fmt.Errorf("cleanup for class %v: %w", id, err)
		}
		out[id] = op
	}
	return out, nil
}

// Validate catches bad values at startup instead of at first use.
func (c *Config) Validate() error {
	if !(c.Measure.ScaleFactor > 0) {
		return fmt.Errorf("scaleFactor must be positive, not %v", c.Measure.ScaleFactor)
	}
	if _, err := c.Connectivity(); err != nil {
		return err
	}
	if _, err := c.CleanupMap(); err != nil {
		return err
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("port %v is out of range", c.Server.Port)
	}
	return nil
}
