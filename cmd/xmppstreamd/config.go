package main

import (
	"os"

	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
)

// Config is the daemon's YAML configuration
type Config struct {
	Host struct {
		// Hostname is the address the daemon listens on and presents
		// as its stream address
		Hostname string `yaml:"hostname"`
		Ports    struct {
			// Client is the client to server stream port
			Client int `yaml:"client"`
			// Server is the server to server stream port
			Server int `yaml:"server"`
		} `yaml:"ports"`
	} `yaml:"host"`
	Logger struct {
		// Level is the minimum log level, e.g. debug, info, warn
		Level string `yaml:"level"`
		// Filename receives logs instead of stderr when non-empty
		Filename string `yaml:"filename"`
	} `yaml:"logger"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.Host.Hostname = "localhost"
	cfg.Host.Ports.Client = 5222
	cfg.Host.Ports.Server = 5269
	cfg.Logger.Level = "info"
	return cfg
}

// loadConfig returns the default configuration overlaid with the YAML
// file at path, when non-empty.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}
