// Package config handles the optional CLI configuration file.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds encoding defaults that would otherwise be repeated on
// every invocation. Command-line flags override these values.
type Config struct {
	Variant string  `yaml:"variant,omitempty"` // "v4" or "v7"
	Scale   float64 `yaml:"scale,omitempty"`   // quantization scale for v7
	Schema  string  `yaml:"schema,omitempty"`  // "static", "dynamic" or "auto"
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
