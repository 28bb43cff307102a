package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable pointing at an optional YAML file
const ConfigFileEnv = "HOOKBOT_CONFIG"

// LoadFile loads defaults, overlays the YAML file at path and then applies
// environment variables, which always win.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadFromEnvironment loads the file named by HOOKBOT_CONFIG when set,
// otherwise only the environment.
func LoadFromEnvironment() (*Config, error) {
	if path := os.Getenv(ConfigFileEnv); path != "" {
		return LoadFile(path)
	}
	return Load(), nil
}
