package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"authbridge/pkg/logging"
)

const (
	userConfigDir  = ".config/authbridge"
	configFileName = "config.yaml"
)

// GetDefaultConfigPathOrPanic returns the user config directory.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from the given directory. Values layer as
// defaults, then config.yaml, then AUTHBRIDGE_* environment variables. A
// missing config file is fine; a malformed one is an error.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
		}
		logging.Debug("Config", "No config.yaml found at %s, using defaults", configFilePath)
	} else {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Debug("Config", "Loaded configuration from %s", configFilePath)
	}

	if err := envdecode.Decode(&config); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("error applying environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks the fields a command cannot recover from at use time.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown storage backend %q (expected memory, file, or redis)", c.Storage.Backend)
	}

	if c.Auth.FlowTimeout != "" {
		if _, err := time.ParseDuration(c.Auth.FlowTimeout); err != nil {
			return fmt.Errorf("invalid flow timeout %q: %w", c.Auth.FlowTimeout, err)
		}
	}
	return nil
}

// FlowTimeoutDuration returns the parsed flow timeout, or zero to use the
// built-in default.
func (c Config) FlowTimeoutDuration() time.Duration {
	if c.Auth.FlowTimeout == "" {
		return 0
	}
	timeout, err := time.ParseDuration(c.Auth.FlowTimeout)
	if err != nil {
		return 0
	}
	return timeout
}
