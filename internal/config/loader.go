package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the broker section.
const (
	EnvBroker   = "MQTT_BROKER"
	EnvPort     = "MQTT_PORT"
	EnvTopic    = "MQTT_TOPIC"
	EnvClientID = "MQTT_CLIENT_ID"
	EnvUsername = "MQTT_USERNAME"
	EnvPassword = "MQTT_PASSWORD"
)

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment. Variables already set are left alone. A missing file is not an
// error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load reads a YAML config file, expands environment variables and applies
// the MQTT_* overrides. A missing file yields a config built from the
// environment only.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Expand ${VAR} environment variables
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvBroker); v != "" {
		c.Broker.Host = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvPort, err)
		}
		c.Broker.Port = port
	}
	if v := os.Getenv(EnvTopic); v != "" {
		c.Broker.Topic = v
	}
	if v := os.Getenv(EnvClientID); v != "" {
		c.Broker.ClientID = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		c.Broker.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Broker.Password = v
	}
	return nil
}
