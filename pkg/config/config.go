// Package config loads the YAML configuration file and builds the shared
// logger from it.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DeviceConfig describes one configured peripheral, keyed by a friendly
// name in Config.Devices.
type DeviceConfig struct {
	Address string `yaml:"address"`
	Model   string `yaml:"model"`

	// Credentials for encrypted models.
	KeyID         string `yaml:"key_id"`
	EncryptionKey string `yaml:"encryption_key"`

	// Password for legacy password-protected bots.
	Password string `yaml:"password"`

	// ReversePositions flips cover positions so that 100 means open,
	// matching how most integrations orient them.
	ReversePositions bool `yaml:"reverse_positions"`
}

// Config holds application configuration.
type Config struct {
	LogLevel     string `yaml:"log_level" default:"info"`
	ScanSeconds  int    `yaml:"scan_seconds" default:"10"`
	RetryCount   int    `yaml:"retry_count" default:"3"`
	OutputFormat string `yaml:"output_format" default:"table"` // table, json

	Devices map[string]DeviceConfig `yaml:"devices"`
}

// DefaultConfig returns configuration with every field at its default.
func DefaultConfig() *Config {
	c := &Config{}
	defaults.SetDefaults(c)
	return c
}

// Load reads a YAML configuration file. Fields absent from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	c := DefaultConfig()
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects values the rest of the stack cannot act on.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.OutputFormat != "table" && c.OutputFormat != "json" {
		return fmt.Errorf("invalid output_format %q", c.OutputFormat)
	}
	if c.ScanSeconds <= 0 {
		return fmt.Errorf("scan_seconds must be positive")
	}
	for name, dev := range c.Devices {
		if dev.Address == "" {
			return fmt.Errorf("device %q has no address", name)
		}
	}
	return nil
}

// Device looks a configured device up by its friendly name.
func (c *Config) Device(name string) (DeviceConfig, bool) {
	dev, ok := c.Devices[name]
	return dev, ok
}

// NewLogger creates a configured logger instance.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}
