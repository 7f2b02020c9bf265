package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10, cfg.ScanSeconds)
	assert.Equal(t, 3, cfg.RetryCount)
	assert.Equal(t, "table", cfg.OutputFormat)
	assert.Empty(t, cfg.Devices)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
output_format: json
devices:
  hallway-lock:
    address: "aa:bb:cc:dd:ee:ff"
    model: WoLock
    key_id: "0f"
    encryption_key: "1234567890abcdef1234567890abcdef"
  living-room-curtain:
    address: "11:22:33:44:55:66"
    model: WoCurtain
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.OutputFormat)
	// Fields absent from the file keep defaults.
	assert.Equal(t, 10, cfg.ScanSeconds)
	assert.Equal(t, 3, cfg.RetryCount)

	lock, ok := cfg.Device("hallway-lock")
	require.True(t, ok)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", lock.Address)
	assert.Equal(t, "0f", lock.KeyID)

	_, ok = cfg.Device("garage")
	assert.False(t, ok)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"bad log level", func(c *Config) { c.LogLevel = "shouty" }, true},
		{"bad output format", func(c *Config) { c.OutputFormat = "xml" }, true},
		{"zero scan seconds", func(c *Config) { c.ScanSeconds = 0 }, true},
		{"device without address", func(c *Config) {
			c.Devices = map[string]DeviceConfig{"x": {Model: "WoHand"}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_NewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "warning"

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	formatter, ok := logger.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.True(t, formatter.FullTimestamp)
	assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
}
