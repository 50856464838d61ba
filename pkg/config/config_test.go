package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "compass.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Profile(t *testing.T) {
	path := writeProfile(t, `
adapter: generic
device: /dev/i2c-0
drdy:
  source: mcp23017
  pin: B3
  expander: 0x20
magnetometer:
  mode: 0
  gain: 3
  rate: 7
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, AdapterGeneric, cfg.Adapter)
	assert.Equal(t, "/dev/i2c-0", cfg.Device)
	assert.Equal(t, 1, cfg.Bus)
	assert.Equal(t, DataReady{Source: SourceMCP23017, Pin: "B3", Expander: 0x20}, cfg.DataReady)
	assert.Equal(t, Magnetometer{Mode: 0, Gain: 3, Rate: 7}, cfg.Magnetometer)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"adapter":      "adapter: serial\n",
		"source":       "drdy: {source: uart, pin: \"1\"}\n",
		"pin":          "drdy: {source: host}\n",
		"mcp2221 pins": "adapter: generic\ndrdy: {source: mcp2221, pin: GP1}\n",
		"gobot pins":   "adapter: mcp2221\ndrdy: {source: gobot, pin: \"7\"}\n",
		"mock pins":    "adapter: generic\ndrdy: {source: mock, pin: DRDY}\n",
		"mode":         "magnetometer: {mode: 4}\n",
		"gain":         "magnetometer: {gain: 8}\n",
		"malformed":    "adapter: [\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeProfile(t, content))
			assert.Error(t, err)
		})
	}
}
