// Package config holds the compass CLI hardware profile.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Version is injected at build time.
var Version = "dev"

const (
	AdapterMCP2221 = "mcp2221"
	AdapterGeneric = "generic"
	AdapterGobot   = "gobot"
	AdapterMock    = "mock"
)

const (
	SourceHost     = "host"
	SourceMCP2221  = "mcp2221"
	SourceMCP23017 = "mcp23017"
	SourceGobot    = "gobot"
	SourceMock     = "mock"
)

type Config struct {
	Adapter      string       `yaml:"adapter"`
	Device       string       `yaml:"device"`
	Bus          int          `yaml:"bus"`
	DataReady    DataReady    `yaml:"drdy"`
	Magnetometer Magnetometer `yaml:"magnetometer"`
}

// DataReady describes where the magnetometer DRDY output is wired.
// An empty source means the line is not connected.
type DataReady struct {
	Source   string `yaml:"source"`
	Pin      string `yaml:"pin"`
	Expander byte   `yaml:"expander"`
}

type Magnetometer struct {
	Mode        byte `yaml:"mode"`
	Gain        byte `yaml:"gain"`
	Rate        byte `yaml:"rate"`
	Averaging   byte `yaml:"averaging"`
	Measurement byte `yaml:"measurement"`
}

func Default() Config {
	return Config{
		Adapter: AdapterMCP2221,
		Device:  "/dev/i2c-1",
		Bus:     1,
		DataReady: DataReady{
			Expander: 0x21,
		},
		Magnetometer: Magnetometer{
			Mode: 1,
			Gain: 1,
			Rate: 4,
		},
	}
}

// Load reads the profile at path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("could not read config %s: %w", path, err)
	}
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Adapter {
	case AdapterMCP2221, AdapterGeneric, AdapterGobot, AdapterMock:
	default:
		return fmt.Errorf("unknown adapter %q", c.Adapter)
	}
	switch c.DataReady.Source {
	case "":
	case SourceHost, SourceMCP2221, SourceMCP23017, SourceGobot, SourceMock:
		if c.DataReady.Pin == "" {
			return fmt.Errorf("data-ready source %s needs a pin", c.DataReady.Source)
		}
	default:
		return fmt.Errorf("unknown data-ready source %q", c.DataReady.Source)
	}
	if c.DataReady.Source == SourceMCP2221 && c.Adapter != AdapterMCP2221 {
		return fmt.Errorf("data-ready source mcp2221 requires the mcp2221 adapter")
	}
	if c.DataReady.Source == SourceGobot && c.Adapter != AdapterGobot {
		return fmt.Errorf("data-ready source gobot requires the gobot adapter")
	}
	if c.DataReady.Source == SourceMock && c.Adapter != AdapterMock {
		return fmt.Errorf("data-ready source mock requires the mock adapter")
	}
	if c.Magnetometer.Mode > 3 {
		return fmt.Errorf("magnetometer mode %d out of range", c.Magnetometer.Mode)
	}
	if c.Magnetometer.Gain > 7 {
		return fmt.Errorf("magnetometer gain %d out of range", c.Magnetometer.Gain)
	}
	return nil
}
