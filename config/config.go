package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Adapter identifiers accepted in the configuration file.
const (
	AdapterMCP2221 = "mcp2221"
	AdapterI2C     = "i2c"
	AdapterGobot   = "gobot"
	AdapterMock    = "mock"
)

// Sensor type identifiers accepted in the configuration file.
const (
	SensorSEN0590  = "sen0590"
	SensorLeafSens = "leafsens"
)

type Config struct {
	// TickMs is the cooperative loop period in milliseconds.
	TickMs int `yaml:"tick_ms"`
	// Adapter selects the bus transport: mcp2221, i2c, gobot or mock.
	Adapter string `yaml:"adapter"`
	// Device is the bus device name for the i2c adapter (e.g. /dev/i2c-1)
	// or the bus number for the gobot adapter.
	Device  string         `yaml:"device"`
	BusNum  int            `yaml:"bus_num"`
	Sensors []SensorConfig `yaml:"sensors"`
}

type SensorConfig struct {
	Type string `yaml:"type"`
	// Address overrides the sensor's default 7-bit bus address.
	Address byte `yaml:"address"`
	// IntervalMs is the polling interval between measurement cycles.
	IntervalMs int `yaml:"interval_ms"`
	// CycleTimeoutMs bounds one cycle before it is abandoned.
	CycleTimeoutMs int `yaml:"cycle_timeout_ms"`
}

func (s SensorConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

func (s SensorConfig) CycleTimeout() time.Duration {
	return time.Duration(s.CycleTimeoutMs) * time.Millisecond
}

func (c Config) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// Load reads, parses, validates and normalizes a configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	Normalize(&cfg)
	return &cfg, nil
}
