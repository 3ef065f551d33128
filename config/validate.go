package config

import (
	"fmt"
)

// Validate checks configuration correctness. It does not mutate the
// configuration; defaults are applied later by Normalize.
func Validate(cfg *Config) error {
	switch cfg.Adapter {
	case "", AdapterMCP2221, AdapterI2C, AdapterGobot, AdapterMock:
	default:
		return fmt.Errorf("unknown adapter %q", cfg.Adapter)
	}
	if cfg.TickMs < 0 {
		return fmt.Errorf("tick_ms must not be negative, got %d", cfg.TickMs)
	}
	if len(cfg.Sensors) == 0 {
		return fmt.Errorf("at least one sensor is required")
	}
	seen := make(map[byte]string)
	for i, s := range cfg.Sensors {
		switch s.Type {
		case SensorSEN0590, SensorLeafSens:
		default:
			return fmt.Errorf("sensor %d: unknown type %q", i, s.Type)
		}
		if s.IntervalMs < 0 {
			return fmt.Errorf("sensor %d: interval_ms must not be negative, got %d", i, s.IntervalMs)
		}
		if s.CycleTimeoutMs < 0 {
			return fmt.Errorf("sensor %d: cycle_timeout_ms must not be negative, got %d", i, s.CycleTimeoutMs)
		}
		if s.Address > 0x7F {
			return fmt.Errorf("sensor %d: address %#x is not a 7-bit bus address", i, s.Address)
		}
		addr := s.Address
		if addr == 0 {
			addr = defaultAddress(s.Type)
		}
		if owner, ok := seen[addr]; ok {
			return fmt.Errorf("sensor %d: bus address %#x already used by %s", i, addr, owner)
		}
		seen[addr] = s.Type
	}
	return nil
}

func defaultAddress(sensorType string) byte {
	switch sensorType {
	case SensorSEN0590:
		return 0x74
	case SensorLeafSens:
		return 0x61
	default:
		return 0
	}
}
