package main

import (
	"context"
	"fmt"

	"github.com/mklimuk/sensorloop"
	"github.com/mklimuk/sensorloop/adapter"
	"github.com/mklimuk/sensorloop/config"
	"github.com/mklimuk/sensorloop/gobotbus"
	"github.com/mklimuk/sensorloop/i2c"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
)

// newBus builds the bus transport for the selected adapter.
func newBus(name, device string, busNum int) (sensorloop.Bus, error) {
	switch name {
	case config.AdapterMCP2221:
		return adapter.NewMCP2221(), nil
	case config.AdapterI2C:
		if device == "" {
			device = "/dev/i2c-1"
		}
		return i2c.NewGenericBus(device)
	case config.AdapterGobot:
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		return gobotbus.NewBus(npi, busNum), nil
	case config.AdapterMock:
		return newSimulatedBus(), nil
	}
	return nil, fmt.Errorf("unknown adapter %q", name)
}

// newSimulatedBus answers with plausible payloads for the known sensor
// addresses so the CLI can be exercised without any hardware attached.
func newSimulatedBus() *sensorloop.MockBus {
	return sensorloop.NewMockBus(nil, func(ctx context.Context, addr byte, n int) ([]byte, error) {
		switch addr {
		case 0x74:
			// 1238mm before the constant offset
			return []byte{0x04, 0xCC}, nil
		case 0x61:
			// 42.00% wetness, 21.50°C
			return []byte{0x68, 0x10, 0x66, 0x08}, nil
		}
		payload := make([]byte, n)
		return payload, nil
	})
}
