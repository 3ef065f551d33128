package i2c

import (
	"context"
	"fmt"

	"github.com/mklimuk/sensorloop"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var _ sensorloop.Bus = &GenericBus{}

// GenericBus adapts a periph.io I2C bus to the request/read contract. The
// kernel transfers the whole payload in one transaction, so a scheduled read
// lands in a local buffer that Available and ReadByte drain byte by byte.
type GenericBus struct {
	bus      i2c.BusCloser
	buffered []byte
}

func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		fmt.Println(driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return &GenericBus{
		bus: bus,
	}, nil
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w: %w", address, sensorloop.ErrTransaction, err)
	}
	return nil
}

func (b *GenericBus) RequestFromAddr(ctx context.Context, address byte, length int) error {
	// a new read invalidates anything left over from an abandoned one
	b.buffered = b.buffered[:0]
	payload := make([]byte, length)
	err := b.bus.Tx(uint16(address), nil, payload)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w: %w", address, sensorloop.ErrTransaction, err)
	}
	b.buffered = append(b.buffered, payload...)
	return nil
}

func (b *GenericBus) Available(ctx context.Context) (int, error) {
	return len(b.buffered), nil
}

func (b *GenericBus) ReadByte(ctx context.Context) (byte, error) {
	if len(b.buffered) == 0 {
		return 0, sensorloop.ErrNoData
	}
	next := b.buffered[0]
	b.buffered = b.buffered[1:]
	return next, nil
}

func (b *GenericBus) Release(ctx context.Context) error {
	b.buffered = nil
	return nil
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}
