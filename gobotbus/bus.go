package gobotbus

import (
	"context"
	"fmt"

	"github.com/mklimuk/sensorloop"
	"gobot.io/x/gobot/v2/drivers/i2c"
)

var _ sensorloop.Bus = &Bus{}

// Bus adapts a gobot I2C connector to the request/read contract. Per-address
// generic drivers are created lazily and kept for the lifetime of the bus so
// repeated cycle transactions reuse one started driver.
type Bus struct {
	adaptor  i2c.Connector
	busNum   int
	drivers  map[byte]*i2c.GenericDriver
	buffered []byte
}

func NewBus(adaptor i2c.Connector, busNum int) *Bus {
	return &Bus{
		adaptor: adaptor,
		busNum:  busNum,
		drivers: make(map[byte]*i2c.GenericDriver),
	}
}

func (b *Bus) driver(address byte) (*i2c.GenericDriver, error) {
	if drv, ok := b.drivers[address]; ok {
		return drv, nil
	}
	drv := i2c.NewGenericDriver(b.adaptor, "sensorloop", int(address), func(c i2c.Config) {
		c.SetBus(b.busNum)
	})
	if err := drv.Start(); err != nil {
		return nil, fmt.Errorf("driver start for %#x failed: %w", address, err)
	}
	b.drivers[address] = drv
	return drv, nil
}

func (b *Bus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	drv, err := b.driver(address)
	if err != nil {
		return err
	}
	if err := drv.Write(buffer); err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w: %w", address, sensorloop.ErrTransaction, err)
	}
	return nil
}

func (b *Bus) RequestFromAddr(ctx context.Context, address byte, length int) error {
	drv, err := b.driver(address)
	if err != nil {
		return err
	}
	// a new read invalidates anything left over from an abandoned one
	b.buffered = b.buffered[:0]
	payload := make([]byte, length)
	if err := drv.Read(payload); err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w: %w", address, sensorloop.ErrTransaction, err)
	}
	b.buffered = append(b.buffered, payload...)
	return nil
}

func (b *Bus) Available(ctx context.Context) (int, error) {
	return len(b.buffered), nil
}

func (b *Bus) ReadByte(ctx context.Context) (byte, error) {
	if len(b.buffered) == 0 {
		return 0, sensorloop.ErrNoData
	}
	next := b.buffered[0]
	b.buffered = b.buffered[1:]
	return next, nil
}

func (b *Bus) Release(ctx context.Context) error {
	b.buffered = nil
	return nil
}

// Close halts every started driver.
func (b *Bus) Close() error {
	var first error
	for addr, drv := range b.drivers {
		if err := drv.Halt(); err != nil && first == nil {
			first = fmt.Errorf("halt of driver %#x failed: %w", addr, err)
		}
		delete(b.drivers, addr)
	}
	return first
}
