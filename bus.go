package sensorloop

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// ErrTransaction marks write and read-request transactions that did not
// complete; transports wrap the driver failure with it.
var ErrTransaction = fmt.Errorf("bus transaction did not complete")
var ErrNoData = fmt.Errorf("no data buffered on the bus adapter")

// AddressableWriter issues a raw write transaction to a bus address.
type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
}

// AddressableReader models the request/read half of the wire protocol: a read
// of a known length is scheduled first, buffered bytes are then consumed one
// at a time once Available reports the full payload.
type AddressableReader interface {
	RequestFromAddr(ctx context.Context, address byte, length int) error
	Available(ctx context.Context) (int, error)
	ReadByte(ctx context.Context) (byte, error)
}

type Bus interface {
	AddressableReader
	AddressableWriter
	Release(ctx context.Context) error
}
