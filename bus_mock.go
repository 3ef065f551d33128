package sensorloop

import (
	"context"
	"fmt"
	"sync"
)

// WriteBehaviorFunc defines the reaction of a mock bus to a write transaction.
type WriteBehaviorFunc func(ctx context.Context, address byte, buffer []byte) error

// ReplyBehaviorFunc produces the payload a mock device answers with when a
// read of the given length is requested from the given address.
type ReplyBehaviorFunc func(ctx context.Context, address byte, length int) ([]byte, error)

// MockBus is a Bus implementation producing results from behavior functions
// without requiring any hardware. Writes are recorded for inspection; replies
// are buffered like on a real adapter, so Available and ReadByte behave the
// way the wire protocol does.
//
// Example usage:
//
//	bus := NewMockBus(nil, func(ctx context.Context, addr byte, n int) ([]byte, error) {
//		return []byte{0x00, 0x64}, nil
//	})
type MockBus struct {
	mx            sync.Mutex
	writeBehavior WriteBehaviorFunc
	replyBehavior ReplyBehaviorFunc
	buffered      []byte
	writes        [][]byte
}

func NewMockBus(write WriteBehaviorFunc, reply ReplyBehaviorFunc) *MockBus {
	return &MockBus{writeBehavior: write, replyBehavior: reply}
}

func (b *MockBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.writeBehavior != nil {
		if err := b.writeBehavior(ctx, address, buffer); err != nil {
			return fmt.Errorf("write to %#x failed: %w: %w", address, ErrTransaction, err)
		}
	}
	recorded := make([]byte, len(buffer))
	copy(recorded, buffer)
	b.writes = append(b.writes, recorded)
	return nil
}

func (b *MockBus) RequestFromAddr(ctx context.Context, address byte, length int) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	// a new read invalidates anything left over from an abandoned one
	b.buffered = b.buffered[:0]
	if b.replyBehavior == nil {
		return nil
	}
	reply, err := b.replyBehavior(ctx, address, length)
	if err != nil {
		return fmt.Errorf("read request to %#x failed: %w: %w", address, ErrTransaction, err)
	}
	b.buffered = append(b.buffered, reply...)
	return nil
}

func (b *MockBus) Available(ctx context.Context) (int, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return len(b.buffered), nil
}

func (b *MockBus) ReadByte(ctx context.Context) (byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if len(b.buffered) == 0 {
		return 0, ErrNoData
	}
	next := b.buffered[0]
	b.buffered = b.buffered[1:]
	return next, nil
}

func (b *MockBus) Release(ctx context.Context) error {
	return nil
}

// Writes returns the write transactions recorded so far.
func (b *MockBus) Writes() [][]byte {
	b.mx.Lock()
	defer b.mx.Unlock()
	out := make([][]byte, len(b.writes))
	copy(out, b.writes)
	return out
}

// Buffer overrides the bytes currently buffered for reading.
func (b *MockBus) Buffer(payload []byte) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.buffered = append([]byte(nil), payload...)
}
