package sensorloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePair(payload []byte) ([]Reading, error) {
	return []Reading{
		{Quantity: QuantityDistance, Value: float64(int(payload[0])*0x100 + int(payload[1]))},
	}, nil
}

func testConfig() Config {
	return Config{
		Address:      0x74,
		StartCmd:     []byte{0x10, 0xB0},
		ReadCmd:      []byte{0x02},
		SettleTime:   50 * time.Millisecond,
		PayloadLen:   2,
		Decode:       decodePair,
		CycleTimeout: time.Second,
	}
}

func TestMachine_NewValidation(t *testing.T) {
	bus := NewMockBus(nil, nil)
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing decode", func(c *Config) { c.Decode = nil }},
		{"missing start command", func(c *Config) { c.StartCmd = nil }},
		{"invalid payload length", func(c *Config) { c.PayloadLen = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := NewMachine(cfg, bus, nil)
			assert.Error(t, err)
		})
	}
	_, err := NewMachine(testConfig(), nil, nil)
	assert.Error(t, err)
}

func TestMachine_FullCycle(t *testing.T) {
	bus := NewMockBus(nil, func(ctx context.Context, addr byte, n int) ([]byte, error) {
		return []byte{0x00, 0x64}, nil
	})
	var published []Reading
	sink := SinkFuncs{PublishFunc: func(r Reading) { published = append(published, r) }}
	m, err := NewMachine(testConfig(), bus, sink)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()

	assert.True(t, m.Idle())
	assert.True(t, m.BeginCycle(now))
	assert.Equal(t, StateRequesting, m.State())

	// start measurement command
	require.NoError(t, m.Step(ctx, now))
	assert.Equal(t, StateAwaitingSettle, m.State())
	assert.Equal(t, [][]byte{{0x10, 0xB0}}, bus.Writes())

	// settle gate: repeated calls before the settle time touch nothing
	for i := 0; i < 10; i++ {
		require.NoError(t, m.Step(ctx, now.Add(49*time.Millisecond)))
		assert.Equal(t, StateAwaitingSettle, m.State())
	}
	assert.Len(t, bus.Writes(), 1, "no bus write before the settle time elapsed")

	now = now.Add(50 * time.Millisecond)
	require.NoError(t, m.Step(ctx, now))
	assert.Equal(t, StateReadyToRead, m.State())

	// request data + schedule read, one transition
	require.NoError(t, m.Step(ctx, now))
	assert.Equal(t, StateReading, m.State())
	assert.Equal(t, [][]byte{{0x10, 0xB0}, {0x02}}, bus.Writes())
	assert.Empty(t, published, "no decode before the reading step")

	require.NoError(t, m.Step(ctx, now))
	assert.True(t, m.Idle())
	require.Len(t, published, 1)
	assert.Equal(t, QuantityDistance, published[0].Quantity)
	assert.Equal(t, 100.0, published[0].Value)

	// parked: further steps issue no bus activity
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Step(ctx, now.Add(time.Duration(i)*time.Second)))
	}
	assert.Len(t, bus.Writes(), 2)
}

func TestMachine_BeginCycleDroppedMidCycle(t *testing.T) {
	bus := NewMockBus(nil, func(ctx context.Context, addr byte, n int) ([]byte, error) {
		return []byte{0x00, 0x01}, nil
	})
	m, err := NewMachine(testConfig(), bus, nil)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()
	require.True(t, m.BeginCycle(now))
	require.NoError(t, m.Step(ctx, now))

	// re-trigger while the cycle is in flight is a no-op
	assert.False(t, m.BeginCycle(now.Add(time.Millisecond)))
	assert.Equal(t, StateAwaitingSettle, m.State())
	assert.Len(t, bus.Writes(), 1, "no second start measurement write")
}

func TestMachine_StartWriteRetriedAfterFailure(t *testing.T) {
	attempts := 0
	bus := NewMockBus(func(ctx context.Context, addr byte, buf []byte) error {
		attempts++
		if attempts == 1 {
			return ErrTransaction
		}
		return nil
	}, nil)
	m, err := NewMachine(testConfig(), bus, nil)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()
	require.True(t, m.BeginCycle(now))

	err = m.Step(ctx, now)
	assert.ErrorIs(t, err, ErrTransaction)
	assert.Equal(t, StateRequesting, m.State(), "failed write leaves the state unchanged")

	require.NoError(t, m.Step(ctx, now.Add(time.Millisecond)))
	assert.Equal(t, StateAwaitingSettle, m.State())
	assert.Equal(t, 2, attempts)
}

func TestMachine_ReadDelayGatesAvailability(t *testing.T) {
	bus := NewMockBus(nil, func(ctx context.Context, addr byte, n int) ([]byte, error) {
		return []byte{0x01, 0x02}, nil
	})
	cfg := testConfig()
	cfg.ReadDelay = 20 * time.Millisecond
	var published []Reading
	m, err := NewMachine(cfg, bus, SinkFuncs{PublishFunc: func(r Reading) { published = append(published, r) }})
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()
	require.True(t, m.BeginCycle(now))
	require.NoError(t, m.Step(ctx, now))
	now = now.Add(cfg.SettleTime)
	require.NoError(t, m.Step(ctx, now))
	require.NoError(t, m.Step(ctx, now))
	require.Equal(t, StateReading, m.State())

	// payload is buffered already but the read delay has not elapsed
	require.NoError(t, m.Step(ctx, now.Add(19*time.Millisecond)))
	assert.Equal(t, StateReading, m.State())
	assert.Empty(t, published)

	require.NoError(t, m.Step(ctx, now.Add(20*time.Millisecond)))
	assert.True(t, m.Idle())
	assert.Len(t, published, 1)
}

func TestMachine_PartialPayloadWaits(t *testing.T) {
	bus := NewMockBus(nil, nil)
	m, err := NewMachine(testConfig(), bus, nil)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()
	require.True(t, m.BeginCycle(now))
	require.NoError(t, m.Step(ctx, now))
	now = now.Add(50 * time.Millisecond)
	require.NoError(t, m.Step(ctx, now))
	require.NoError(t, m.Step(ctx, now))
	require.Equal(t, StateReading, m.State())

	// only one of two expected bytes buffered
	bus.Buffer([]byte{0x42})
	require.NoError(t, m.Step(ctx, now))
	assert.Equal(t, StateReading, m.State(), "partial payload must never be interpreted")
}

func TestMachine_CycleTimeoutFaultsAndParks(t *testing.T) {
	// the device never answers
	bus := NewMockBus(nil, nil)
	cfg := testConfig()
	cfg.CycleTimeout = 500 * time.Millisecond
	var fault error
	m, err := NewMachine(cfg, bus, SinkFuncs{FaultFunc: func(err error) { fault = err }})
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()
	require.True(t, m.BeginCycle(now))
	require.NoError(t, m.Step(ctx, now))
	now = now.Add(cfg.SettleTime)
	require.NoError(t, m.Step(ctx, now))
	require.NoError(t, m.Step(ctx, now))

	for i := 0; i < 40; i++ {
		now = now.Add(20 * time.Millisecond)
		if err = m.Step(ctx, now); err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, ErrCycleTimeout)
	assert.ErrorIs(t, fault, ErrCycleTimeout)
	assert.True(t, m.Idle(), "timed out cycle parks the machine")

	// a fresh cycle can start after the fault
	assert.True(t, m.BeginCycle(now))
}

func TestMachine_AbandonedCycleDoesNotLeakStaleReply(t *testing.T) {
	// first cycle gets a partial reply and is abandoned by the deadline; the
	// bytes it left behind must not shift the next cycle's payload
	calls := 0
	bus := NewMockBus(nil, func(ctx context.Context, addr byte, n int) ([]byte, error) {
		calls++
		if calls == 1 {
			return []byte{0x00}, nil
		}
		return []byte{0x01, 0x00}, nil
	})
	var published []Reading
	var fault error
	m, err := NewMachine(testConfig(), bus, SinkFuncs{
		PublishFunc: func(r Reading) { published = append(published, r) },
		FaultFunc:   func(err error) { fault = err },
	})
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()
	require.True(t, m.BeginCycle(now))
	require.NoError(t, m.Step(ctx, now))
	now = now.Add(50 * time.Millisecond)
	require.NoError(t, m.Step(ctx, now))
	require.NoError(t, m.Step(ctx, now))
	require.Equal(t, StateReading, m.State())
	require.NoError(t, m.Step(ctx, now), "one buffered byte of two is not a payload")

	now = now.Add(time.Second)
	err = m.Step(ctx, now)
	require.ErrorIs(t, err, ErrCycleTimeout)
	require.ErrorIs(t, fault, ErrCycleTimeout)
	require.Empty(t, published)

	require.True(t, m.BeginCycle(now))
	require.NoError(t, m.Step(ctx, now))
	now = now.Add(50 * time.Millisecond)
	require.NoError(t, m.Step(ctx, now))
	require.NoError(t, m.Step(ctx, now))
	require.NoError(t, m.Step(ctx, now))

	require.Len(t, published, 1)
	assert.Equal(t, 256.0, published[0].Value, "payload must come from this cycle's reply, not leftovers")
	assert.True(t, m.Idle())
}

func TestMachine_WriteFailureWrapsTransactionError(t *testing.T) {
	bus := NewMockBus(func(ctx context.Context, addr byte, buf []byte) error {
		return errors.New("wire noise")
	}, nil)
	m, err := NewMachine(testConfig(), bus, nil)
	require.NoError(t, err)

	require.True(t, m.BeginCycle(time.Now()))
	err = m.Step(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrTransaction)
}

func TestMachine_DecodeErrorFaults(t *testing.T) {
	decodeErr := errors.New("bad payload")
	bus := NewMockBus(nil, func(ctx context.Context, addr byte, n int) ([]byte, error) {
		return []byte{0xFF, 0xFF}, nil
	})
	cfg := testConfig()
	cfg.Decode = func(payload []byte) ([]Reading, error) { return nil, decodeErr }
	var fault error
	m, err := NewMachine(cfg, bus, SinkFuncs{FaultFunc: func(err error) { fault = err }})
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()
	require.True(t, m.BeginCycle(now))
	require.NoError(t, m.Step(ctx, now))
	now = now.Add(cfg.SettleTime)
	require.NoError(t, m.Step(ctx, now))
	require.NoError(t, m.Step(ctx, now))
	err = m.Step(ctx, now)
	assert.ErrorIs(t, err, decodeErr)
	assert.ErrorIs(t, fault, decodeErr)
	assert.True(t, m.Idle())
}
