package distance

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/mklimuk/sensorloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSEN0590_DecodeDistance(t *testing.T) {
	tests := []struct {
		given    []byte
		expected float64
	}{
		{[]byte{0x00, 0x64}, 110},
		{[]byte{0x00, 0x00}, 10},
		{[]byte{0x01, 0x00}, 266},
		{[]byte{0xFF, 0xFF}, 65545},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given), func(t *testing.T) {
			readings, err := decodeDistance(test.given)
			require.NoError(t, err)
			require.Len(t, readings, 1)
			assert.Equal(t, sensorloop.QuantityDistance, readings[0].Quantity)
			assert.Equal(t, test.expected, readings[0].Value)
		})
	}
}

func TestSEN0590_DecodeDistance_BadLength(t *testing.T) {
	_, err := decodeDistance([]byte{0x00})
	assert.Error(t, err)
}

func TestSEN0590_FullCycle(t *testing.T) {
	var resultRequested bool
	bus := sensorloop.NewMockBus(func(ctx context.Context, addr byte, buf []byte) error {
		assert.Equal(t, byte(sen0590Address), addr)
		if len(buf) == 1 && buf[0] == 0x02 {
			resultRequested = true
		}
		return nil
	}, func(ctx context.Context, addr byte, n int) ([]byte, error) {
		require.Equal(t, sen0590PayloadLen, n)
		return []byte{0x00, 0x64}, nil
	})

	var published []sensorloop.Reading
	sink := sensorloop.SinkFuncs{PublishFunc: func(r sensorloop.Reading) { published = append(published, r) }}
	sensor, err := NewSEN0590(bus, sink)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()
	require.True(t, sensor.BeginCycle(now))

	// measurement trigger then the 50ms settle window
	require.NoError(t, sensor.Step(ctx, now))
	require.NoError(t, sensor.Step(ctx, now.Add(49*time.Millisecond)))
	assert.False(t, resultRequested)

	now = now.Add(50 * time.Millisecond)
	require.NoError(t, sensor.Step(ctx, now))
	require.NoError(t, sensor.Step(ctx, now))
	assert.True(t, resultRequested)

	// the 20ms read delay gates the collect
	require.NoError(t, sensor.Step(ctx, now.Add(10*time.Millisecond)))
	assert.Empty(t, published)
	require.NoError(t, sensor.Step(ctx, now.Add(20*time.Millisecond)))

	require.Len(t, published, 1)
	assert.Equal(t, sensorloop.QuantityDistance, published[0].Quantity)
	assert.Equal(t, 110.0, published[0].Value)
	assert.True(t, sensor.Idle())
}

func TestSEN0590_Options(t *testing.T) {
	bus := sensorloop.NewMockBus(nil, nil)
	sensor, err := NewSEN0590(bus, nil,
		WithAddress(0x75),
		WithInterval(2*time.Second),
		WithCycleTimeout(300*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, sensor.Interval())
}
