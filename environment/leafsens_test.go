package environment

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/mklimuk/sensorloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeafSens_DecodeWetnessAndTemp(t *testing.T) {
	tests := []struct {
		given        []byte
		expectedWet  float64
		expectedTemp float64
	}{
		{[]byte{0xE8, 0x03, 0x2C, 0x01}, 10.0, 3.0},
		{[]byte{0x00, 0x00, 0x00, 0x00}, 0.0, 0.0},
		{[]byte{0x10, 0x27, 0xF0, 0xD8}, 100.0, -100.0},
		{[]byte{0xFF, 0xFF, 0x01, 0x00}, -0.01, 0.01},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given), func(t *testing.T) {
			readings, err := decodeWetnessAndTemp(test.given)
			require.NoError(t, err)
			require.Len(t, readings, 2)
			assert.Equal(t, sensorloop.QuantityWetness, readings[0].Quantity)
			assert.InDelta(t, test.expectedWet, readings[0].Value, 1e-9)
			assert.Equal(t, sensorloop.QuantityTemperature, readings[1].Quantity)
			assert.InDelta(t, test.expectedTemp, readings[1].Value, 1e-9)
		})
	}
}

func TestLeafSens_DecodeWetnessAndTemp_BadLength(t *testing.T) {
	_, err := decodeWetnessAndTemp([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestLeafSens_FullCycle(t *testing.T) {
	bus := sensorloop.NewMockBus(func(ctx context.Context, addr byte, buf []byte) error {
		assert.Equal(t, byte(leafSensAddress), addr)
		return nil
	}, func(ctx context.Context, addr byte, n int) ([]byte, error) {
		require.Equal(t, leafPayloadLen, n)
		// device has nothing buffered yet
		return nil, nil
	})

	var published []sensorloop.Reading
	sink := sensorloop.SinkFuncs{PublishFunc: func(r sensorloop.Reading) { published = append(published, r) }}
	sensor, err := NewLeafSens(bus, sink)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()
	require.True(t, sensor.BeginCycle(now))
	require.NoError(t, sensor.Step(ctx, now))
	require.NoError(t, sensor.Step(ctx, now.Add(299*time.Millisecond)))
	assert.Len(t, bus.Writes(), 1, "no data request before the settle time")

	now = now.Add(leafSettleTime)
	require.NoError(t, sensor.Step(ctx, now))
	require.NoError(t, sensor.Step(ctx, now))
	assert.Equal(t, [][]byte{{leafRegNewReading}, {leafRegData}}, bus.Writes())

	// the reply is not buffered yet; the machine keeps polling
	require.NoError(t, sensor.Step(ctx, now))
	require.NoError(t, sensor.Step(ctx, now.Add(10*time.Millisecond)))
	assert.Empty(t, published)

	bus.Buffer([]byte{0xE8, 0x03, 0x2C, 0x01})
	require.NoError(t, sensor.Step(ctx, now.Add(20*time.Millisecond)))

	require.Len(t, published, 2)
	assert.Equal(t, sensorloop.QuantityWetness, published[0].Quantity)
	assert.InDelta(t, 10.0, published[0].Value, 1e-9)
	assert.Equal(t, sensorloop.QuantityTemperature, published[1].Quantity)
	assert.InDelta(t, 3.0, published[1].Value, 1e-9)
	assert.True(t, sensor.Idle())
}

func TestLeafSens_CalibrateRefusedMidCycle(t *testing.T) {
	bus := sensorloop.NewMockBus(nil, nil)
	sensor, err := NewLeafSens(bus, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sensor.CalibrateAir(ctx))
	assert.Equal(t, [][]byte{{leafRegCalibrateAir}}, bus.Writes())

	require.True(t, sensor.BeginCycle(time.Now()))
	err = sensor.CalibrateWater(ctx)
	assert.ErrorIs(t, err, sensorloop.ErrBusBusy)
}
