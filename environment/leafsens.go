package environment

import (
	"context"
	"fmt"
	"time"

	"github.com/mklimuk/sensorloop"
)

// Tinovi leaf wetness sensor default 7-bit I2C address
const leafSensAddress = 0x61

// Register map (per the vendor Arduino library)
const (
	leafRegNewReading     byte = 0x01
	leafRegData           byte = 0x02
	leafRegCalibrateAir   byte = 0x05
	leafRegCalibrateWater byte = 0x06
)

// The documentation states the measurement takes 100ms; the vendor code waits
// 300-400ms. 300ms is known to work.
const leafSettleTime = 300 * time.Millisecond

const leafPayloadLen = 4

type LeafSensOpts struct {
	Address      byte
	SettleTime   time.Duration
	CycleTimeout time.Duration
	Interval     time.Duration
}

type LeafSensOpt func(*LeafSensOpts)

func WithAddress(addr byte) LeafSensOpt {
	return func(o *LeafSensOpts) {
		o.Address = addr
	}
}

func WithSettleTime(settle time.Duration) LeafSensOpt {
	return func(o *LeafSensOpts) {
		o.SettleTime = settle
	}
}

func WithInterval(interval time.Duration) LeafSensOpt {
	return func(o *LeafSensOpts) {
		o.Interval = interval
	}
}

func WithCycleTimeout(timeout time.Duration) LeafSensOpt {
	return func(o *LeafSensOpts) {
		o.CycleTimeout = timeout
	}
}

// LeafSens represents the Tinovi I2C leaf wetness sensor. One measurement
// cycle publishes two readings, wetness (%) then temperature (°C), decoded
// from a 4-byte reply of two little-endian signed words scaled by 1/100.
//
// Unlike the SEN0590 this sensor has no documented post-request delay, so the
// cycle polls data availability until the full reply is buffered, bounded by
// the cycle timeout.
type LeafSens struct {
	machine *sensorloop.Machine
	bus     sensorloop.Bus
	addr    byte
}

func NewLeafSens(bus sensorloop.Bus, sink sensorloop.Sink, opts ...LeafSensOpt) (*LeafSens, error) {
	config := LeafSensOpts{
		Address:      leafSensAddress,
		SettleTime:   leafSettleTime,
		CycleTimeout: 2 * time.Second,
		Interval:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(&config)
	}
	machine, err := sensorloop.NewMachine(sensorloop.Config{
		Address:      config.Address,
		StartCmd:     []byte{leafRegNewReading},
		ReadCmd:      []byte{leafRegData},
		SettleTime:   config.SettleTime,
		PayloadLen:   leafPayloadLen,
		Decode:       decodeWetnessAndTemp,
		CycleTimeout: config.CycleTimeout,
		Interval:     config.Interval,
	}, bus, sink)
	if err != nil {
		return nil, fmt.Errorf("leafsens: %w", err)
	}
	return &LeafSens{machine: machine, bus: bus, addr: config.Address}, nil
}

func (s *LeafSens) Name() string { return "leafsens" }

func (s *LeafSens) Idle() bool { return s.machine.Idle() }

func (s *LeafSens) Interval() time.Duration { return s.machine.Interval() }

func (s *LeafSens) BeginCycle(now time.Time) bool { return s.machine.BeginCycle(now) }

func (s *LeafSens) Step(ctx context.Context, now time.Time) error { return s.machine.Step(ctx, now) }

// CalibrateAir stores the dry reference point in the sensor. Calibration is a
// direct register write and is refused while a measurement cycle is in flight.
func (s *LeafSens) CalibrateAir(ctx context.Context) error {
	return s.calibrate(ctx, leafRegCalibrateAir)
}

// CalibrateWater stores the wet reference point in the sensor.
func (s *LeafSens) CalibrateWater(ctx context.Context) error {
	return s.calibrate(ctx, leafRegCalibrateWater)
}

func (s *LeafSens) calibrate(ctx context.Context, reg byte) error {
	if !s.machine.Idle() {
		return fmt.Errorf("leafsens: %w", sensorloop.ErrBusBusy)
	}
	if err := s.bus.WriteToAddr(ctx, s.addr, []byte{reg}); err != nil {
		return fmt.Errorf("leafsens: calibration write failed: %w", err)
	}
	return nil
}

func decodeWetnessAndTemp(payload []byte) ([]sensorloop.Reading, error) {
	if len(payload) != leafPayloadLen {
		return nil, fmt.Errorf("leafsens: unexpected payload length %d", len(payload))
	}
	wetness := float64(int16(uint16(payload[0])|uint16(payload[1])<<8)) / 100.0
	temp := float64(int16(uint16(payload[2])|uint16(payload[3])<<8)) / 100.0
	return []sensorloop.Reading{
		{Quantity: sensorloop.QuantityWetness, Value: wetness},
		{Quantity: sensorloop.QuantityTemperature, Value: temp},
	}, nil
}
