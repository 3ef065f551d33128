package distance

import (
	"context"
	"fmt"
	"time"

	"github.com/mklimuk/sensorloop"
)

// SEN0590 default 7-bit I2C address
const sen0590Address = 0x74

// Commands (per DFRobot wiki)
var (
	sen0590CmdMeasure = []byte{0x10, 0xB0}
	sen0590CmdResult  = []byte{0x02}
)

// Reply is 2 bytes big-endian plus a constant offset in millimeters.
const (
	sen0590PayloadLen = 2
	sen0590Offset     = 10
)

type SEN0590Opts struct {
	Address      byte
	SettleTime   time.Duration
	ReadDelay    time.Duration
	CycleTimeout time.Duration
	Interval     time.Duration
}

type SEN0590Opt func(*SEN0590Opts)

func WithAddress(addr byte) SEN0590Opt {
	return func(o *SEN0590Opts) {
		o.Address = addr
	}
}

func WithInterval(interval time.Duration) SEN0590Opt {
	return func(o *SEN0590Opts) {
		o.Interval = interval
	}
}

func WithCycleTimeout(timeout time.Duration) SEN0590Opt {
	return func(o *SEN0590Opts) {
		o.CycleTimeout = timeout
	}
}

// SEN0590 represents the DFRobot 4m laser ranging sensor. The measurement
// runs as a non-blocking cycle: the host arms it with BeginCycle on its
// polling interval and drives it with Step on every loop tick; the decoded
// distance is pushed to the sink.
//
// This sensor trusts fixed delays rather than a ready flag, so the cycle
// waits 50ms after triggering a measurement and another 20ms after requesting
// the result before collecting the 2-byte reply.
type SEN0590 struct {
	machine *sensorloop.Machine
}

func NewSEN0590(bus sensorloop.Bus, sink sensorloop.Sink, opts ...SEN0590Opt) (*SEN0590, error) {
	config := SEN0590Opts{
		Address:      sen0590Address,
		SettleTime:   50 * time.Millisecond,
		ReadDelay:    20 * time.Millisecond,
		CycleTimeout: time.Second,
		Interval:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(&config)
	}
	machine, err := sensorloop.NewMachine(sensorloop.Config{
		Address:      config.Address,
		StartCmd:     sen0590CmdMeasure,
		ReadCmd:      sen0590CmdResult,
		SettleTime:   config.SettleTime,
		ReadDelay:    config.ReadDelay,
		PayloadLen:   sen0590PayloadLen,
		Decode:       decodeDistance,
		CycleTimeout: config.CycleTimeout,
		Interval:     config.Interval,
	}, bus, sink)
	if err != nil {
		return nil, fmt.Errorf("sen0590: %w", err)
	}
	return &SEN0590{machine: machine}, nil
}

func (s *SEN0590) Name() string { return "sen0590" }

func (s *SEN0590) Idle() bool { return s.machine.Idle() }

func (s *SEN0590) Interval() time.Duration { return s.machine.Interval() }

func (s *SEN0590) BeginCycle(now time.Time) bool { return s.machine.BeginCycle(now) }

func (s *SEN0590) Step(ctx context.Context, now time.Time) error { return s.machine.Step(ctx, now) }

func decodeDistance(payload []byte) ([]sensorloop.Reading, error) {
	if len(payload) != sen0590PayloadLen {
		return nil, fmt.Errorf("sen0590: unexpected payload length %d", len(payload))
	}
	mm := int(payload[0])*0x100 + int(payload[1]) + sen0590Offset
	return []sensorloop.Reading{
		{Quantity: sensorloop.QuantityDistance, Value: float64(mm)},
	}, nil
}
