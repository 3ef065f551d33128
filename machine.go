package sensorloop

import (
	"context"
	"fmt"
	"time"
)

// State of the measurement cycle. Transitions are driven exclusively by
// BeginCycle and Step; exactly one state is active per machine at any time.
type State uint8

const (
	// StateIdle means no request is in progress.
	StateIdle State = iota
	// StateRequesting means the start-measurement command still has to be sent.
	StateRequesting
	// StateAwaitingSettle means the sensor is measuring and needs its settle time.
	StateAwaitingSettle
	// StateReadyToRead means the request-data command still has to be sent.
	StateReadyToRead
	// StateReading means a read was scheduled and the payload is being collected.
	StateReading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateAwaitingSettle:
		return "awaiting_settle"
	case StateReadyToRead:
		return "ready_to_read"
	case StateReading:
		return "reading"
	default:
		return "unknown"
	}
}

var ErrCycleTimeout = fmt.Errorf("measurement cycle deadline exceeded")

// Config holds the per-sensor parameters of a measurement cycle. It is fixed
// at construction and never mutated afterwards.
type Config struct {
	// Address is the 7-bit bus address of the sensor.
	Address byte
	// StartCmd is written to trigger a new measurement.
	StartCmd []byte
	// ReadCmd is written to request the measurement value.
	ReadCmd []byte
	// SettleTime is how long the sensor needs after StartCmd before the
	// result may be requested.
	SettleTime time.Duration
	// ReadDelay is an optional fixed wait between scheduling the read and the
	// first availability check. Zero means poll availability right away.
	ReadDelay time.Duration
	// PayloadLen is the exact reply length in bytes.
	PayloadLen int
	// Decode turns a full payload into readings.
	Decode DecodeFunc
	// CycleTimeout bounds a whole cycle; past it the machine force-returns to
	// idle and reports a fault to the sink. Zero disables the bound.
	CycleTimeout time.Duration
	// Interval is the suggested polling interval between cycles. The machine
	// does not act on it; schedulers read it through Interval().
	Interval time.Duration
}

// Machine is a non-blocking state machine driving one request/response sensor
// over a shared bus. The host calls BeginCycle on its polling interval and
// Step on every loop tick; Step performs at most one transition per call and
// never sleeps, so it is safe to invoke arbitrarily often.
//
// A command is issued exactly once per state visit: the call that performs the
// write is the same call that transitions into the subsequent wait state, so
// redundant Step calls within a wait state never touch the bus.
type Machine struct {
	cfg  Config
	bus  Bus
	sink Sink

	state      State
	stateSince time.Time
	cycleStart time.Time
	payload    []byte
}

func NewMachine(cfg Config, bus Bus, sink Sink) (*Machine, error) {
	if bus == nil {
		return nil, fmt.Errorf("machine requires a bus")
	}
	if sink == nil {
		sink = SinkFuncs{}
	}
	if cfg.PayloadLen <= 0 {
		return nil, fmt.Errorf("invalid payload length %d", cfg.PayloadLen)
	}
	if cfg.Decode == nil {
		return nil, fmt.Errorf("machine requires a decode function")
	}
	if len(cfg.StartCmd) == 0 {
		return nil, fmt.Errorf("machine requires a start command")
	}
	return &Machine{
		cfg:     cfg,
		bus:     bus,
		sink:    sink,
		state:   StateIdle,
		payload: make([]byte, cfg.PayloadLen),
	}, nil
}

// State returns the current cycle state.
func (m *Machine) State() State { return m.state }

// Idle reports whether no measurement cycle is in flight.
func (m *Machine) Idle() bool { return m.state == StateIdle }

// Interval returns the configured polling interval.
func (m *Machine) Interval() time.Duration { return m.cfg.Interval }

// Address returns the bus address the machine talks to.
func (m *Machine) Address() byte { return m.cfg.Address }

// BeginCycle arms a new measurement cycle and reports whether it started.
// A call while a cycle is already in flight is dropped: the in-flight cycle
// is allowed to resolve (or hit its deadline) before a new one can start, so
// a re-trigger never corrupts an outstanding transaction.
func (m *Machine) BeginCycle(now time.Time) bool {
	if m.state != StateIdle {
		return false
	}
	m.state = StateRequesting
	m.cycleStart = now
	return true
}

// Step advances the cycle by at most one transition. Transaction failures
// leave the state unchanged so the operation is retried on the next tick;
// every non-idle state is bounded by the cycle deadline, which forces the
// machine back to idle and signals the sink instead of stalling forever.
func (m *Machine) Step(ctx context.Context, now time.Time) error {
	if m.state == StateIdle {
		return nil
	}
	if m.cfg.CycleTimeout > 0 && now.Sub(m.cycleStart) >= m.cfg.CycleTimeout {
		state := m.state
		m.state = StateIdle
		err := fmt.Errorf("%w: gave up in state %s after %s", ErrCycleTimeout, state, m.cfg.CycleTimeout)
		m.sink.Fault(err)
		return err
	}
	switch m.state {
	case StateRequesting:
		if err := m.bus.WriteToAddr(ctx, m.cfg.Address, m.cfg.StartCmd); err != nil {
			return fmt.Errorf("start measurement write to %#x failed: %w", m.cfg.Address, err)
		}
		m.stateSince = now
		m.state = StateAwaitingSettle
	case StateAwaitingSettle:
		if now.Sub(m.stateSince) < m.cfg.SettleTime {
			return nil
		}
		m.state = StateReadyToRead
	case StateReadyToRead:
		if len(m.cfg.ReadCmd) > 0 {
			if err := m.bus.WriteToAddr(ctx, m.cfg.Address, m.cfg.ReadCmd); err != nil {
				return fmt.Errorf("request data write to %#x failed: %w", m.cfg.Address, err)
			}
		}
		if err := m.bus.RequestFromAddr(ctx, m.cfg.Address, m.cfg.PayloadLen); err != nil {
			return fmt.Errorf("read request to %#x failed: %w", m.cfg.Address, err)
		}
		m.stateSince = now
		m.state = StateReading
	case StateReading:
		if now.Sub(m.stateSince) < m.cfg.ReadDelay {
			return nil
		}
		available, err := m.bus.Available(ctx)
		if err != nil {
			return fmt.Errorf("availability check on %#x failed: %w", m.cfg.Address, err)
		}
		if available < m.cfg.PayloadLen {
			// not there yet, poll again next tick
			return nil
		}
		for i := range m.payload {
			m.payload[i], err = m.bus.ReadByte(ctx)
			if err != nil {
				return fmt.Errorf("payload read from %#x failed: %w", m.cfg.Address, err)
			}
		}
		readings, err := m.cfg.Decode(m.payload)
		m.state = StateIdle
		if err != nil {
			err = fmt.Errorf("payload decode failed: %w", err)
			m.sink.Fault(err)
			return err
		}
		for _, r := range readings {
			m.sink.Publish(r)
		}
	}
	return nil
}
