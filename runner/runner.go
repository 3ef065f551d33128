package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/sensorloop"
)

// Sensor is one pollable measurement cycle. distance.SEN0590 and
// environment.LeafSens satisfy it.
type Sensor interface {
	Name() string
	Idle() bool
	Interval() time.Duration
	BeginCycle(now time.Time) bool
	Step(ctx context.Context, now time.Time) error
}

const defaultTick = 5 * time.Millisecond

type Opts struct {
	Tick time.Duration
}

type Opt func(*Opts)

func WithTick(tick time.Duration) Opt {
	return func(o *Opts) {
		o.Tick = tick
	}
}

// Runner drives a set of sensors sharing one bus from a single cooperative
// loop. Every tick steps the in-flight cycle by at most one transition; a new
// cycle is armed only when every sensor is idle, so request/read pairs of
// different instances never interleave on the bus.
type Runner struct {
	sensors []Sensor
	bus     sensorloop.Bus
	tick    time.Duration
	nextDue []time.Time
}

func New(bus sensorloop.Bus, sensors []Sensor, opts ...Opt) (*Runner, error) {
	if len(sensors) == 0 {
		return nil, fmt.Errorf("runner requires at least one sensor")
	}
	config := Opts{Tick: defaultTick}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Tick <= 0 {
		return nil, fmt.Errorf("invalid tick %s", config.Tick)
	}
	return &Runner{
		sensors: sensors,
		bus:     bus,
		tick:    config.Tick,
		nextDue: make([]time.Time, len(sensors)),
	}, nil
}

// Run loops until the context is cancelled, ticking the cooperative loop.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if r.bus != nil {
				_ = r.bus.Release(context.WithoutCancel(ctx))
			}
			return ctx.Err()
		case now := <-ticker.C:
			r.Tick(ctx, now)
		}
	}
}

// Tick performs one loop iteration: step every sensor, then arm the next due
// cycle once the bus is free. Exposed so hosts with their own loop (or tests)
// can drive the runner without the internal ticker.
func (r *Runner) Tick(ctx context.Context, now time.Time) {
	for _, s := range r.sensors {
		if err := s.Step(ctx, now); err != nil {
			slog.Warn("sensor step error", "sensor", s.Name(), "error", err)
		}
	}
	if !r.allIdle() {
		return
	}
	for i, s := range r.sensors {
		if now.Before(r.nextDue[i]) {
			continue
		}
		if !s.BeginCycle(now) {
			continue
		}
		slog.Debug("cycle started", "sensor", s.Name())
		r.nextDue[i] = now.Add(s.Interval())
		// one in-flight cycle at a time keeps bus transactions serialized
		return
	}
}

func (r *Runner) allIdle() bool {
	for _, s := range r.sensors {
		if !s.Idle() {
			return false
		}
	}
	return true
}
