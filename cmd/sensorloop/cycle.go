package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mklimuk/sensorloop/cmd/sensorloop/console"
	"github.com/mklimuk/sensorloop/runner"
)

// driveCycle runs one full measurement cycle to completion, ticking the
// sensor the way a host loop would.
func driveCycle(ctx context.Context, s runner.Sensor, timeout time.Duration) error {
	now := time.Now()
	if !s.BeginCycle(now) {
		return fmt.Errorf("%s: measurement cycle already in flight", s.Name())
	}
	deadline := now.Add(timeout)
	for !s.Idle() {
		if time.Now().After(deadline) {
			return fmt.Errorf("%s: measurement timed out after %s", s.Name(), timeout)
		}
		if err := s.Step(ctx, time.Now()); err != nil {
			console.Debugf("step error: %s", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	return nil
}
