package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/mklimuk/sensorloop"
	"github.com/mklimuk/sensorloop/cmd/sensorloop/console"
	"github.com/mklimuk/sensorloop/config"
	"github.com/mklimuk/sensorloop/distance"
	"github.com/mklimuk/sensorloop/environment"
	"github.com/mklimuk/sensorloop/runner"
	"github.com/urfave/cli/v2"
)

var watchCmd = cli.Command{
	Name:  "watch",
	Usage: "poll a configured set of sensors continuously",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "sensorloop.yaml",
		},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return console.Exit(1, "config error: %s", console.Red(err))
		}
		bus, err := newBus(cfg.Adapter, cfg.Device, cfg.BusNum)
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}
		sensors := make([]runner.Sensor, 0, len(cfg.Sensors))
		for _, sc := range cfg.Sensors {
			sensor, err := buildSensor(sc, bus)
			if err != nil {
				return console.Exit(1, "sensor initialization error: %s", console.Red(err))
			}
			sensors = append(sensors, sensor)
		}
		loop, err := runner.New(bus, sensors, runner.WithTick(cfg.Tick()))
		if err != nil {
			return console.Exit(1, "runner error: %s", console.Red(err))
		}

		ctx := console.SetVerbose(c.Context, c.Bool("verbose"))
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		slog.Info("watching sensors", "adapter", cfg.Adapter, "count", len(sensors))
		err = loop.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return console.Exit(1, "runner stopped: %s", console.Red(err))
		}
		return nil
	},
}

func buildSensor(sc config.SensorConfig, bus sensorloop.Bus) (runner.Sensor, error) {
	sink := watchSink(sc.Type)
	switch sc.Type {
	case config.SensorSEN0590:
		return distance.NewSEN0590(bus, sink,
			distance.WithAddress(sc.Address),
			distance.WithInterval(sc.Interval()),
			distance.WithCycleTimeout(sc.CycleTimeout()),
		)
	case config.SensorLeafSens:
		return environment.NewLeafSens(bus, sink,
			environment.WithAddress(sc.Address),
			environment.WithInterval(sc.Interval()),
			environment.WithCycleTimeout(sc.CycleTimeout()),
		)
	}
	return nil, fmt.Errorf("unknown sensor type %q", sc.Type)
}

func watchSink(sensor string) sensorloop.Sink {
	return sensorloop.SinkFuncs{
		PublishFunc: func(r sensorloop.Reading) {
			slog.Info("reading", "sensor", sensor, "quantity", r.Quantity.String(), "value", r.Value, "unit", r.Quantity.Unit())
		},
		FaultFunc: func(err error) {
			slog.Warn("measurement fault", "sensor", sensor, "error", err)
		},
	}
}
