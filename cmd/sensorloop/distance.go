package main

import (
	"context"
	"time"

	"github.com/mklimuk/sensorloop"
	"github.com/mklimuk/sensorloop/cmd/sensorloop/console"
	"github.com/mklimuk/sensorloop/distance"
	"github.com/urfave/cli/v2"
)

var distanceCmd = cli.Command{
	Name:    "distance",
	Aliases: []string{"dist"},
	Usage:   "read the SEN0590 laser ranging sensor once",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Value:   "mcp2221",
		},
		&cli.IntFlag{
			Name:  "address",
			Value: 0x74,
		},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))

		bus, err := newBus(c.String("adapter"), "", 0)
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}
		sink := sensorloop.SinkFuncs{
			PublishFunc: func(r sensorloop.Reading) {
				console.Printf("%s %s %s\n", console.PictoRuler, console.White(r.Value), r.Quantity.Unit())
			},
			FaultFunc: func(err error) {
				console.Errorf("measurement fault: %s", console.Red(err))
			},
		}
		sensor, err := distance.NewSEN0590(bus, sink, distance.WithAddress(byte(c.Int("address"))))
		if err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		err = driveCycle(ctx, sensor, 2*time.Second)
		if err != nil {
			return console.Exit(1, "error getting distance read: %s", console.Red(err))
		}
		return nil
	},
}
