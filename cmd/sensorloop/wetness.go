package main

import (
	"context"
	"time"

	"github.com/mklimuk/sensorloop"
	"github.com/mklimuk/sensorloop/cmd/sensorloop/console"
	"github.com/mklimuk/sensorloop/environment"
	"github.com/urfave/cli/v2"
)

var wetnessCmd = cli.Command{
	Name:    "wetness",
	Aliases: []string{"wet"},
	Usage:   "read the Tinovi leaf wetness sensor once",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Value:   "mcp2221",
		},
		&cli.IntFlag{
			Name:  "address",
			Value: 0x61,
		},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Subcommands: cli.Commands{
		&wetnessCalibrateCmd,
	},
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))

		sensor, err := newLeafSens(c)
		if err != nil {
			return err
		}
		err = driveCycle(ctx, sensor, 3*time.Second)
		if err != nil {
			return console.Exit(1, "error getting wetness read: %s", console.Red(err))
		}
		return nil
	},
}

var wetnessCalibrateCmd = cli.Command{
	Name:  "calibrate",
	Usage: "store the dry (air) or wet (water) calibration reference",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Value:   "mcp2221",
		},
		&cli.IntFlag{
			Name:  "address",
			Value: 0x61,
		},
		&cli.BoolFlag{
			Name:  "water",
			Usage: "store the wet reference instead of the dry one",
		},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))

		point := "dry (air)"
		if c.Bool("water") {
			point = "wet (water)"
		}
		answer, err := console.YesOrNo("store the " + point + " calibration reference now?")
		if err != nil {
			return console.Exit(1, "prompt error: %s", console.Red(err))
		}
		if answer != console.Yes {
			console.PInfof(console.PictoStop, "calibration aborted")
			return nil
		}

		sensor, err := newLeafSens(c)
		if err != nil {
			return err
		}
		if c.Bool("water") {
			err = sensor.CalibrateWater(ctx)
		} else {
			err = sensor.CalibrateAir(ctx)
		}
		if err != nil {
			return console.Exit(1, "calibration error: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "%s reference stored", point)
		return nil
	},
}

func newLeafSens(c *cli.Context) (*environment.LeafSens, error) {
	bus, err := newBus(c.String("adapter"), "", 0)
	if err != nil {
		return nil, console.Exit(1, "adapter initialization error: %s", console.Red(err))
	}
	sink := sensorloop.SinkFuncs{
		PublishFunc: func(r sensorloop.Reading) {
			switch r.Quantity {
			case sensorloop.QuantityWetness:
				console.Printf("%s %s %s\n", console.PictoHumidity, console.White(r.Value), r.Quantity.Unit())
			case sensorloop.QuantityTemperature:
				console.Printf("%s  %s %s\n", console.PictoThermometer, console.White(r.Value), r.Quantity.Unit())
			}
		},
		FaultFunc: func(err error) {
			console.Errorf("measurement fault: %s", console.Red(err))
		},
	}
	sensor, err := environment.NewLeafSens(bus, sink, environment.WithAddress(byte(c.Int("address"))))
	if err != nil {
		return nil, console.Exit(1, "sensor initialization error: %s", console.Red(err))
	}
	return sensor, nil
}
