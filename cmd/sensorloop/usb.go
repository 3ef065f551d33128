package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mklimuk/sensorloop/adapter"
	"github.com/mklimuk/sensorloop/cmd/sensorloop/console"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"
)

var usbCmd = cli.Command{
	Name: "usb",
	Subcommands: cli.Commands{
		&usbLsCmd,
		&usbDetectCmd,
	},
}

var usbLsCmd = cli.Command{
	Name: "ls",
	Action: func(c *cli.Context) error {
		devices := hid.Enumerate(0, 0)

		w := tabwriter.NewWriter(os.Stdout, 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "PATH\tSERIAL\tVENDOR\tPRODUCT ID\tMANUFACTURER\tPRODUCT\n")
		for _, dev := range devices {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%#x\t%#x\t%s\t%s\n",
				dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Manufacturer, dev.Product)
		}
		return w.Flush()
	},
}

var usbDetectCmd = cli.Command{
	Name: "detect",
	Action: func(c *cli.Context) error {
		for _, dev := range hid.Enumerate(adapter.VendorID, adapter.ProductID) {
			console.Printf("found MCP2221 adapter at %s (serial %q)\n", dev.Path, dev.Serial)
			return nil
		}
		console.Warn("no MCP2221 adapter found")
		return nil
	},
}
