package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/sensorcore/adapter"
)

var usbCmd = cli.Command{
	Name:  "usb",
	Usage: "list HID devices and known bridge adapters",
	Subcommands: cli.Commands{
		&usbLsCmd,
		&usbDetectCmd,
	},
}

var usbLsCmd = cli.Command{
	Name:  "ls",
	Usage: "list HID devices",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "vendor", Usage: "only devices of this vendor id (0 for all)"},
	},
	Action: func(c *cli.Context) error {
		if !hid.Supported() {
			return fmt.Errorf("HID enumeration not supported by this build")
		}
		printHID(hid.Enumerate(uint16(c.Uint("vendor")), 0), false)
		return nil
	},
}

var usbDetectCmd = cli.Command{
	Name:  "detect",
	Usage: "list attached MCP2221 adapters with the id the mcp2221 command takes",
	Action: func(c *cli.Context) error {
		printHID(adapter.Devices(), true)
		return nil
	},
}

func printHID(devices []hid.DeviceInfo, indexed bool) {
	w := tabwriter.NewWriter(os.Stdout, 8, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()
	if indexed {
		_, _ = fmt.Fprint(w, "ID\t")
	}
	_, _ = fmt.Fprintln(w, "VENDOR\tPRODUCT\tSERIAL\tMANUFACTURER\tNAME\tPATH")
	for i, dev := range devices {
		if indexed {
			_, _ = fmt.Fprintf(w, "%d\t", i)
		}
		_, _ = fmt.Fprintf(w, "%#04x\t%#04x\t%s\t%s\t%s\t%s\n",
			dev.VendorID, dev.ProductID, dev.Serial, dev.Manufacturer, dev.Product, dev.Path)
	}
}
