package main

import (
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/compass/cmd/compass/console"
	"github.com/mklimuk/compass/gpio"
)

var expanderCmd = cli.Command{
	Name:  "expander",
	Usage: "MCP23017 carrying the data-ready line",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "expander address, defaults to the profile"},
	},
	Subcommands: cli.Commands{
		&expanderReadCmd,
		&expanderStatusCmd,
	},
}

func openExpander(c *cli.Context) (*gpio.MCP23017, *hardware, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	address := cfg.DataReady.Expander
	if c.IsSet("address") {
		v, err := strconv.ParseUint(c.String("address"), 0, 7)
		if err != nil {
			return nil, nil, console.Fail("invalid address", err)
		}
		address = byte(v)
	}
	// the expander is probed on its own: no data-ready source is opened
	cfg.DataReady.Source = ""
	h, err := openHardware(console.Context(c), cfg)
	if err != nil {
		return nil, nil, console.Fail("bus initialization error", err)
	}
	return gpio.NewMCP23017(h.bus, address, gpio.WithRetryLimit(3)), h, nil
}

var expanderReadCmd = cli.Command{
	Name:  "read",
	Usage: "configure both ports as inputs and read them",
	Action: func(c *cli.Context) error {
		exp, h, err := openExpander(c)
		if err != nil {
			return err
		}
		defer h.Close()
		ctx := console.Context(c)
		for _, port := range []gpio.Port{gpio.PortA, gpio.PortB} {
			err = exp.Init(ctx, port, 0xFF)
			if err != nil {
				return console.Fail("could not initialize expander", err)
			}
		}
		levels, err := exp.Read(ctx)
		if err != nil {
			return console.Fail("could not read expander", err)
		}
		console.PInfof(console.PictoPin, "I/O A: %08b", levels[0])
		console.PInfof(console.PictoPin, "I/O B: %08b", levels[1])
		return nil
	},
}

var expanderStatusCmd = cli.Command{
	Name: "status",
	Action: func(c *cli.Context) error {
		exp, h, err := openExpander(c)
		if err != nil {
			return err
		}
		defer h.Close()
		data, err := exp.ReadSettings(console.Context(c), gpio.PortA)
		if err != nil {
			return console.Fail("could not read settings", err)
		}
		console.PInfof(console.PictoGear, "IOCON content: %#X", data)
		return nil
	},
}
