package main

import (
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/compass/adapter"
	"github.com/mklimuk/compass/cmd/compass/console"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "USB bridge maintenance",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "id", Value: -1, Usage: "bridge index when several are attached"},
	},
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
		&mcp2221GPIOCmd,
	},
}

func bridge(c *cli.Context) *adapter.MCP2221 {
	return adapter.NewMCP2221(adapter.WithDeviceID(c.Int("id")))
}

func encode(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	err := enc.Encode(v)
	if err != nil {
		return console.Fail("encoding error", err)
	}
	return nil
}

var mcp2221StatusCmd = cli.Command{
	Name: "status",
	Action: func(c *cli.Context) error {
		status, err := bridge(c).Status(console.Context(c))
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return encode(status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel a stuck I2C transfer",
	Action: func(c *cli.Context) error {
		status, err := bridge(c).ReleaseBus(console.Context(c))
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return encode(status)
	},
}

var mcp2221GPIOCmd = cli.Command{
	Name:  "gpio",
	Usage: "GP line values and power-up settings",
	Subcommands: cli.Commands{
		{
			Name: "read",
			Action: func(c *cli.Context) error {
				values, err := bridge(c).ReadGPIO(console.Context(c))
				if err != nil {
					return console.Fail("adapter communication error", err)
				}
				return encode(values)
			},
		},
		{
			Name: "params",
			Action: func(c *cli.Context) error {
				params, err := bridge(c).GetGPIOParameters(console.Context(c))
				if err != nil {
					return console.Fail("adapter communication error", err)
				}
				return encode(params)
			},
		},
		{
			Name:      "input",
			Usage:     "designate a GP line as GPIO input at power-up",
			ArgsUsage: "<0-3>",
			Action: func(c *cli.Context) error {
				n, err := parseCode(c.Args().First(), 3)
				if err != nil {
					return console.Fail("invalid line", err)
				}
				ctx := console.Context(c)
				dev := bridge(c)
				params, err := dev.GetGPIOParameters(ctx)
				if err != nil {
					return console.Fail("adapter communication error", err)
				}
				modes := []*adapter.GPIOMode{&params.GPIO0Mode, &params.GPIO1Mode, &params.GPIO2Mode, &params.GPIO3Mode}
				designations := []*adapter.GPIODesignation{&params.GPIO0Designation, &params.GPIO1Designation, &params.GPIO2Designation, &params.GPIO3Designation}
				*modes[n] = adapter.GPIOModeIn
				*designations[n] = adapter.GPIOOperation
				err = dev.SetGPIOParameters(ctx, params)
				if err != nil {
					return console.Fail("could not write GP settings", err)
				}
				console.PInfof(console.PictoPlug, "GP%d is a GPIO input after the next power-up", n)
				return nil
			},
		},
	},
}
