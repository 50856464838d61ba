package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/compass/cmd/compass/console"
	"github.com/mklimuk/compass/lsm303"
)

var accelCmd = cli.Command{
	Name:    "accelerometer",
	Aliases: []string{"accel"},
	Usage:   "raw accelerometer samples",
	Subcommands: cli.Commands{
		&accelReadCmd,
	},
}

var accelReadCmd = cli.Command{
	Name: "read",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "samples", Aliases: []string{"n"}, Value: 1},
		&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Value: 100 * time.Millisecond},
	},
	Action: func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(console.Context(c), os.Interrupt)
		defer stop()
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		sensor, h, err := openSensor(ctx, cfg)
		if err != nil {
			return console.Fail("sensor initialization error", err)
		}
		defer h.Close()
		for i := 0; i < c.Int("samples"); i++ {
			if i > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(c.Duration("interval")):
				}
			}
			sample, err := sensor.ReadAccelerometer(ctx)
			if err != nil {
				return console.Fail("accelerometer read error", err)
			}
			console.Printf("%s\n", formatAccel(sample))
		}
		return nil
	},
}

func formatAccel(s lsm303.AccelSample) string {
	return fmt.Sprintf("%s x=%s y=%s z=%s", console.PictoArrow,
		console.AxisX(s.X), console.AxisY(s.Y), console.AxisZ(s.Z))
}
