package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/compass/cmd/compass/console"
	"github.com/mklimuk/compass/lsm303"
)

var magCmd = cli.Command{
	Name:    "magnetometer",
	Aliases: []string{"mag"},
	Usage:   "magnetometer acquisition and configuration",
	Subcommands: cli.Commands{
		&magReadCmd,
		&magWatchCmd,
		&magSetupCmd,
		&magGainCmd,
		&magModeCmd,
	},
}

var magReadCmd = cli.Command{
	Name:  "read",
	Usage: "poll samples in continuous conversion mode",
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
		err = sensor.SetMode(ctx, lsm303.ModeContinuous)
		if err != nil {
			return console.Fail("could not start conversions", err)
		}
		ticker := time.NewTicker(c.Duration("interval"))
		defer ticker.Stop()
		for i := 0; i < c.Int("samples"); i++ {
			if i > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
			sample, err := sensor.ReadMagnetometer(ctx)
			if err != nil {
				return console.Fail("magnetometer read error", err)
			}
			printMag(sample)
		}
		return nil
	},
}

var magWatchCmd = cli.Command{
	Name:  "watch",
	Usage: "acquire samples on the data-ready line",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "single", Aliases: []string{"s"}, Usage: "trigger one conversion at a time"},
		&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Usage: "stop after n samples (0 runs until interrupted)"},
		&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "maximum wait for a sample"},
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
		w := newWatcher(sensor, c.Bool("single"))
		err = w.start(ctx)
		if err != nil {
			return console.Fail("could not arm data-ready line", err)
		}
		count := c.Int("count")
		for n := 0; count == 0 || n < count; n++ {
			sample, err := w.next(ctx, c.Duration("timeout"))
			if ctx.Err() != nil {
				break
			}
			if err != nil {
				return console.Fail("acquisition error", err)
			}
			printMag(sample)
		}
		stop()
		// leave the sensor idle so no conversion is left pending
		_ = sensor.SetMode(context.Background(), lsm303.ModeIdle)
		console.PInfof(console.PictoFinish, "done")
		return nil
	},
}

// watcher turns data-ready callbacks into a stream of samples. In single
// mode every delivered sample arms the next conversion.
type watcher struct {
	sensor  *lsm303.LSM303DLHC
	single  bool
	samples chan result
}

type result struct {
	sample lsm303.MagSample
	err    error
}

func newWatcher(sensor *lsm303.LSM303DLHC, single bool) *watcher {
	return &watcher{sensor: sensor, single: single, samples: make(chan result, 16)}
}

func (w *watcher) start(ctx context.Context) error {
	if w.single {
		return w.sensor.StartSingleShot(ctx, w.deliver)
	}
	return w.sensor.StartContinuous(ctx, w.deliver)
}

func (w *watcher) deliver(sample lsm303.MagSample, err error) {
	select {
	case w.samples <- result{sample: sample, err: err}:
	default:
		console.Warnf("sample dropped")
	}
}

func (w *watcher) next(ctx context.Context, timeout time.Duration) (lsm303.MagSample, error) {
	select {
	case <-ctx.Done():
		return lsm303.MagSample{}, ctx.Err()
	case <-time.After(timeout):
		return lsm303.MagSample{}, fmt.Errorf("no sample within %s", timeout)
	case r := <-w.samples:
		if r.err != nil || !w.single {
			return r.sample, r.err
		}
		return r.sample, w.start(ctx)
	}
}

var magSetupCmd = cli.Command{
	Name:  "setup",
	Usage: "write averaging, output rate and measurement mode",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "averaging", Aliases: []string{"a"}, Usage: "averaged samples code (0-3)"},
		&cli.UintFlag{Name: "rate", Aliases: []string{"r"}, Usage: "output rate code (0-7)"},
		&cli.UintFlag{Name: "measurement", Aliases: []string{"m"}, Usage: "measurement mode code (0-2)"},
	},
	Action: func(c *cli.Context) error {
		ctx := console.Context(c)
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		// flags override the profile
		if c.IsSet("averaging") {
			cfg.Magnetometer.Averaging = byte(c.Uint("averaging"))
		}
		if c.IsSet("rate") {
			cfg.Magnetometer.Rate = byte(c.Uint("rate"))
		}
		if c.IsSet("measurement") {
			cfg.Magnetometer.Measurement = byte(c.Uint("measurement"))
		}
		_, h, err := openSensor(ctx, cfg)
		if err != nil {
			return console.Fail("sensor initialization error", err)
		}
		defer h.Close()
		console.PInfof(console.PictoGear, "averaging %s rate %s measurement %s",
			console.White(cfg.Magnetometer.Averaging), console.White(cfg.Magnetometer.Rate), console.White(cfg.Magnetometer.Measurement))
		return nil
	},
}

var magGainCmd = cli.Command{
	Name:      "gain",
	Usage:     "request a gain code (0-7)",
	ArgsUsage: "<code>",
	Action: func(c *cli.Context) error {
		ctx := console.Context(c)
		code, err := parseCode(c.Args().First(), 7)
		if err != nil {
			return console.Fail("invalid gain", err)
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		sensor, h, err := openSensor(ctx, cfg)
		if err != nil {
			return console.Fail("sensor initialization error", err)
		}
		defer h.Close()
		err = sensor.SetGain(ctx, code)
		if err != nil {
			return console.Fail("could not set gain", err)
		}
		printGain(sensor)
		return nil
	},
}

var magModeCmd = cli.Command{
	Name:      "mode",
	Usage:     "set the conversion mode (0 continuous, 1 single, 2 idle, 3 sleep)",
	ArgsUsage: "<code>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask before stopping conversions"},
	},
	Action: func(c *cli.Context) error {
		ctx := console.Context(c)
		code, err := parseCode(c.Args().First(), 3)
		if err != nil {
			return console.Fail("invalid mode", err)
		}
		mode := lsm303.Mode(code)
		if !c.Bool("yes") {
			ok, err := confirmMode(mode)
			if err != nil || !ok {
				return err
			}
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		sensor, h, err := openSensor(ctx, cfg)
		if err != nil {
			return console.Fail("sensor initialization error", err)
		}
		defer h.Close()
		err = sensor.SetMode(ctx, mode)
		if err != nil {
			return console.Fail("could not set mode", err)
		}
		console.PInfof(console.PictoGear, "mode %s", console.White(sensor.Mode()))
		return nil
	},
}

// confirmMode asks before entering a mode that stops conversions.
func confirmMode(mode lsm303.Mode) (bool, error) {
	if mode != lsm303.ModeIdle && mode != lsm303.ModeSleep {
		return true, nil
	}
	return console.Confirm(fmt.Sprintf("%s %s mode stops conversions until the mode is changed, continue?", console.PictoWarning, mode))
}

func parseCode(arg string, limit byte) (byte, error) {
	if arg == "" {
		return 0, fmt.Errorf("missing code")
	}
	v, err := strconv.ParseUint(arg, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("code %q: %w", arg, err)
	}
	if v > uint64(limit) {
		return 0, fmt.Errorf("code %d out of range 0-%d", v, limit)
	}
	return byte(v), nil
}

func formatMag(s lsm303.MagSample) string {
	res := fmt.Sprintf("%s %s x=%s y=%s z=%s", console.PictoCompass, console.PictoMagnet,
		console.AxisX(fmt.Sprintf("%.2f", s.X)), console.AxisY(fmt.Sprintf("%.2f", s.Y)), console.AxisZ(fmt.Sprintf("%.2f", s.Z)))
	if s.Overflow {
		res += " " + console.Yellow("overflow")
	}
	return res
}

func printMag(s lsm303.MagSample) {
	console.Printf("%s\n", formatMag(s))
}

func printGain(sensor *lsm303.LSM303DLHC) {
	pending := sensor.PendingGain()
	console.PInfof(console.PictoGear, "gain %s (scale %s), pending %s (scale %s)",
		console.White(sensor.Gain()), console.White(lsm303.Scale(sensor.Gain())),
		console.White(pending), console.White(lsm303.Scale(pending)))
}
