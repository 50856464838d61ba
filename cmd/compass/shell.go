package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/compass/cmd/compass/console"
	"github.com/mklimuk/compass/lsm303"
)

var shellCmd = cli.Command{
	Name:  "shell",
	Usage: "interactive sensor session",
	Action: func(c *cli.Context) error {
		ctx := console.Context(c)
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		sensor, h, err := openSensor(ctx, cfg)
		if err != nil {
			return console.Fail("sensor initialization error", err)
		}
		defer h.Close()
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          console.Cyan("compass> "),
			AutoComplete:    shellCompleter,
			InterruptPrompt: "^C",
			EOFPrompt:       "quit",
		})
		if err != nil {
			return console.Fail("could not start shell", err)
		}
		defer rl.Close()
		console.PInfof(console.PictoCompass, "type %s for commands", console.Bold("help"))
		s := &shell{sensor: sensor, confirm: confirmMode}
		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return console.Fail("shell input error", err)
			}
			cmd, err := parseShellCommand(line)
			if err != nil {
				console.Errorf("%s", err)
				continue
			}
			if cmd.name == "quit" {
				return nil
			}
			err = s.execute(ctx, cmd)
			if err != nil {
				console.Errorf("%s", err)
			}
		}
	},
}

var shellCompleter = readline.NewPrefixCompleter(
	readline.PcItem("read"),
	readline.PcItem("acc"),
	readline.PcItem("gain"),
	readline.PcItem("mode"),
	readline.PcItem("setup"),
	readline.PcItem("status"),
	readline.PcItem("help"),
	readline.PcItem("quit"),
)

const shellHelp = `read                  read one magnetometer sample
acc                   read one accelerometer sample
gain N                request gain code N (0-7)
mode N                set conversion mode N (0-3)
setup A [R] [M]       write averaging A, output rate R and measurement M
status                show gain and mode
quit                  leave the shell`

type shellCommand struct {
	name string
	args []byte
}

// argument limits per command; a missing entry takes no arguments
var shellArgs = map[string]struct {
	min, max int
	limits   []byte
}{
	"gain":  {1, 1, []byte{7}},
	"mode":  {1, 1, []byte{3}},
	"setup": {1, 3, []byte{3, 7, 2}},
}

func parseShellCommand(line string) (shellCommand, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return shellCommand{name: "nop"}, nil
	}
	cmd := shellCommand{name: strings.ToLower(fields[0])}
	args := fields[1:]
	switch cmd.name {
	case "exit", "q":
		cmd.name = "quit"
	case "r":
		cmd.name = "read"
	case "a":
		cmd.name = "acc"
	}
	rule, ok := shellArgs[cmd.name]
	switch {
	case !ok && len(args) > 0:
		return cmd, fmt.Errorf("%s takes no arguments", cmd.name)
	case !ok:
		return cmd, nil
	case len(args) < rule.min || len(args) > rule.max:
		return cmd, fmt.Errorf("%s takes %d to %d arguments", cmd.name, rule.min, rule.max)
	}
	for i, arg := range args {
		v, err := parseCode(arg, rule.limits[i])
		if err != nil {
			return cmd, fmt.Errorf("%s: %w", cmd.name, err)
		}
		cmd.args = append(cmd.args, v)
	}
	return cmd, nil
}

type shell struct {
	sensor  *lsm303.LSM303DLHC
	confirm func(lsm303.Mode) (bool, error)
}

func (s *shell) execute(ctx context.Context, cmd shellCommand) error {
	switch cmd.name {
	case "nop":
		return nil
	case "help":
		console.Printf("%s\n", shellHelp)
	case "read":
		sample, err := s.sensor.ReadMagnetometer(ctx)
		if err != nil {
			return err
		}
		printMag(sample)
	case "acc":
		sample, err := s.sensor.ReadAccelerometer(ctx)
		if err != nil {
			return err
		}
		console.Printf("%s\n", formatAccel(sample))
	case "gain":
		err := s.sensor.SetGain(ctx, cmd.args[0])
		if err != nil {
			return err
		}
		printGain(s.sensor)
	case "mode":
		mode := lsm303.Mode(cmd.args[0])
		ok, err := s.confirm(mode)
		if err != nil || !ok {
			return err
		}
		err = s.sensor.SetMode(ctx, mode)
		if err != nil {
			return err
		}
		console.PInfof(console.PictoGear, "mode %s", console.White(s.sensor.Mode()))
	case "setup":
		opts := []lsm303.SetupOption{}
		if len(cmd.args) > 1 {
			opts = append(opts, lsm303.WithOutputRate(cmd.args[1]))
		}
		if len(cmd.args) > 2 {
			opts = append(opts, lsm303.WithMeasurementMode(cmd.args[2]))
		}
		return s.sensor.Setup(ctx, cmd.args[0], opts...)
	case "status":
		printGain(s.sensor)
		console.PInfof(console.PictoGear, "mode %s", console.White(s.sensor.Mode()))
	default:
		return fmt.Errorf("unknown command %q, type help", cmd.name)
	}
	return nil
}
