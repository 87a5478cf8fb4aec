package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/pursuitbot/pkg/robot"
)

type Options struct {
	Config string `short:"c" long:"config" description:"Configuration file, .json or .toml (default: pursuitbot.json)"`

	Setup  SetupCommand  `command:"setup" description:"Pick the serial port, check the wheels and calibrate the line sensor"`
	Line   LineCommand   `command:"line" description:"Follow a dark line with the clear-channel sensor"`
	Follow FollowCommand `command:"follow" description:"Chase a target reported by remote vision telemetry"`
	Report ReportCommand `command:"report" description:"Summarise a recorded session and render an HTML chart"`
	Stop   StopCommand   `command:"stop" description:"Send stop-all to the motor bridge"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "pursuitbot - pursuit-and-recovery control for a differential-drive robot"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// loadConfig reads the file named by --config.
func loadConfig() (*robot.Config, error) {
	path := configPath()
	cfg, err := robot.LoadConfigFrom(path)
	if err != nil {
		return nil, fmt.Errorf("load %s (run 'pursuitbot setup' first?): %w", path, err)
	}
	return cfg, nil
}

func configPath() string {
	if opts.Config == "" {
		return robot.DefaultConfigFile
	}
	return opts.Config
}
