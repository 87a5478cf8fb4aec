package main

import (
	"context"
	"log"

	"github.com/gwillem/pursuitbot/pkg/pursuit"
	"github.com/gwillem/pursuitbot/pkg/robot"
)

type LineCommand struct {
	RunOptions

	Threshold int `long:"threshold" description:"Clear-channel cutoff; below it the line is visible (default: calibrated midpoint)"`
}

func (c *LineCommand) Execute(args []string) error {
	return runSession(robot.ModeLine, c.RunOptions, func(_ context.Context, cfg *robot.Config, bridge *robot.Bridge, tuning pursuit.Tuning, logf func(string, ...any)) (pursuit.ErrorSource, func(), error) {
		threshold := tuning.Threshold
		if c.Threshold > 0 {
			threshold = c.Threshold
		}
		if !cfg.IsCalibrated() && c.Threshold <= 0 {
			// always shown, the dashboard hides logf output
			log.Printf("Warning: sensor not calibrated, using default threshold %d (run setup)", threshold)
		}
		if logf != nil {
			logf("Line visible below clear=%d", threshold)
		}
		return pursuit.NewLocalSensorSignal(bridge, threshold), func() {}, nil
	})
}
