package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gwillem/pursuitbot/pkg/pilot"
	"github.com/gwillem/pursuitbot/pkg/pursuit"
	"github.com/gwillem/pursuitbot/pkg/recorder"
	"github.com/gwillem/pursuitbot/pkg/robot"
)

// RunOptions are shared by the driving commands and override the config file.
type RunOptions struct {
	Port        string `short:"p" long:"port" description:"Serial port of the motor bridge"`
	Calibration string `long:"calibration" description:"Wheel calibration JSON file"`
	MaxDuty     int    `long:"max-duty" description:"Duty ceiling of the motor driver"`
	TUI         bool   `long:"tui" description:"Show the live dashboard"`
	Record      string `long:"record" description:"Record every tick to this SQLite database"`
	Notes       string `long:"notes" description:"Free-form notes stored with the recorded session"`
}

// sourceFactory builds the error source for a session. The returned cleanup
// runs after the control loop has stopped.
type sourceFactory func(ctx context.Context, cfg *robot.Config, bridge *robot.Bridge, tuning pursuit.Tuning, logf func(string, ...any)) (pursuit.ErrorSource, func(), error)

// apply merges flag overrides into cfg.
func (o RunOptions) apply(cfg *robot.Config) error {
	if o.Port != "" {
		cfg.Port = o.Port
	}
	if o.Calibration != "" {
		cal, err := robot.LoadCalibration(o.Calibration)
		if err != nil {
			return err
		}
		cfg.Calibration = cal
	}
	if o.MaxDuty > 0 {
		cfg.MaxDuty = o.MaxDuty
	}
	if o.Record != "" {
		cfg.Recorder.Path = o.Record
	}
	if cfg.Port == "" {
		return fmt.Errorf("no serial port configured; pass --port or run 'pursuitbot setup'")
	}
	return nil
}

func runSession(mode string, o RunOptions, build sourceFactory) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := o.apply(cfg); err != nil {
		return err
	}
	cfg.Mode = mode

	tuning, err := cfg.ResolveTuning()
	if err != nil {
		return err
	}

	// The dashboard owns the terminal; log lines reach it through Logs().
	var logf func(string, ...any)
	if !o.TUI {
		logf = log.Printf
	}

	bridge, err := robot.OpenBridge(cfg.Port, cfg.Serial, cfg.Calibration)
	if err != nil {
		return err
	}
	defer bridge.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, cleanup, err := build(ctx, cfg, bridge, tuning, logf)
	if err != nil {
		bridge.StopAll(context.Background())
		return err
	}
	defer cleanup()

	var rec *recorder.Recorder
	if cfg.Recorder.Path != "" {
		rec, err = recorder.Open(cfg.Recorder.Path)
		if err != nil {
			return err
		}
		defer rec.Close()
		id, err := rec.StartSession(mode, o.Notes)
		if err != nil {
			return err
		}
		if logf != nil {
			logf("Recording session %s to %s", id, cfg.Recorder.Path)
		}
	}

	pcfg := pilot.Config{
		Source:   source,
		Actuator: bridge,
		Tuning:   tuning,
		MaxDuty:  cfg.MaxDuty,
		Logf:     logf,
	}
	if rec != nil {
		pcfg.Recorder = rec
	}
	ctrl, err := pilot.NewController(pcfg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if !o.TUI {
		log.Printf("Running %s mode on %s, ctrl+c to stop", mode, cfg.Port)
		return ignoreCanceled(ctrl.Start(ctx))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ctrl.Start(ctx) }()

	p := tea.NewProgram(newDashboard(ctrl, mode, cancel), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("dashboard: %w", err)
	}
	cancel()
	return ignoreCanceled(<-done)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
