package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gwillem/pursuitbot/pkg/robot"
)

type StopCommand struct {
	Port string `short:"p" long:"port" description:"Serial port of the motor bridge (default: from config)"`
}

func (c *StopCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		if c.Port == "" {
			return err
		}
		cfg = robot.DefaultConfig()
	}
	if c.Port != "" {
		cfg.Port = c.Port
	}
	if cfg.Port == "" {
		return fmt.Errorf("no serial port configured; pass --port")
	}
	port := cfg.Port

	bridge, err := robot.OpenBridge(port, cfg.Serial, cfg.Calibration)
	if err != nil {
		return err
	}
	defer bridge.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := bridge.StopAll(ctx); err != nil {
		return err
	}
	fmt.Printf("Motors on %s stopped.\n", port)
	return nil
}
