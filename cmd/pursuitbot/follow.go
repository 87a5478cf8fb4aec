package main

import (
	"context"
	"fmt"

	"github.com/gwillem/pursuitbot/pkg/pursuit"
	"github.com/gwillem/pursuitbot/pkg/robot"
	"github.com/gwillem/pursuitbot/pkg/telemetry"
)

type FollowCommand struct {
	RunOptions

	Broker string `long:"broker" description:"MQTT broker URL, e.g. tcp://broker.local:1883"`
	Topic  string `long:"topic" description:"MQTT topic carrying tracking errors"`
	UDP    string `long:"udp" description:"Listen for tracking errors on this UDP address instead of MQTT"`
}

func (c *FollowCommand) Execute(args []string) error {
	return runSession(robot.ModeFollow, c.RunOptions, c.source)
}

func (c *FollowCommand) source(ctx context.Context, cfg *robot.Config, _ *robot.Bridge, _ pursuit.Tuning, logf func(string, ...any)) (pursuit.ErrorSource, func(), error) {
	tc := cfg.Telemetry
	if c.Broker != "" {
		tc.Broker = c.Broker
	}
	if c.Topic != "" {
		tc.Topic = c.Topic
	}
	if c.UDP != "" {
		tc.UDPAddr = c.UDP
	}

	stale, err := tc.StaleAfterDuration()
	if err != nil {
		return nil, nil, fmt.Errorf("parse stale_after: %w", err)
	}
	mailbox := pursuit.NewRemoteTelemetrySignal(stale)

	recv := telemetry.NewReceiver(telemetry.Decoder{
		FrameWidth:  tc.FrameWidth,
		FrameHeight: tc.FrameHeight,
		TargetSize:  tc.TargetSize,
	}, mailbox)
	recv.Logf = logf
	if logf == nil {
		// keep decoder warnings off the dashboard's screen
		recv.Logf = func(string, ...any) {}
	}

	if tc.UDPAddr != "" {
		l, err := telemetry.ListenUDP(ctx, tc.UDPAddr, recv)
		if err != nil {
			return nil, nil, err
		}
		if logf != nil {
			logf("Listening for telemetry on udp %s", l.Addr())
		}
		return mailbox, func() {
			l.Close()
			logStats(recv, logf)
		}, nil
	}

	if tc.Broker == "" {
		return nil, nil, fmt.Errorf("no telemetry transport: set telemetry.broker or telemetry.udp_addr")
	}
	sub := telemetry.NewMQTTSubscriber(telemetry.MQTTConfig{
		Broker:   tc.Broker,
		Topic:    tc.Topic,
		ClientID: tc.ClientID,
		Username: tc.Username,
		Password: tc.Password,
	}, recv)
	if err := sub.Start(ctx); err != nil {
		return nil, nil, err
	}
	if logf != nil {
		logf("Subscribed to %s on %s", tc.Topic, tc.Broker)
	}
	return mailbox, func() {
		sub.Close()
		logStats(recv, logf)
	}, nil
}

func logStats(recv *telemetry.Receiver, logf func(string, ...any)) {
	if logf == nil {
		return
	}
	accepted, dropped := recv.Stats()
	logf("Telemetry: %d accepted, %d dropped", accepted, dropped)
}
