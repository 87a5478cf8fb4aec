package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig describes the broker connection and subscription.
type MQTTConfig struct {
	Broker         string
	Topic          string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
}

// MQTTSubscriber feeds a Receiver from an MQTT topic.
type MQTTSubscriber struct {
	cfg    MQTTConfig
	recv   *Receiver
	client mqtt.Client
}

// NewMQTTSubscriber creates an unconnected subscriber.
func NewMQTTSubscriber(cfg MQTTConfig, recv *Receiver) *MQTTSubscriber {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "pursuitbot"
	}
	return &MQTTSubscriber{cfg: cfg, recv: recv}
}

func (s *MQTTSubscriber) clientOptions() (*mqtt.ClientOptions, error) {
	u, err := url.Parse(s.cfg.Broker)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid broker url %q", s.cfg.Broker)
	}
	if s.cfg.Topic == "" {
		return nil, fmt.Errorf("mqtt topic must be set")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetConnectTimeout(s.cfg.ConnectTimeout).
		SetAutoReconnect(true)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	switch u.Scheme {
	case "tls", "ssl", "mqtts":
		opts.SetTLSConfig(&tls.Config{ServerName: u.Hostname()})
	}

	// subscribe on every (re)connect so a dropped session resumes delivery
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		tok := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage)
		if tok.Wait() && tok.Error() != nil {
			s.recv.logf("warning: mqtt subscribe %s: %v", s.cfg.Topic, tok.Error())
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.recv.logf("warning: mqtt connection lost: %v", err)
	})
	return opts, nil
}

// Start connects to the broker. Messages are delivered on paho's goroutines
// and only ever touch the receiver's sink.
func (s *MQTTSubscriber) Start(ctx context.Context) error {
	opts, err := s.clientOptions()
	if err != nil {
		return err
	}
	s.client = mqtt.NewClient(opts)

	tok := s.client.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		s.client.Disconnect(0)
		return ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", s.cfg.Broker, err)
	}
	return nil
}

func (s *MQTTSubscriber) onMessage(_ mqtt.Client, m mqtt.Message) {
	s.recv.Handle(m.Payload())
}

// Close disconnects from the broker. It also ends a reconnect attempt in
// progress, which IsConnected does not report.
func (s *MQTTSubscriber) Close() {
	if s.client != nil {
		s.client.Disconnect(250)
	}
}
