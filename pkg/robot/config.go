package robot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gwillem/pursuitbot/pkg/pursuit"
)

const DefaultConfigFile = "pursuitbot.json"

// Drive modes selectable at startup.
const (
	ModeLine   = "line"
	ModeFollow = "follow"
)

// Config holds the robot configuration
type Config struct {
	Port        string            `json:"port" toml:"port"`
	Serial      PortOptions       `json:"serial" toml:"serial"`
	Mode        string            `json:"mode" toml:"mode"`
	MaxDuty     int               `json:"max_duty,omitempty" toml:"max_duty,omitempty"`
	Tuning      TuningConfig      `json:"tuning" toml:"tuning"`
	Calibration Calibration       `json:"calibration,omitempty" toml:"calibration,omitempty"`
	Sensor      SensorCalibration `json:"sensor" toml:"sensor"`
	Telemetry   TelemetryConfig   `json:"telemetry" toml:"telemetry"`
	Recorder    RecorderConfig    `json:"recorder" toml:"recorder"`
}

// TuningConfig is the on-disk form of pursuit.Tuning. Absent fields keep the
// reference defaults while an explicit zero is honoured; durations are Go
// duration strings like "3s".
type TuningConfig struct {
	KpD            *float64 `json:"kp_d,omitempty" toml:"kp_d,omitempty"`
	KiD            *float64 `json:"ki_d,omitempty" toml:"ki_d,omitempty"`
	KpP            *float64 `json:"kp_p,omitempty" toml:"kp_p,omitempty"`
	KiP            *float64 `json:"ki_p,omitempty" toml:"ki_p,omitempty"`
	SpeedMax       *float64 `json:"speed_max,omitempty" toml:"speed_max,omitempty"`
	TurnMax        *float64 `json:"turn_max,omitempty" toml:"turn_max,omitempty"`
	BaseSpeed      *float64 `json:"base_speed,omitempty" toml:"base_speed,omitempty"`
	ScanSpeedRight *float64 `json:"scan_speed_right,omitempty" toml:"scan_speed_right,omitempty"`
	ScanSpeedLeft  *float64 `json:"scan_speed_left,omitempty" toml:"scan_speed_left,omitempty"`
	DwellRight     string   `json:"dwell_right,omitempty" toml:"dwell_right,omitempty"`
	DwellLeft      string   `json:"dwell_left,omitempty" toml:"dwell_left,omitempty"`
	TickInterval   string   `json:"tick_interval,omitempty" toml:"tick_interval,omitempty"`
	Dt             *float64 `json:"dt,omitempty" toml:"dt,omitempty"`
}

// TelemetryConfig selects and configures the remote error transport.
type TelemetryConfig struct {
	Broker     string `json:"broker,omitempty" toml:"broker,omitempty"`
	Topic      string `json:"topic,omitempty" toml:"topic,omitempty"`
	ClientID   string `json:"client_id,omitempty" toml:"client_id,omitempty"`
	Username   string `json:"username,omitempty" toml:"username,omitempty"`
	Password   string `json:"password,omitempty" toml:"password,omitempty"`
	UDPAddr    string `json:"udp_addr,omitempty" toml:"udp_addr,omitempty"`
	StaleAfter string `json:"stale_after,omitempty" toml:"stale_after,omitempty"`

	// Frame geometry enables decoding raw centroid messages.
	FrameWidth  float64 `json:"frame_width,omitempty" toml:"frame_width,omitempty"`
	FrameHeight float64 `json:"frame_height,omitempty" toml:"frame_height,omitempty"`
	TargetSize  float64 `json:"target_size,omitempty" toml:"target_size,omitempty"`
}

// RecorderConfig points at the session database; empty disables recording.
type RecorderConfig struct {
	Path string `json:"path,omitempty" toml:"path,omitempty"`
}

// DefaultConfig returns a configuration with the reference tuning.
func DefaultConfig() *Config {
	return &Config{
		Mode:        ModeLine,
		MaxDuty:     DefaultMaxDuty,
		Calibration: DefaultCalibration(),
		Telemetry: TelemetryConfig{
			Topic:    "/ME35/1",
			ClientID: "pursuitbot",
		},
	}
}

// IsCalibrated returns true if the sensor range has been recorded
func (c *Config) IsCalibrated() bool {
	return c.Sensor.Bright > c.Sensor.Dark
}

// ResolveTuning merges the configured values over pursuit.DefaultTuning and validates the result.
func (c *Config) ResolveTuning() (pursuit.Tuning, error) {
	t := pursuit.DefaultTuning()
	tc := c.Tuning

	setF := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setF(&t.Gains.KpD, tc.KpD)
	setF(&t.Gains.KiD, tc.KiD)
	setF(&t.Gains.KpP, tc.KpP)
	setF(&t.Gains.KiP, tc.KiP)
	setF(&t.Gains.SpeedMax, tc.SpeedMax)
	setF(&t.Gains.TurnMax, tc.TurnMax)
	setF(&t.BaseSpeed, tc.BaseSpeed)
	setF(&t.Search.ScanSpeedRight, tc.ScanSpeedRight)
	setF(&t.Search.ScanSpeedLeft, tc.ScanSpeedLeft)
	setF(&t.Dt, tc.Dt)

	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"dwell_right", tc.DwellRight, &t.Search.DwellRight},
		{"dwell_left", tc.DwellLeft, &t.Search.DwellLeft},
		{"tick_interval", tc.TickInterval, &t.TickInterval},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return t, fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = v
	}

	if c.Sensor.Bright > c.Sensor.Dark {
		t.Threshold = c.Sensor.Threshold()
	}

	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("invalid tuning: %w", err)
	}
	return t, nil
}

// StaleAfterDuration parses the telemetry staleness cutoff; zero disables it.
func (t TelemetryConfig) StaleAfterDuration() (time.Duration, error) {
	if t.StaleAfter == "" {
		return 0, nil
	}
	return time.ParseDuration(t.StaleAfter)
}

// LoadConfigFrom loads configuration from a specific file. Files ending in
// .toml are decoded as TOML, everything else as JSON.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	if isTOML(path) {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := toml.NewEncoder(f).Encode(c); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if a config file exists at path
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
