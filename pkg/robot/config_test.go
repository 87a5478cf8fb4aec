package robot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/pursuitbot/pkg/pursuit"
)

func TestConfig_SaveLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.json")

	cfg := DefaultConfig()
	cfg.Port = "/dev/ttyUSB0"
	cfg.Mode = ModeFollow
	cfg.Sensor = SensorCalibration{Dark: 80, Bright: 420}
	cfg.Tuning.DwellLeft = "9s"
	require.NoError(t, cfg.SaveTo(path))

	got, err := LoadConfigFrom(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_SaveLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.toml")

	cfg := DefaultConfig()
	cfg.Port = "/dev/ttyACM0"
	cfg.Telemetry.Broker = "tls://broker.example:8883"
	cfg.Calibration[RightWheel] = WheelCalibration{Channel: 2, Inverted: true, Trim: 0.9}
	require.NoError(t, cfg.SaveTo(path))

	got, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", got.Port)
	assert.Equal(t, "tls://broker.example:8883", got.Telemetry.Broker)
	assert.Equal(t, WheelCalibration{Channel: 2, Inverted: true, Trim: 0.9}, got.Calibration[RightWheel])
}

func TestConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": "/dev/ttyS1"}`), 0644))

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, ModeLine, cfg.Mode)
	assert.Equal(t, DefaultMaxDuty, cfg.MaxDuty)
	assert.Equal(t, DefaultCalibration(), cfg.Calibration)
	assert.False(t, cfg.IsCalibrated())
}

func TestConfig_LoadErrors(t *testing.T) {
	_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))
	_, err = LoadConfigFrom(path)
	assert.Error(t, err)
}

func TestConfig_ResolveTuning(t *testing.T) {
	cfg := DefaultConfig()

	got, err := cfg.ResolveTuning()
	require.NoError(t, err)
	assert.Equal(t, pursuit.DefaultTuning(), got)

	cfg.Tuning = TuningConfig{
		KpD:          float(1000),
		SpeedMax:     float(50),
		DwellRight:   "1500ms",
		TickInterval: "20ms",
	}
	cfg.Sensor = SensorCalibration{Dark: 100, Bright: 300}

	got, err = cfg.ResolveTuning()
	require.NoError(t, err)
	assert.Equal(t, 1000.0, got.Gains.KpD)
	assert.Equal(t, 0.5, got.Gains.KiD)
	assert.Equal(t, 50.0, got.Gains.SpeedMax)
	assert.Equal(t, 1500*time.Millisecond, got.Search.DwellRight)
	assert.Equal(t, 10*time.Second, got.Search.DwellLeft)
	assert.Equal(t, 20*time.Millisecond, got.TickInterval)
	assert.Equal(t, 200, got.Threshold)
}

func TestConfig_ResolveTuningExplicitZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tuning":{"ki_d":0,"ki_p":0,"scan_speed_left":0}}`), 0644))

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	got, err := cfg.ResolveTuning()
	require.NoError(t, err)

	assert.Zero(t, got.Gains.KiD)
	assert.Zero(t, got.Gains.KiP)
	assert.Zero(t, got.Search.ScanSpeedLeft)
	// untouched fields keep the defaults
	assert.Equal(t, 2000.0, got.Gains.KpD)
	assert.Equal(t, 100.0, got.Search.ScanSpeedRight)
}

func TestConfig_ExplicitZeroSurvivesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.toml")
	cfg := DefaultConfig()
	cfg.Tuning.KiD = float(0)
	require.NoError(t, cfg.SaveTo(path))

	got, err := LoadConfigFrom(path)
	require.NoError(t, err)
	require.NotNil(t, got.Tuning.KiD)
	assert.Zero(t, *got.Tuning.KiD)
	assert.Nil(t, got.Tuning.KpD)
}

func TestConfig_ResolveTuningErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tuning.DwellLeft = "soon"
	_, err := cfg.ResolveTuning()
	assert.ErrorContains(t, err, "dwell_left")

	cfg = DefaultConfig()
	cfg.Tuning.TickInterval = "-5ms"
	_, err = cfg.ResolveTuning()
	assert.ErrorContains(t, err, "invalid tuning")

	cfg = DefaultConfig()
	cfg.Tuning.SpeedMax = float(0)
	_, err = cfg.ResolveTuning()
	assert.ErrorContains(t, err, "speed max")
}

func float(v float64) *float64 { return &v }

func TestTelemetryConfig_StaleAfter(t *testing.T) {
	d, err := TelemetryConfig{}.StaleAfterDuration()
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = TelemetryConfig{StaleAfter: "750ms"}.StaleAfterDuration()
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, d)
}

func TestPortOptions_Normalize(t *testing.T) {
	got, err := PortOptions{Parity: "even", StopBits: 2}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 2, Parity: "E", Timeout: "100ms"}, got)

	for _, bad := range []PortOptions{
		{DataBits: 9},
		{StopBits: 3},
		{Parity: "mark"},
		{Timeout: "fast"},
	} {
		_, err := bad.Normalize()
		assert.Error(t, err, "%+v", bad)
	}

	mode, err := PortOptions{Parity: "O"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 115200, mode.BaudRate)
}
