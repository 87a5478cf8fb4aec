package robot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWheelCalibration_Apply(t *testing.T) {
	tests := []struct {
		name string
		cal  WheelCalibration
		in   WheelOutput
		want WheelOutput
	}{
		{"identity", WheelCalibration{Trim: 1}, WheelOutput{100, Forward}, WheelOutput{100, Forward}},
		{"zero trim means full", WheelCalibration{}, WheelOutput{100, Reverse}, WheelOutput{100, Reverse}},
		{"trim scales down", WheelCalibration{Trim: 0.9}, WheelOutput{100, Forward}, WheelOutput{90, Forward}},
		{"trim above one ignored", WheelCalibration{Trim: 2}, WheelOutput{100, Forward}, WheelOutput{100, Forward}},
		{"inverted forward", WheelCalibration{Inverted: true}, WheelOutput{50, Forward}, WheelOutput{50, Reverse}},
		{"inverted reverse", WheelCalibration{Inverted: true}, WheelOutput{50, Reverse}, WheelOutput{50, Forward}},
		{"inverted zero stays forward", WheelCalibration{Inverted: true}, WheelOutput{0, Forward}, WheelOutput{0, Forward}},
	}

	for _, tt := range tests {
		got := tt.cal.Apply(tt.in)
		if got != tt.want {
			t.Errorf("%s: Apply(%+v) = %+v, want %+v", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestCalibration_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cal     Calibration
		wantErr string
	}{
		{"default", DefaultCalibration(), ""},
		{"custom channels", Calibration{LeftWheel: {Channel: 3}, RightWheel: {Channel: 4}}, ""},
		{"missing wheel", Calibration{LeftWheel: {Channel: 1}}, "no calibration: right"},
		{"zero channel", Calibration{LeftWheel: {Channel: 1}, RightWheel: {}}, "invalid channel 0"},
		{"shared channel", Calibration{LeftWheel: {Channel: 2}, RightWheel: {Channel: 2}}, "channel 2 assigned to both"},
	}

	for _, tt := range tests {
		err := tt.cal.Validate()
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("%s: Validate() = %v, want nil", tt.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: Validate() = %v, want error containing %q", tt.name, err, tt.wantErr)
		}
	}
}

func TestCalibration_ByChannel(t *testing.T) {
	cal := DefaultCalibration()

	name, wc, ok := cal.ByChannel(2)
	if !ok {
		t.Fatal("ByChannel(2) returned false")
	}
	if name != RightWheel {
		t.Errorf("ByChannel(2) returned name %s, want right", name)
	}
	if wc.Trim != 1 {
		t.Errorf("ByChannel(2) returned wrong calibration: %+v", wc)
	}

	if _, _, ok := cal.ByChannel(99); ok {
		t.Error("ByChannel(99) should return false")
	}
}

func TestLoadCalibration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wheels.json")
	data := `{"left": {"channel": 2, "inverted": true}, "right": {"channel": 1, "trim": 0.95}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cal, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("LoadCalibration: %v", err)
	}
	if !cal[LeftWheel].Inverted || cal[LeftWheel].Channel != 2 {
		t.Errorf("left = %+v", cal[LeftWheel])
	}
	if cal[RightWheel].Trim != 0.95 {
		t.Errorf("right = %+v", cal[RightWheel])
	}

	if _, err := LoadCalibration(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSensorCalibration(t *testing.T) {
	s := SensorCalibration{Dark: 100, Bright: 400}

	if got := s.Threshold(); got != 250 {
		t.Errorf("Threshold() = %d, want 250", got)
	}
	if !s.Valid(100) {
		t.Error("Valid(100) = false, want true")
	}
	if s.Valid(301) {
		t.Error("Valid(301) = true, want false")
	}

	tests := []struct {
		raw      int
		expected float64
	}{
		{100, 0},
		{400, 100},
		{250, 50},
	}
	for _, tt := range tests {
		if got := s.Normalize(tt.raw); got != tt.expected {
			t.Errorf("Normalize(%d) = %f, want %f", tt.raw, got, tt.expected)
		}
	}

	if got := (SensorCalibration{}).Normalize(10); got != 0 {
		t.Errorf("Normalize on empty range = %f, want 0", got)
	}
}
