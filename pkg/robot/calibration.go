package robot

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// WheelCalibration holds calibration data for a single drive motor.
type WheelCalibration struct {
	Channel  int     `json:"channel" toml:"channel"`
	Inverted bool    `json:"inverted,omitempty" toml:"inverted,omitempty"`
	Trim     float64 `json:"trim,omitempty" toml:"trim,omitempty"`
}

// Calibration holds calibration data for both wheels, keyed by wheel name.
type Calibration map[Wheel]WheelCalibration

// DefaultCalibration maps the left wheel to channel 1 and the right to channel 2.
func DefaultCalibration() Calibration {
	return Calibration{
		LeftWheel:  {Channel: 1, Trim: 1},
		RightWheel: {Channel: 2, Trim: 1},
	}
}

// LoadCalibration loads calibration data from a JSON file.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	var raw map[string]WheelCalibration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse calibration JSON: %w", err)
	}

	cal := make(Calibration, len(raw))
	for name, wc := range raw {
		cal[Wheel(name)] = wc
	}
	return cal, nil
}

// Apply adjusts a mapped output for motor wiring and strength differences.
// Trim outside (0, 1] is treated as 1 so a bad value can never raise the duty.
func (c WheelCalibration) Apply(out WheelOutput) WheelOutput {
	trim := c.Trim
	if trim <= 0 || trim > 1 {
		trim = 1
	}
	out.Duty = int(math.Round(float64(out.Duty) * trim))
	if c.Inverted && out.Duty != 0 {
		if out.Dir == Forward {
			out.Dir = Reverse
		} else {
			out.Dir = Forward
		}
	}
	if out.Duty == 0 {
		out.Dir = Forward
	}
	return out
}

// Validate checks that every wheel has its own positive motor channel.
func (c Calibration) Validate() error {
	var errs []error
	for _, w := range AllWheels() {
		wc, ok := c[w]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownWheel, w))
			continue
		}
		if wc.Channel <= 0 {
			errs = append(errs, fmt.Errorf("%s wheel: invalid channel %d", w, wc.Channel))
			continue
		}
		if owner, _, _ := c.ByChannel(wc.Channel); owner != w {
			errs = append(errs, fmt.Errorf("channel %d assigned to both %s and %s", wc.Channel, owner, w))
		}
	}
	return errors.Join(errs...)
}

// ByChannel returns wheel name and calibration for a given motor channel.
func (c Calibration) ByChannel(ch int) (Wheel, WheelCalibration, bool) {
	for name, wc := range c {
		if wc.Channel == ch {
			return name, wc, true
		}
	}
	return "", WheelCalibration{}, false
}

// SensorCalibration records the clear-channel range seen during setup.
type SensorCalibration struct {
	Dark   int `json:"dark" toml:"dark"`
	Bright int `json:"bright" toml:"bright"`
}

// Threshold returns the midpoint between the darkest and brightest readings.
func (s SensorCalibration) Threshold() int {
	return s.Dark + (s.Bright-s.Dark)/2
}

// Valid reports whether the recorded range is wide enough to separate line from floor.
func (s SensorCalibration) Valid(minSpan int) bool {
	return s.Bright-s.Dark >= minSpan
}

// Normalize maps a raw clear reading to [0, 100], 0 being darkest.
func (s SensorCalibration) Normalize(raw int) float64 {
	span := float64(s.Bright - s.Dark)
	if span == 0 {
		return 0
	}
	return float64(raw-s.Dark) / span * 100
}
