package pursuit

import (
	"errors"
	"fmt"
	"time"
)

// Gains configures the two PI loops and their output clamps.
type Gains struct {
	KpD      float64
	KiD      float64
	KpP      float64
	KiP      float64
	SpeedMax float64
	TurnMax  float64
}

// SearchConfig configures the scan pattern used after losing the target.
type SearchConfig struct {
	// ScanSpeedRight drives the left wheel while scanning right.
	ScanSpeedRight float64
	// ScanSpeedLeft drives the right wheel while scanning left.
	ScanSpeedLeft float64
	DwellRight    time.Duration
	DwellLeft     time.Duration
}

// Tuning bundles every constant fixed at startup.
type Tuning struct {
	Gains        Gains
	Search       SearchConfig
	BaseSpeed    float64
	Threshold    int
	TickInterval time.Duration
	// Dt is the integration step of the position loop in seconds.
	Dt float64
}

// DefaultTuning returns the reference tuning of the line follower and the
// vision follower.
func DefaultTuning() Tuning {
	return Tuning{
		Gains: Gains{
			KpD:      2000,
			KiD:      0.5,
			KpP:      0.4,
			KiP:      0.1,
			SpeedMax: 70,
			TurnMax:  29,
		},
		Search: SearchConfig{
			ScanSpeedRight: 100,
			ScanSpeedLeft:  130,
			DwellRight:     3 * time.Second,
			DwellLeft:      10 * time.Second,
		},
		BaseSpeed:    150,
		Threshold:    250,
		TickInterval: 10 * time.Millisecond,
		Dt:           0.01,
	}
}

// Validate checks that the tuning can drive a control session.
func (t Tuning) Validate() error {
	var errs []error
	if t.Gains.SpeedMax <= 0 {
		errs = append(errs, fmt.Errorf("speed max must be > 0, got %v", t.Gains.SpeedMax))
	}
	if t.Gains.TurnMax <= 0 {
		errs = append(errs, fmt.Errorf("turn max must be > 0, got %v", t.Gains.TurnMax))
	}
	if t.Search.DwellRight <= 0 || t.Search.DwellLeft <= 0 {
		errs = append(errs, fmt.Errorf("dwell durations must be > 0, got right=%v left=%v", t.Search.DwellRight, t.Search.DwellLeft))
	}
	if t.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick interval must be > 0, got %v", t.TickInterval))
	}
	if t.Dt <= 0 {
		errs = append(errs, fmt.Errorf("dt must be > 0, got %v", t.Dt))
	}
	return errors.Join(errs...)
}
