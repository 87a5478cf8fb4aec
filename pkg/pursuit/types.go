// Package pursuit implements the target pursuit-and-recovery control core:
// a pair of PI loops for continuous tracking error and a timed scan
// state machine used when a binary sensor loses the target.
package pursuit

import (
	"fmt"
	"time"
)

// TrackingError is one perception sample. DistanceError drives forward
// speed; PositionError drives turning.
type TrackingError struct {
	DistanceError float64
	PositionError float64
	ValidAt       time.Time
}

// ControllerState holds the PI integrators. They persist for the lifetime of
// a PursuitController and are never reset automatically.
type ControllerState struct {
	IntegralDistance float64
	IntegralPosition float64
}

// MotorCommand is a signed per-wheel speed, positive meaning forward.
type MotorCommand struct {
	Left  float64
	Right float64
}

// Stop is the all-zero command.
var Stop = MotorCommand{}

func (c MotorCommand) String() string {
	return fmt.Sprintf("L=%+.2f R=%+.2f", c.Left, c.Right)
}

// Reading is the result of polling an ErrorSource once.
type Reading struct {
	Visible bool
	// Error is only meaningful for continuous sources.
	Error TrackingError
	// Sample is the raw value behind a binary decision, for diagnostics.
	Sample float64
}

// Mix converts speed and turn rate into differential wheel speeds.
// A positive turn rate speeds up the right wheel.
func Mix(speed, turnRate float64) MotorCommand {
	return MotorCommand{
		Left:  speed - turnRate,
		Right: speed + turnRate,
	}
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
