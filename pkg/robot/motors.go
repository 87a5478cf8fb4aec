// Package robot provides abstractions for driving a differential-drive robot.
package robot

import (
	"context"
	"errors"
)

// Wheel identifies one side of the drive.
type Wheel string

// Wheels of a differential drive.
const (
	LeftWheel  Wheel = "left"
	RightWheel Wheel = "right"
)

// AllWheels returns all wheels in order (left first, matching default channels 1-2).
func AllWheels() []Wheel {
	return []Wheel{
		LeftWheel,
		RightWheel,
	}
}

// Direction is the rotation sense of a motor.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// ErrActuator is wrapped by actuator failures so callers can escalate to a stop.
var ErrActuator = errors.New("actuator failure")

// Actuator applies duty values to the physical motors.
type Actuator interface {
	// Drive applies a single wheel output.
	Drive(ctx context.Context, wheel Wheel, out WheelOutput) error
	// StopAll zeroes every motor output.
	StopAll(ctx context.Context) error
}
