package robot

import "math"

// DefaultMaxDuty is the PWM ceiling of the reference motor driver (10-bit).
const DefaultMaxDuty = 1023

// WheelOutput is a clamped, unsigned duty with an explicit direction.
type WheelOutput struct {
	Duty int
	Dir  Direction
}

// Signed returns the duty with the direction folded into its sign.
func (o WheelOutput) Signed() int {
	if o.Dir == Reverse {
		return -o.Duty
	}
	return o.Duty
}

// DriveOutput holds the outputs for both wheels.
type DriveOutput struct {
	Left  WheelOutput
	Right WheelOutput
}

// For returns the output for the given wheel.
func (d DriveOutput) For(w Wheel) WheelOutput {
	if w == RightWheel {
		return d.Right
	}
	return d.Left
}

// Mapper converts signed wheel speeds into duty/direction pairs.
type Mapper struct {
	maxDuty int
}

// NewMapper creates a mapper that never emits more than maxDuty.
// A non-positive maxDuty falls back to DefaultMaxDuty.
func NewMapper(maxDuty int) *Mapper {
	if maxDuty <= 0 {
		maxDuty = DefaultMaxDuty
	}
	return &Mapper{maxDuty: maxDuty}
}

// MaxDuty returns the duty ceiling.
func (m *Mapper) MaxDuty() int {
	return m.maxDuty
}

// Map converts signed left/right speeds into wheel outputs.
func (m *Mapper) Map(left, right float64) DriveOutput {
	return DriveOutput{
		Left:  m.wheel(left),
		Right: m.wheel(right),
	}
}

func (m *Mapper) wheel(v float64) WheelOutput {
	dir := Forward
	if v < 0 {
		dir = Reverse
	}
	mag := math.Abs(v)
	if math.IsNaN(mag) {
		mag = 0
	}
	duty := int(math.Round(math.Min(mag, float64(m.maxDuty))))
	if duty == 0 {
		// direction is meaningless at zero duty; keep it deterministic
		dir = Forward
	}
	return WheelOutput{Duty: duty, Dir: dir}
}
