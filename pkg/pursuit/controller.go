package pursuit

// PursuitController runs two independent PI loops over a continuous
// tracking error.
//
// The loops integrate differently: the distance integral is a raw running
// sum of samples while the position integral is scaled by dt. Neither
// integral is clamped or reset, so a session that sits off target winds up
// without bound.
type PursuitController struct {
	gains Gains
	state ControllerState
}

// NewPursuitController creates a controller with zeroed integrators.
func NewPursuitController(g Gains) *PursuitController {
	return &PursuitController{gains: g}
}

// Update consumes one error sample and returns the clamped speed and turn rate.
func (c *PursuitController) Update(e TrackingError, dt float64) (speed, turnRate float64) {
	g := c.gains

	// integrators absorb the current sample before the I terms are taken
	c.state.IntegralDistance += e.DistanceError
	speed = g.KpD*e.DistanceError + g.KiD*c.state.IntegralDistance

	c.state.IntegralPosition += e.PositionError * dt
	turnRate = g.KpP*e.PositionError + g.KiP*c.state.IntegralPosition

	speed = clamp(speed, -g.SpeedMax, g.SpeedMax)
	turnRate = clamp(turnRate, -g.TurnMax, g.TurnMax)
	return speed, turnRate
}

// Command runs Update and mixes the result into wheel speeds.
func (c *PursuitController) Command(e TrackingError, dt float64) MotorCommand {
	return Mix(c.Update(e, dt))
}

// State returns a copy of the integrators.
func (c *PursuitController) State() ControllerState {
	return c.state
}
