package pursuit

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPursuitController_FirstTick(t *testing.T) {
	c := NewPursuitController(Gains{KpD: 2000, KiD: 0.5, KpP: 0.4, KiP: 0.1, SpeedMax: 70, TurnMax: 29})

	speed, turn := c.Update(TrackingError{DistanceError: 0.02, PositionError: -5}, 0.01)

	assert.InDelta(t, 40.01, speed, 1e-9)
	assert.InDelta(t, -2.005, turn, 1e-9)

	cmd := Mix(speed, turn)
	assert.InDelta(t, 42.015, cmd.Left, 1e-9)
	assert.InDelta(t, 38.005, cmd.Right, 1e-9)
}

func TestPursuitController_ClampBounds(t *testing.T) {
	g := DefaultTuning().Gains
	c := NewPursuitController(g)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 5000; i++ {
		e := TrackingError{
			DistanceError: rng.Float64()*2000 - 1000,
			PositionError: rng.Float64()*2000 - 1000,
		}
		speed, turn := c.Update(e, 0.01)
		require.GreaterOrEqual(t, speed, -g.SpeedMax)
		require.LessOrEqual(t, speed, g.SpeedMax)
		require.GreaterOrEqual(t, turn, -g.TurnMax)
		require.LessOrEqual(t, turn, g.TurnMax)
	}
}

func TestPursuitController_ClampExtremes(t *testing.T) {
	tests := []struct {
		name      string
		e         TrackingError
		wantSpeed float64
		wantTurn  float64
	}{
		{"far ahead, far left", TrackingError{DistanceError: 1000, PositionError: 1000}, 70, 29},
		{"too close, far right", TrackingError{DistanceError: -1000, PositionError: -1000}, -70, -29},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewPursuitController(DefaultTuning().Gains)
			speed, turn := c.Update(tt.e, 0.01)
			assert.Equal(t, tt.wantSpeed, speed)
			assert.Equal(t, tt.wantTurn, turn)
		})
	}
}

func TestPursuitController_IntegralWindup(t *testing.T) {
	c := NewPursuitController(DefaultTuning().Gains)
	e := TrackingError{DistanceError: 0.5, PositionError: 3}

	prev := c.State()
	for i := 0; i < 10000; i++ {
		c.Update(e, 0.01)
		s := c.State()
		require.Greater(t, s.IntegralDistance, prev.IntegralDistance, "tick %d", i)
		require.Greater(t, s.IntegralPosition, prev.IntegralPosition, "tick %d", i)
		prev = s
	}

	// no anti-windup: the sums keep growing linearly, well past any clamp
	assert.InDelta(t, 5000, prev.IntegralDistance, 1e-6)
	assert.InDelta(t, 300, prev.IntegralPosition, 1e-6)
}

func TestPursuitController_IntegralScaling(t *testing.T) {
	c := NewPursuitController(Gains{SpeedMax: 1, TurnMax: 1})

	c.Update(TrackingError{DistanceError: 2, PositionError: 2}, 0.5)
	c.Update(TrackingError{DistanceError: 2, PositionError: 2}, 0.25)

	s := c.State()
	// distance integral ignores dt, position integral is dt-scaled
	assert.Equal(t, 4.0, s.IntegralDistance)
	assert.Equal(t, 1.5, s.IntegralPosition)
}

func TestPursuitController_Command(t *testing.T) {
	c := NewPursuitController(Gains{KpD: 1, KpP: 1, SpeedMax: 100, TurnMax: 100})
	cmd := c.Command(TrackingError{DistanceError: 10, PositionError: 4}, 0.01)
	assert.Equal(t, MotorCommand{Left: 6, Right: 14}, cmd)
}

func TestMix(t *testing.T) {
	tests := []struct {
		speed, turn float64
		want        MotorCommand
	}{
		{0, 0, MotorCommand{}},
		{50, 0, MotorCommand{Left: 50, Right: 50}},
		{0, 20, MotorCommand{Left: -20, Right: 20}},
		{30, -10, MotorCommand{Left: 40, Right: 20}},
	}

	for _, tt := range tests {
		got := Mix(tt.speed, tt.turn)
		if got != tt.want {
			t.Errorf("Mix(%v, %v) = %v, want %v", tt.speed, tt.turn, got, tt.want)
		}
	}
}
