package robot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapper_Map(t *testing.T) {
	tests := []struct {
		name        string
		maxDuty     int
		left, right float64
		want        DriveOutput
	}{
		{
			name:    "opposite directions",
			maxDuty: 1023,
			left:    150, right: -150,
			want: DriveOutput{
				Left:  WheelOutput{Duty: 150, Dir: Forward},
				Right: WheelOutput{Duty: 150, Dir: Reverse},
			},
		},
		{
			name:    "clamped to ceiling",
			maxDuty: 300,
			left:    400, right: 0,
			want: DriveOutput{
				Left:  WheelOutput{Duty: 300, Dir: Forward},
				Right: WheelOutput{Duty: 0, Dir: Forward},
			},
		},
		{
			name:    "reverse clamped",
			maxDuty: 300,
			left:    -1e9, right: -299.6,
			want: DriveOutput{
				Left:  WheelOutput{Duty: 300, Dir: Reverse},
				Right: WheelOutput{Duty: 300, Dir: Reverse},
			},
		},
		{
			name:    "tiny negative rounds to zero forward",
			maxDuty: 100,
			left:    -0.2, right: 42.015,
			want: DriveOutput{
				Left:  WheelOutput{Duty: 0, Dir: Forward},
				Right: WheelOutput{Duty: 42, Dir: Forward},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMapper(tt.maxDuty)
			assert.Equal(t, tt.want, m.Map(tt.left, tt.right))
		})
	}
}

func TestMapper_DefaultCeiling(t *testing.T) {
	m := NewMapper(0)
	assert.Equal(t, DefaultMaxDuty, m.MaxDuty())
	out := m.Map(5000, -5000)
	assert.Equal(t, DefaultMaxDuty, out.Left.Duty)
	assert.Equal(t, DefaultMaxDuty, out.Right.Duty)
}

func TestWheelOutput_Signed(t *testing.T) {
	assert.Equal(t, 12, WheelOutput{Duty: 12, Dir: Forward}.Signed())
	assert.Equal(t, -12, WheelOutput{Duty: 12, Dir: Reverse}.Signed())

	out := DriveOutput{Left: WheelOutput{Duty: 1}, Right: WheelOutput{Duty: 2}}
	assert.Equal(t, 1, out.For(LeftWheel).Duty)
	assert.Equal(t, 2, out.For(RightWheel).Duty)
}

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "forward", Forward.String())
	assert.Equal(t, "reverse", Reverse.String())
}
