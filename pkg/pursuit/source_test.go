package pursuit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSensor struct {
	value int
	err   error
}

func (s stubSensor) ReadClear(context.Context) (int, error) {
	return s.value, s.err
}

func TestLocalSensorSignal_Threshold(t *testing.T) {
	tests := []struct {
		clear   int
		visible bool
	}{
		{0, true},
		{249, true},
		{250, false},
		{900, false},
	}

	for _, tt := range tests {
		src := NewLocalSensorSignal(stubSensor{value: tt.clear}, 250)
		r, err := src.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tt.visible, r.Visible, "clear=%d", tt.clear)
		assert.Equal(t, float64(tt.clear), r.Sample)
	}
}

func TestLocalSensorSignal_ReadFailure(t *testing.T) {
	busErr := errors.New("i2c nack")
	src := NewLocalSensorSignal(stubSensor{err: busErr}, 250)

	_, err := src.Poll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSensorUnavailable)
	assert.ErrorIs(t, err, busErr)
	assert.Equal(t, SourceBinary, src.Kind())
}

func TestRemoteTelemetrySignal_LostUntilFirstDeposit(t *testing.T) {
	src := NewRemoteTelemetrySignal(0)
	assert.Equal(t, SourceContinuous, src.Kind())

	r, err := src.Poll(context.Background())
	require.NoError(t, err)
	assert.False(t, r.Visible)

	src.Deposit(TrackingError{DistanceError: 0.02, PositionError: -5})
	r, err = src.Poll(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Visible)
	assert.Equal(t, 0.02, r.Error.DistanceError)
	assert.Equal(t, -5.0, r.Error.PositionError)
	assert.False(t, r.Error.ValidAt.IsZero())
	assert.Equal(t, uint64(1), src.Deposits())
}

func TestRemoteTelemetrySignal_LastWriteWins(t *testing.T) {
	src := NewRemoteTelemetrySignal(0)
	src.Deposit(TrackingError{DistanceError: 1})
	src.Deposit(TrackingError{DistanceError: 2})

	r, err := src.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, r.Error.DistanceError)

	// polling again without a new deposit keeps returning the same value
	r, err = src.Poll(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Visible)
	assert.Equal(t, 2.0, r.Error.DistanceError)
}

func TestRemoteTelemetrySignal_Staleness(t *testing.T) {
	now := time.Unix(100, 0)
	src := NewRemoteTelemetrySignal(500 * time.Millisecond)
	src.SetClock(func() time.Time { return now })

	src.Deposit(TrackingError{PositionError: 1})
	r, _ := src.Poll(context.Background())
	assert.True(t, r.Visible)

	now = now.Add(500 * time.Millisecond)
	r, _ = src.Poll(context.Background())
	assert.True(t, r.Visible)

	now = now.Add(time.Millisecond)
	r, _ = src.Poll(context.Background())
	assert.False(t, r.Visible)
	assert.Equal(t, 1.0, r.Error.PositionError)
}

func TestRemoteTelemetrySignal_NoTearing(t *testing.T) {
	src := NewRemoteTelemetrySignal(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			v := float64(i)
			src.Deposit(TrackingError{DistanceError: v, PositionError: -v})
		}
	}()

	for i := 0; i < 10000; i++ {
		r, err := src.Poll(ctx)
		require.NoError(t, err)
		if r.Visible {
			require.Equal(t, r.Error.DistanceError, -r.Error.PositionError)
		}
	}
	close(stop)
	wg.Wait()
}

func TestRemoteTelemetrySignal_CanceledContext(t *testing.T) {
	src := NewRemoteTelemetrySignal(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Poll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTuning_Validate(t *testing.T) {
	require.NoError(t, DefaultTuning().Validate())

	bad := DefaultTuning()
	bad.Gains.SpeedMax = 0
	bad.TickInterval = 0
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "speed max")
	assert.Contains(t, err.Error(), "tick interval")
}
