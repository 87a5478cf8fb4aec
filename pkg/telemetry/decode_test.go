package telemetry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/pursuitbot/pkg/pursuit"
)

func TestDecoder_ErrorMessage(t *testing.T) {
	tests := []struct {
		payload string
		want    pursuit.TrackingError
	}{
		{`{"distance_error": 0.02, "position_error": -5}`, pursuit.TrackingError{DistanceError: 0.02, PositionError: -5}},
		{`{"distance_error": 1.5}`, pursuit.TrackingError{DistanceError: 1.5}},
		{`{"position_error": 3, "extra": "ignored"}`, pursuit.TrackingError{PositionError: 3}},
	}

	for _, tt := range tests {
		got, err := Decoder{}.Decode([]byte(tt.payload))
		require.NoError(t, err, tt.payload)
		assert.Equal(t, tt.want, got, tt.payload)
	}
}

func TestDecoder_Centroid(t *testing.T) {
	d := Decoder{FrameWidth: 640, FrameHeight: 480}
	got, err := d.Decode([]byte(`{"center": [300, 200], "area": 6144, "width": 80, "height": 76}`))
	require.NoError(t, err)

	assert.InDelta(t, 1.0/25-6144.0/(640*480), got.DistanceError, 1e-12)
	assert.Equal(t, 20.0, got.PositionError)
}

func TestDecoder_Malformed(t *testing.T) {
	for _, payload := range []string{
		``,
		`not json`,
		`{"distance_error": "far"}`,
		`{}`,
		`{"center": [1, 2], "area": 10}`,
		`[1, 2]`,
		`{"distance_error": 1e400}`,
	} {
		_, err := Decoder{}.Decode([]byte(payload))
		assert.ErrorIs(t, err, ErrMalformed, "payload %q", payload)
	}
}

type recordingSink struct {
	mu   sync.Mutex
	errs []pursuit.TrackingError
}

func (s *recordingSink) Deposit(e pursuit.TrackingError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, e)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}

func TestReceiver_DropsMalformedKeepsPrevious(t *testing.T) {
	signal := pursuit.NewRemoteTelemetrySignal(0)
	var logged []string
	r := NewReceiver(Decoder{}, signal)
	r.Logf = func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}

	assert.True(t, r.Handle([]byte(`{"distance_error": 0.1, "position_error": 2}`)))
	assert.False(t, r.Handle([]byte(`{garbage`)))

	accepted, dropped := r.Stats()
	assert.Equal(t, uint64(1), accepted)
	assert.Equal(t, uint64(1), dropped)
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "warning")

	reading, err := signal.Poll(t.Context())
	require.NoError(t, err)
	assert.True(t, reading.Visible)
	assert.Equal(t, 0.1, reading.Error.DistanceError)
	assert.Equal(t, 2.0, reading.Error.PositionError)
}
