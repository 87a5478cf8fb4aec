package pursuit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrSensorUnavailable wraps any failure to read the local sensor. It is
// fatal for the control session.
var ErrSensorUnavailable = errors.New("sensor unavailable")

// SourceKind tags which downstream handler an ErrorSource feeds.
type SourceKind int

const (
	// SourceBinary sources only report visible/lost and drive the
	// on-line/search policy.
	SourceBinary SourceKind = iota + 1
	// SourceContinuous sources report error magnitudes and drive the PI loops.
	SourceContinuous
)

func (k SourceKind) String() string {
	switch k {
	case SourceBinary:
		return "binary"
	case SourceContinuous:
		return "continuous"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// ErrorSource yields one reading per control tick.
type ErrorSource interface {
	Poll(ctx context.Context) (Reading, error)
	Kind() SourceKind
}

// ClearSensor reads a single clear-channel intensity sample.
type ClearSensor interface {
	ReadClear(ctx context.Context) (int, error)
}

// LocalSensorSignal thresholds a color sensor's clear channel: the target
// (a dark line) is visible while the reading is below the threshold.
type LocalSensorSignal struct {
	sensor    ClearSensor
	threshold int
}

// NewLocalSensorSignal creates a binary source over sensor.
func NewLocalSensorSignal(sensor ClearSensor, threshold int) *LocalSensorSignal {
	return &LocalSensorSignal{sensor: sensor, threshold: threshold}
}

// Kind implements ErrorSource.
func (s *LocalSensorSignal) Kind() SourceKind { return SourceBinary }

// Threshold returns the visibility cutoff.
func (s *LocalSensorSignal) Threshold() int { return s.threshold }

// Poll reads the sensor once.
func (s *LocalSensorSignal) Poll(ctx context.Context) (Reading, error) {
	v, err := s.sensor.ReadClear(ctx)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %w", ErrSensorUnavailable, err)
	}
	return Reading{Visible: v < s.threshold, Sample: float64(v)}, nil
}

// RemoteTelemetrySignal holds the most recent error delivered by a remote
// perception process. Deposit may be called from any goroutine; it replaces
// the single slot atomically so Poll never sees a torn value.
type RemoteTelemetrySignal struct {
	latest     atomic.Pointer[TrackingError]
	deposits   atomic.Uint64
	staleAfter time.Duration
	now        func() time.Time
}

// NewRemoteTelemetrySignal creates an empty mailbox. A positive staleAfter
// makes Poll report Lost once the latest sample is older than that; zero
// keeps the last value forever.
func NewRemoteTelemetrySignal(staleAfter time.Duration) *RemoteTelemetrySignal {
	return &RemoteTelemetrySignal{staleAfter: staleAfter, now: time.Now}
}

// SetClock replaces the time source used for ValidAt and staleness.
func (s *RemoteTelemetrySignal) SetClock(now func() time.Time) {
	s.now = now
}

// Kind implements ErrorSource.
func (s *RemoteTelemetrySignal) Kind() SourceKind { return SourceContinuous }

// Deposit overwrites the latest error. A zero ValidAt is stamped with the
// current time.
func (s *RemoteTelemetrySignal) Deposit(e TrackingError) {
	if e.ValidAt.IsZero() {
		e.ValidAt = s.now()
	}
	s.latest.Store(&e)
	s.deposits.Add(1)
}

// Deposits returns how many samples have been deposited since creation.
func (s *RemoteTelemetrySignal) Deposits() uint64 {
	return s.deposits.Load()
}

// Poll returns the latest deposited error, or Lost if nothing has arrived
// (or the value went stale). It never blocks.
func (s *RemoteTelemetrySignal) Poll(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	e := s.latest.Load()
	if e == nil {
		return Reading{}, nil
	}
	if s.staleAfter > 0 && s.now().Sub(e.ValidAt) > s.staleAfter {
		return Reading{Error: *e}, nil
	}
	return Reading{Visible: true, Error: *e}, nil
}
