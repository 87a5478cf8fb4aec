// Package telemetry delivers remote tracking errors into a
// pursuit.RemoteTelemetrySignal.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sync/atomic"

	"github.com/gwillem/pursuitbot/pkg/pursuit"
)

// ErrMalformed is returned for payloads that carry no usable error.
var ErrMalformed = errors.New("malformed telemetry payload")

// DefaultTargetSize is the fraction of the frame the target should fill
// when the robot sits at the desired following distance.
const DefaultTargetSize = 1.0 / 25

// Decoder turns a JSON payload into a TrackingError. It accepts either
//
//	{"distance_error": 0.02, "position_error": -5}
//
// or, when frame geometry is set, the vision publisher's raw centroid
//
//	{"center": [cx, cy], "area": 1234, "width": 40, "height": 30}
type Decoder struct {
	FrameWidth  float64
	FrameHeight float64
	TargetSize  float64
}

type message struct {
	DistanceError *float64  `json:"distance_error"`
	PositionError *float64  `json:"position_error"`
	Center        []float64 `json:"center"`
	Area          *float64  `json:"area"`
}

// Decode parses one payload. A message with only one of the two error
// fields treats the other as zero.
func (d Decoder) Decode(payload []byte) (pursuit.TrackingError, error) {
	var m message
	if err := json.Unmarshal(payload, &m); err != nil {
		return pursuit.TrackingError{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var e pursuit.TrackingError
	switch {
	case m.DistanceError != nil || m.PositionError != nil:
		if m.DistanceError != nil {
			e.DistanceError = *m.DistanceError
		}
		if m.PositionError != nil {
			e.PositionError = *m.PositionError
		}
	case len(m.Center) == 2 && m.Area != nil:
		if d.FrameWidth <= 0 || d.FrameHeight <= 0 {
			return e, fmt.Errorf("%w: centroid message but no frame geometry configured", ErrMalformed)
		}
		target := d.TargetSize
		if target <= 0 {
			target = DefaultTargetSize
		}
		e.DistanceError = target - *m.Area/(d.FrameWidth*d.FrameHeight)
		e.PositionError = d.FrameWidth/2 - m.Center[0]
	default:
		return e, fmt.Errorf("%w: no error fields", ErrMalformed)
	}

	if !finite(e.DistanceError) || !finite(e.PositionError) {
		return pursuit.TrackingError{}, fmt.Errorf("%w: non-finite value", ErrMalformed)
	}
	return e, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sink receives decoded errors. *pursuit.RemoteTelemetrySignal implements it.
type Sink interface {
	Deposit(pursuit.TrackingError)
}

// Receiver decodes payloads from any transport and deposits the good ones.
// Bad payloads are logged and dropped; the sink keeps its previous value.
type Receiver struct {
	Decoder Decoder
	Sink    Sink
	// Logf reports dropped payloads. Nil uses log.Printf.
	Logf func(format string, args ...any)

	accepted atomic.Uint64
	dropped  atomic.Uint64
}

// NewReceiver creates a receiver depositing into sink.
func NewReceiver(dec Decoder, sink Sink) *Receiver {
	return &Receiver{Decoder: dec, Sink: sink}
}

// Handle processes one payload and reports whether it was deposited.
func (r *Receiver) Handle(payload []byte) bool {
	e, err := r.Decoder.Decode(payload)
	if err != nil {
		r.dropped.Add(1)
		r.logf("warning: dropping telemetry: %v", err)
		return false
	}
	r.Sink.Deposit(e)
	r.accepted.Add(1)
	return true
}

// Stats returns how many payloads were accepted and dropped.
func (r *Receiver) Stats() (accepted, dropped uint64) {
	return r.accepted.Load(), r.dropped.Load()
}

func (r *Receiver) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}
