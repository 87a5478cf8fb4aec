package robot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrWriteFailed   = errors.New("failed to write to serial port")
	ErrBridgeClosed  = errors.New("bridge closed")
	ErrReplyTimeout  = errors.New("timed out waiting for bridge reply")
	ErrUnknownWheel  = errors.New("wheel has no calibration")
	ErrDeviceReplied = errors.New("bridge reported an error")
)

// DefaultReplyTimeout bounds how long ReadClear waits for the sensor reply.
const DefaultReplyTimeout = 250 * time.Millisecond

// Bridge drives a microcontroller that owns the motor driver and color
// sensor. It speaks a newline-terminated ASCII protocol:
//
//	M <channel> <F|R> <duty>   set one motor
//	S                          stop all motors
//	C?                         request clear-channel reading, answered by C=<n>
//
// Replies starting with "E " are device errors.
type Bridge struct {
	port         Port
	calibration  Calibration
	replyTimeout time.Duration

	mu      sync.Mutex
	pending []byte
	// stale is set when a reply timed out and may still arrive late.
	stale  bool
	closed bool
}

// NewBridge wraps an already open port. An empty calibration uses
// DefaultCalibration; otherwise every wheel needs its own channel.
func NewBridge(port Port, cal Calibration) (*Bridge, error) {
	if len(cal) == 0 {
		cal = DefaultCalibration()
	}
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calibration: %w", err)
	}
	return &Bridge{
		port:         port,
		calibration:  cal,
		replyTimeout: DefaultReplyTimeout,
	}, nil
}

// OpenBridge opens the serial port at path and wraps it in a Bridge.
func OpenBridge(path string, opts PortOptions, cal Calibration) (*Bridge, error) {
	port, err := OpenPort(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open bridge: %w", err)
	}
	b, err := NewBridge(port, cal)
	if err != nil {
		port.Close()
		return nil, err
	}
	return b, nil
}

// SetReplyTimeout overrides DefaultReplyTimeout.
func (b *Bridge) SetReplyTimeout(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replyTimeout = d
}

// Close closes the bridge's serial port.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.port.Close()
}

// Drive applies the wheel's calibration and sets its motor.
func (b *Bridge) Drive(ctx context.Context, wheel Wheel, out WheelOutput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wc, ok := b.calibration[wheel]
	if !ok {
		return fmt.Errorf("%w: %w: %s", ErrActuator, ErrUnknownWheel, wheel)
	}
	out = wc.Apply(out)

	dir := "F"
	if out.Dir == Reverse {
		dir = "R"
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.send(fmt.Sprintf("M %d %s %d", wc.Channel, dir, out.Duty)); err != nil {
		return fmt.Errorf("%w: drive %s: %w", ErrActuator, wheel, err)
	}
	return nil
}

// StopAll zeroes both motors. It ignores ctx cancellation because it is the
// shutdown path.
func (b *Bridge) StopAll(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.send("S"); err != nil {
		return fmt.Errorf("%w: stop: %w", ErrActuator, err)
	}
	return nil
}

// ReadClear requests one clear-channel intensity sample.
func (b *Bridge) ReadClear(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// a reply belongs to the request just sent, never to an earlier one
	b.pending = b.pending[:0]
	if b.stale {
		if err := b.drain(); err != nil {
			return 0, err
		}
		b.stale = false
	}

	if err := b.send("C?"); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(b.replyTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		line, err := b.readLine(ctx, deadline)
		if err != nil {
			b.stale = true
			return 0, err
		}
		switch {
		case strings.HasPrefix(line, "C="):
			v, err := strconv.Atoi(strings.TrimPrefix(line, "C="))
			if err != nil {
				return 0, fmt.Errorf("parse clear reading %q: %w", line, err)
			}
			return v, nil
		case strings.HasPrefix(line, "E "):
			return 0, fmt.Errorf("%w: %s", ErrDeviceReplied, strings.TrimPrefix(line, "E "))
		}
		// anything else is chatter from the firmware; keep waiting
	}
}

func (b *Bridge) send(command string) error {
	if b.closed {
		return ErrBridgeClosed
	}
	line := command + "\n"
	n, err := b.port.Write([]byte(line))
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrWriteFailed
	}
	return nil
}

// drain discards whatever the port has buffered, stopping at the first empty
// read, which for a real port means one read timeout without data.
func (b *Bridge) drain() error {
	if b.closed {
		return ErrBridgeClosed
	}
	buf := make([]byte, 64)
	for {
		n, err := b.port.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// readLine returns the next complete line. A serial read timeout shows up as
// a zero-length read, so the loop polls until the deadline.
func (b *Bridge) readLine(ctx context.Context, deadline time.Time) (string, error) {
	buf := make([]byte, 64)
	for {
		if i := bytes.IndexByte(b.pending, '\n'); i >= 0 {
			line := strings.TrimSpace(string(b.pending[:i]))
			b.pending = b.pending[i+1:]
			if line == "" {
				continue
			}
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", ErrReplyTimeout
		}
		n, err := b.port.Read(buf)
		b.pending = append(b.pending, buf[:n]...)
		if err != nil {
			return "", err
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}
