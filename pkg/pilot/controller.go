// Package pilot runs the pursuit-and-recovery control loop against a robot.
package pilot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gwillem/pursuitbot/pkg/pursuit"
	"github.com/gwillem/pursuitbot/pkg/recorder"
	"github.com/gwillem/pursuitbot/pkg/robot"
)

// ErrAlreadyRunning is returned by Start when the loop is already active.
var ErrAlreadyRunning = errors.New("already running")

// Loop states reported in State.Mode besides the search modes.
const (
	ModeOnLine   = "ON_LINE"
	ModeTracking = "TRACK"
	ModeLost     = "LOST"
	ModeStopped  = "STOPPED"
)

// State is a snapshot of one control tick.
type State struct {
	Tick        int64
	Time        time.Time
	Mode        string
	Reading     pursuit.Reading
	Speed       float64
	TurnRate    float64
	Command     pursuit.MotorCommand
	Output      robot.DriveOutput
	Integrators pursuit.ControllerState
	// Search timing is only set while a binary source is sweeping.
	SearchElapsed time.Duration
	SearchDwell   time.Duration
	Error         error
}

// Recorder stores tick samples. *recorder.Recorder satisfies it.
type Recorder interface {
	RecordBatch(samples []recorder.Sample) error
}

const (
	// recordQueue bounds the samples waiting for the writer; ticks beyond
	// it are dropped.
	recordQueue = 512
	recordBatch = 64
)

// Config holds configuration for the controller.
type Config struct {
	Source   pursuit.ErrorSource
	Actuator robot.Actuator
	Tuning   pursuit.Tuning
	MaxDuty  int

	// Recorder is optional. Samples are written from a separate goroutine
	// so a slow store never stretches a tick.
	Recorder Recorder
	// Now defaults to time.Now.
	Now func() time.Time
	// Logf receives every log line in addition to Logs(); nil keeps it
	// channel-only.
	Logf func(format string, args ...any)
}

// Controller manages the control loop.
type Controller struct {
	source   pursuit.ErrorSource
	actuator robot.Actuator
	tuning   pursuit.Tuning
	mapper   *robot.Mapper
	pursuit  *pursuit.PursuitController
	search   *pursuit.SearchRecovery
	rec      Recorder
	now      func() time.Time
	logf     func(format string, args ...any)

	// actMu orders Drive calls against Halt so no command lands after a stop.
	actMu  sync.Mutex
	halted atomic.Bool

	mu       sync.Mutex
	running  bool
	tick     int64
	lastMode string
	stateCh  chan State
	logCh    chan string

	recMu     sync.RWMutex
	recCh     chan recorder.Sample
	recDone   chan struct{}
	recClosed bool
	dropped   atomic.Int64
}

// NewController validates cfg and creates an idle controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("no error source")
	}
	if cfg.Actuator == nil {
		return nil, fmt.Errorf("no actuator")
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	switch cfg.Source.Kind() {
	case pursuit.SourceBinary, pursuit.SourceContinuous:
	default:
		return nil, fmt.Errorf("unsupported source kind %v", cfg.Source.Kind())
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Controller{
		source:   cfg.Source,
		actuator: cfg.Actuator,
		tuning:   cfg.Tuning,
		mapper:   robot.NewMapper(cfg.MaxDuty),
		pursuit:  pursuit.NewPursuitController(cfg.Tuning.Gains),
		search:   pursuit.NewSearchRecovery(cfg.Tuning.Search),
		rec:      cfg.Recorder,
		now:      cfg.Now,
		logf:     cfg.Logf,
		stateCh:  make(chan State, 1),
		logCh:    make(chan string, 32),
	}
	if c.rec != nil {
		c.recCh = make(chan recorder.Sample, recordQueue)
		c.recDone = make(chan struct{})
		go c.writeSamples()
	}
	return c, nil
}

// Close stops the motors if the loop never got the chance to, then flushes
// queued samples to the recorder.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	err := c.Halt(context.Background())

	c.recMu.Lock()
	closing := c.recCh != nil && !c.recClosed
	if closing {
		c.recClosed = true
		close(c.recCh)
	}
	c.recMu.Unlock()
	if closing {
		<-c.recDone
		if n := c.dropped.Load(); n > 0 {
			c.log("Warning: recorder fell behind, %d ticks not recorded", n)
		}
	}
	return err
}

// States returns a channel that receives the latest tick snapshot.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Tuning returns the constants the controller was built with.
func (c *Controller) Tuning() pursuit.Tuning {
	return c.tuning
}

func (c *Controller) log(format string, args ...any) {
	if c.logf != nil {
		c.logf(format, args...)
	}
	msg := fmt.Sprintf("[%s] %s", c.now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start runs the control loop until ctx is canceled, the loop is halted, or
// a sensor or actuator fails. Every exit path zeroes both wheels first.
// A controller that has been halted, including before Start, never drives
// again.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	if c.halted.Load() {
		c.log("Halted before start")
		c.shutdown()
		return nil
	}
	c.log("Control loop started: %s source, tick %v, max duty %d",
		c.source.Kind(), c.tuning.TickInterval, c.mapper.MaxDuty())

	ticker := time.NewTicker(c.tuning.TickInterval)
	defer ticker.Stop()

	for {
		if err := c.step(ctx); err != nil {
			if ctx.Err() != nil {
				c.shutdown()
				return ctx.Err()
			}
			c.log("Fatal: %v", err)
			c.shutdown()
			return err
		}
		if c.halted.Load() {
			c.shutdown()
			return nil
		}

		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Halt zeroes both wheels immediately and makes any tick still in flight
// discard its command. A running Start returns nil after its current tick.
func (c *Controller) Halt(ctx context.Context) error {
	c.halted.Store(true)
	c.actMu.Lock()
	defer c.actMu.Unlock()
	return c.actuator.StopAll(ctx)
}

func (c *Controller) step(ctx context.Context) error {
	now := c.now()
	reading, err := c.source.Poll(ctx)
	if err != nil {
		c.sendState(State{Tick: c.tick, Time: now, Mode: ModeStopped, Error: err})
		return fmt.Errorf("poll %s source: %w", c.source.Kind(), err)
	}

	st := State{Tick: c.tick, Time: now, Reading: reading}
	switch c.source.Kind() {
	case pursuit.SourceBinary:
		c.binary(&st, now)
	case pursuit.SourceContinuous:
		c.continuous(&st)
	}
	st.Integrators = c.pursuit.State()
	st.Output = c.mapper.Map(st.Command.Left, st.Command.Right)

	if st.Mode != c.lastMode {
		c.log("Mode %s -> %s", orNone(c.lastMode), st.Mode)
		c.lastMode = st.Mode
	}

	if err := c.apply(ctx, st.Output); err != nil {
		st.Error = err
		c.sendState(st)
		return err
	}

	c.record(st)
	c.sendState(st)
	c.tick++
	return nil
}

// binary is the on-line/off-line policy of a thresholded sensor: drive
// straight while on target, otherwise sweep.
func (c *Controller) binary(st *State, now time.Time) {
	if st.Reading.Visible {
		c.search.Reset()
		st.Mode = ModeOnLine
		st.Command = pursuit.MotorCommand{Left: c.tuning.BaseSpeed, Right: c.tuning.BaseSpeed}
		return
	}
	st.Command = c.search.Step(now)
	st.Mode = c.search.Mode().String()
	st.SearchElapsed = c.search.Elapsed(now)
	st.SearchDwell = c.search.Dwell()
}

// continuous feeds the PI loops. Without a fresh error the robot stands
// still; the search sweep is never used for telemetry and the integrators
// keep their value across the gap.
func (c *Controller) continuous(st *State) {
	if !st.Reading.Visible {
		st.Mode = ModeLost
		st.Command = pursuit.Stop
		return
	}
	st.Speed, st.TurnRate = c.pursuit.Update(st.Reading.Error, c.tuning.Dt)
	st.Command = pursuit.Mix(st.Speed, st.TurnRate)
	st.Mode = ModeTracking
}

func (c *Controller) apply(ctx context.Context, out robot.DriveOutput) error {
	c.actMu.Lock()
	defer c.actMu.Unlock()
	if c.halted.Load() {
		return nil
	}
	for _, w := range robot.AllWheels() {
		if err := c.actuator.Drive(ctx, w, out.For(w)); err != nil {
			if errors.Is(err, robot.ErrActuator) {
				return err
			}
			return fmt.Errorf("%w: drive %s: %w", robot.ErrActuator, w, err)
		}
	}
	return nil
}

// record queues a sample without blocking; a full queue drops it.
func (c *Controller) record(st State) {
	if c.recCh == nil {
		return
	}
	smp := recorder.Sample{
		Tick:          st.Tick,
		Time:          st.Time,
		State:         st.Mode,
		Visible:       st.Reading.Visible,
		Sample:        st.Reading.Sample,
		DistanceError: st.Reading.Error.DistanceError,
		PositionError: st.Reading.Error.PositionError,
		Speed:         st.Speed,
		TurnRate:      st.TurnRate,
		Left:          st.Command.Left,
		Right:         st.Command.Right,
	}

	c.recMu.RLock()
	defer c.recMu.RUnlock()
	if c.recClosed {
		return
	}
	select {
	case c.recCh <- smp:
	default:
		c.dropped.Add(1)
	}
}

// writeSamples drains the queue in batches until Close closes it.
func (c *Controller) writeSamples() {
	defer close(c.recDone)
	batch := make([]recorder.Sample, 0, recordBatch)
	for smp := range c.recCh {
		batch = append(batch[:0], smp)
	fill:
		for len(batch) < recordBatch {
			select {
			case smp, ok := <-c.recCh:
				if !ok {
					break fill
				}
				batch = append(batch, smp)
			default:
				break fill
			}
		}
		if err := c.rec.RecordBatch(batch); err != nil {
			// recording is best effort; the robot keeps driving
			c.log("Warning: record ticks %d-%d: %v", batch[0].Tick, batch[len(batch)-1].Tick, err)
		}
	}
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	if err := c.Halt(context.Background()); err != nil {
		c.log("Warning: failed to stop motors: %v", err)
	} else {
		c.log("Motors stopped")
	}
	c.sendState(State{Tick: c.tick, Time: c.now(), Mode: ModeStopped, Integrators: c.pursuit.State()})
	c.log("Control loop stopped")
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
