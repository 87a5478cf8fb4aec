package pursuit

import (
	"fmt"
	"time"
)

// SearchMode is the state of the recovery scan.
type SearchMode int

const (
	SearchIdle SearchMode = iota
	ScanRight
	ScanLeft
)

func (m SearchMode) String() string {
	switch m {
	case SearchIdle:
		return "IDLE"
	case ScanRight:
		return "SCAN_RIGHT"
	case ScanLeft:
		return "SCAN_LEFT"
	default:
		return fmt.Sprintf("SearchMode(%d)", int(m))
	}
}

// SearchRecovery is a blind timed sweep: it alternates between pivoting on
// the right wheel and pivoting on the left wheel, dwelling a fixed time in
// each direction. It never looks at error magnitudes.
type SearchRecovery struct {
	cfg       SearchConfig
	mode      SearchMode
	enteredAt time.Time
}

// NewSearchRecovery creates an idle search machine.
func NewSearchRecovery(cfg SearchConfig) *SearchRecovery {
	return &SearchRecovery{cfg: cfg}
}

// Step advances the machine to now and returns the scan command for the
// resulting state. The first Step after Reset enters ScanRight.
func (s *SearchRecovery) Step(now time.Time) MotorCommand {
	if s.mode == SearchIdle {
		s.enter(ScanRight, now)
	}
	if now.Sub(s.enteredAt) >= s.dwell(s.mode) {
		if s.mode == ScanRight {
			s.enter(ScanLeft, now)
		} else {
			s.enter(ScanRight, now)
		}
	}
	return s.command()
}

// Reset returns the machine to idle. The caller does this when the target
// is visible again.
func (s *SearchRecovery) Reset() {
	s.mode = SearchIdle
	s.enteredAt = time.Time{}
}

// Mode returns the current scan state.
func (s *SearchRecovery) Mode() SearchMode {
	return s.mode
}

// Elapsed returns how long the machine has been in its current scan state.
func (s *SearchRecovery) Elapsed(now time.Time) time.Duration {
	if s.mode == SearchIdle {
		return 0
	}
	return now.Sub(s.enteredAt)
}

// Dwell returns the dwell duration of the current scan state.
func (s *SearchRecovery) Dwell() time.Duration {
	return s.dwell(s.mode)
}

func (s *SearchRecovery) enter(m SearchMode, now time.Time) {
	s.mode = m
	s.enteredAt = now
}

func (s *SearchRecovery) dwell(m SearchMode) time.Duration {
	switch m {
	case ScanRight:
		return s.cfg.DwellRight
	case ScanLeft:
		return s.cfg.DwellLeft
	default:
		return 0
	}
}

// command derives the wheel speeds from the mode after any transition.
func (s *SearchRecovery) command() MotorCommand {
	switch s.mode {
	case ScanRight:
		return MotorCommand{Left: s.cfg.ScanSpeedRight}
	case ScanLeft:
		return MotorCommand{Right: s.cfg.ScanSpeedLeft}
	default:
		return Stop
	}
}
