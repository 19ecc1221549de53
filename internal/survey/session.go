// Package survey implements the timed position-survey state machine and the
// live-offset projection against the operator's target position.
package survey

import (
	"errors"
	"time"

	"surveypos/internal/ned"
)

type State int

const (
	StateIdle State = iota
	StateSurveying
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSurveying:
		return "surveying"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadySurveying = errors.New("survey already running")
	ErrNotSurveying     = errors.New("no survey running")
)

// LiveOffset is the receiver's relative position projected against the
// target plus the selected catalog offset. Pure; recomputed on every read.
func LiveOffset(rel, target, selected ned.Vector) ned.Vector {
	return rel.Sub(target.Add(selected))
}

// Session accumulates relative-position samples over a fixed duration and
// averages them on completion. All time is fed in by the caller; the session
// never reads the wall clock. Not safe for concurrent use.
type Session struct {
	state     State
	startedAt time.Time
	duration  time.Duration

	sum   ned.Vector
	count int

	// Results of the last data-producing run. A completion with zero samples
	// leaves these untouched, so the dashboard keeps showing the previous
	// run's numbers.
	average          *ned.Vector
	offsetFromTarget *ned.Vector

	runs int
}

func NewSession(duration time.Duration) *Session {
	if duration <= 0 {
		duration = 60 * time.Second
	}
	return &Session{duration: duration}
}

// Start begins a new run from Idle or Completed. The accumulator is reset
// here and only here; Stop and auto-completion leave it in place.
func (s *Session) Start(now time.Time) error {
	if s.state == StateSurveying {
		return ErrAlreadySurveying
	}
	s.state = StateSurveying
	s.startedAt = now
	s.sum = ned.Vector{}
	s.count = 0
	return nil
}

// Stop completes the run manually. target and selected feed the
// offset-from-target computation, with selected being the zero vector when
// no catalog offset is selected.
func (s *Session) Stop(target, selected ned.Vector) error {
	if s.state != StateSurveying {
		return ErrNotSurveying
	}
	s.complete(target, selected)
	return nil
}

// Accumulate adds one relative-position sample. The caller only invokes this
// on ticks where a fresh, valid reading was obtained; stale snapshots must
// not reach the accumulator.
func (s *Session) Accumulate(rel ned.Vector) {
	if s.state != StateSurveying {
		return
	}
	s.sum = s.sum.Add(rel)
	s.count++
}

// TickAutoStop completes the run once the configured duration has elapsed.
// Called once per sampling tick. Reports whether the session completed.
func (s *Session) TickAutoStop(now time.Time, target, selected ned.Vector) bool {
	if s.state != StateSurveying {
		return false
	}
	if now.Sub(s.startedAt) < s.duration {
		return false
	}
	s.complete(target, selected)
	return true
}

func (s *Session) complete(target, selected ned.Vector) {
	s.state = StateCompleted
	s.runs++
	if s.count == 0 {
		return
	}
	avg := s.sum.Scale(1 / float64(s.count))
	off := LiveOffset(avg, target, selected)
	s.average = &avg
	s.offsetFromTarget = &off
}

func (s *Session) State() State            { return s.state }
func (s *Session) Samples() int            { return s.count }
func (s *Session) Runs() int               { return s.runs }
func (s *Session) StartedAt() time.Time    { return s.startedAt }
func (s *Session) Duration() time.Duration { return s.duration }

// Average returns the mean of the last data-producing run.
func (s *Session) Average() (ned.Vector, bool) {
	if s.average == nil {
		return ned.Vector{}, false
	}
	return *s.average, true
}

// OffsetFromTarget returns average − (target + selected) of the last
// data-producing run.
func (s *Session) OffsetFromTarget() (ned.Vector, bool) {
	if s.offsetFromTarget == nil {
		return ned.Vector{}, false
	}
	return *s.offsetFromTarget, true
}

// View is the session as the dashboard sees it. Average and OffsetFromTarget
// are nil while surveying and until a completed run has produced data.
type View struct {
	State            string      `json:"state"`
	Samples          int         `json:"samples"`
	Runs             int         `json:"runs"`
	ElapsedSec       float64     `json:"elapsed_sec"`
	DurationSec      float64     `json:"duration_sec"`
	Average          *ned.Vector `json:"average"`
	OffsetFromTarget *ned.Vector `json:"offset_from_target"`
}

func (s *Session) View(now time.Time) View {
	v := View{
		State:       s.state.String(),
		Samples:     s.count,
		Runs:        s.runs,
		DurationSec: s.duration.Seconds(),
	}
	if s.state == StateSurveying {
		v.ElapsedSec = now.Sub(s.startedAt).Seconds()
	}
	// Results are hidden while a run is in progress even if a previous run
	// produced them; they reappear on completion.
	if s.state != StateSurveying {
		if s.average != nil {
			a := *s.average
			v.Average = &a
		}
		if s.offsetFromTarget != nil {
			o := *s.offsetFromTarget
			v.OffsetFromTarget = &o
		}
	}
	return v
}
