package tracker

import (
	"time"

	"github.com/google/uuid"
)

// Reason records which transition produced a Flush.
type Reason string

const (
	ReasonSwitch     Reason = "switch"
	ReasonCheckpoint Reason = "checkpoint"
	ReasonShutdown   Reason = "shutdown"
)

// Flush is one finalized or checkpointed piece of a session.
type Flush struct {
	ID       uuid.UUID
	Service  string
	Duration time.Duration
	Requests int
	Start    time.Time
	End      time.Time
	Reason   Reason
}

// Seconds returns the duration in whole seconds.
func (f Flush) Seconds() int64 {
	return int64(f.Duration / time.Second)
}

// Session is the per-device state machine. It is either idle or tracking one
// active service. A Session is not safe for concurrent use; the owning loop
// serializes every transition.
//
// Durations are measured in whole seconds. A checkpoint advances the anchor
// by exactly the flushed duration, so consecutive pieces of one session add
// up to its total length.
type Session struct {
	dwell time.Duration

	active   bool
	service  string
	anchor   time.Time
	requests int
}

func NewSession(dwell time.Duration) *Session {
	return &Session{dwell: dwell}
}

// Active reports the service currently being tracked.
func (s *Session) Active() (string, bool) {
	return s.service, s.active
}

// Classified applies a classified focus signal. An empty service means the
// foreground is not an AI service.
func (s *Session) Classified(at time.Time, service string) (Flush, bool) {
	if s.active && s.service == service {
		return Flush{}, false
	}

	var (
		flush   Flush
		emitted bool
	)
	if s.active {
		flush = s.piece(at, ReasonSwitch)
		emitted = flush.Duration >= s.dwell
	}

	if service == "" {
		s.reset()
	} else {
		s.active = true
		s.service = service
		s.anchor = at
		s.requests = 1
	}
	return flush, emitted
}

// Checkpoint emits the portion of the active session since the last anchor
// and keeps the session running. Nothing happens before the dwell threshold.
func (s *Session) Checkpoint(at time.Time) (Flush, bool) {
	if !s.active {
		return Flush{}, false
	}
	flush := s.piece(at, ReasonCheckpoint)
	if flush.Duration < s.dwell {
		return Flush{}, false
	}
	s.anchor = flush.End
	s.requests = 1
	return flush, true
}

// Shutdown emits whatever the active session has accumulated, regardless of
// the dwell threshold, and returns to idle.
func (s *Session) Shutdown(at time.Time) (Flush, bool) {
	if !s.active {
		return Flush{}, false
	}
	flush := s.piece(at, ReasonShutdown)
	s.reset()
	return flush, true
}

// Request counts one request against the active session when it belongs to
// the same service. Anything else is dropped.
func (s *Session) Request(service string) bool {
	if !s.active || service == "" || service != s.service {
		return false
	}
	s.requests++
	return true
}

func (s *Session) piece(at time.Time, reason Reason) Flush {
	elapsed := at.Sub(s.anchor)
	if elapsed < 0 {
		elapsed = 0
	}
	elapsed = elapsed.Truncate(time.Second)
	return Flush{
		ID:       uuid.New(),
		Service:  s.service,
		Duration: elapsed,
		Requests: s.requests,
		Start:    s.anchor,
		End:      s.anchor.Add(elapsed),
		Reason:   reason,
	}
}

func (s *Session) reset() {
	s.active = false
	s.service = ""
	s.anchor = time.Time{}
	s.requests = 0
}
