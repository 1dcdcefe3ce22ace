package detect

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrDeviceUnavailable is returned when a capture device cannot be opened.
// It is fatal for the session that requested the device.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// State is the lifecycle state of a session.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateFailed  State = "failed"
)

// Session holds everything one detection run owns: the retained detection
// set, the captured log and counters. It is created fresh for each run.
type Session struct {
	ID        string
	Config    Config
	StartedAt time.Time

	current atomic.Pointer[Set]
	log     CaptureLog

	frames       atomic.Int64
	passes       atomic.Int64
	detectErrors atomic.Int64

	mu      sync.RWMutex
	state   State
	endedAt time.Time
	err     error
}

// NewSession returns an empty session with a fresh id.
func NewSession(cfg Config, start time.Time) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		Config:    cfg,
		StartedAt: start,
		state:     StateRunning,
	}
	empty := Set{}
	s.current.Store(&empty)
	return s
}

// Detections returns the retained detection set. The returned slice must
// not be modified.
func (s *Session) Detections() Set {
	return *s.current.Load()
}

// replace swaps in a new detection set.
func (s *Session) replace(set Set) {
	s.current.Store(&set)
}

// Log returns the session's capture log.
func (s *Session) Log() *CaptureLog {
	return &s.log
}

// Frames returns the number of frames processed so far.
func (s *Session) Frames() int64 { return s.frames.Load() }

// Passes returns the number of detection iterations run.
func (s *Session) Passes() int64 { return s.passes.Load() }

// DetectErrors returns the number of detection iterations that failed.
func (s *Session) DetectErrors() int64 { return s.detectErrors.Load() }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// EndedAt returns when the loop exited, or the zero time while running.
func (s *Session) EndedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endedAt
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Finish records the end of the session. A nil err marks it stopped.
func (s *Session) Finish(at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endedAt = at
	s.err = err
	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateStopped
	}
}
