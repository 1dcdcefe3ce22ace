package detect

import (
	"fmt"
	"time"
)

// Policy decides whether a loop iteration runs detection.
type Policy interface {
	// Due reports whether frame (1-based) captured at now is a detection
	// iteration. Due is called exactly once per frame.
	Due(frame int, now time.Time) bool
}

// CountPolicy runs detection on every Nth frame.
type CountPolicy struct {
	N int
}

func (p CountPolicy) Due(frame int, _ time.Time) bool {
	return p.N > 0 && frame%p.N == 0
}

// TimePolicy runs detection once at least Interval has passed since the
// previous detection, or since Start for the first one.
type TimePolicy struct {
	Interval time.Duration
	last     time.Time
}

// NewTimePolicy returns a TimePolicy whose clock starts at start.
func NewTimePolicy(interval time.Duration, start time.Time) *TimePolicy {
	return &TimePolicy{Interval: interval, last: start}
}

func (p *TimePolicy) Due(_ int, now time.Time) bool {
	if p.last.IsZero() {
		p.last = now
	}
	if now.Sub(p.last) >= p.Interval {
		p.last = now
		return true
	}
	return false
}

// NewPolicy builds the sampling policy named by cfg. start seeds the time
// policy.
func NewPolicy(cfg Config, start time.Time) (Policy, error) {
	if err := cfg.Err(); err != nil {
		return nil, err
	}
	switch cfg.Policy {
	case PolicyCount:
		return CountPolicy{N: cfg.EveryN}, nil
	case PolicyTime:
		return NewTimePolicy(cfg.Interval, start), nil
	default:
		return nil, fmt.Errorf("%w: unknown sampling policy %q", ErrInvalidConfig, cfg.Policy)
	}
}
