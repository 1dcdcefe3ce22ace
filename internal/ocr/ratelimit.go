package ocr

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jackzampolin/textscan/internal/detect"
)

// RateLimiter implements a token bucket rate limiter.
type RateLimiter struct {
	mu sync.Mutex

	// Configuration
	perSecond float64
	burst     float64

	// Token bucket state
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time

	// Statistics
	totalConsumed int64
	totalWaited   time.Duration
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	PerSecond       float64       `json:"per_second"`
	TimeUntilToken  time.Duration `json:"time_until_token"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
}

// NewRateLimiter creates a limiter allowing perSecond requests per second
// with a burst of max(1, perSecond).
func NewRateLimiter(perSecond float64) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := math.Max(1, perSecond)
	return &RateLimiter{
		perSecond:  perSecond,
		burst:      burst,
		tokens:     burst,
		lastUpdate: time.Now(),
		now:        time.Now,
	}
}

// Wait blocks until a token is available or context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}

		waitTime := r.untilToken()
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
			r.mu.Lock()
			r.totalWaited += waitTime
			r.mu.Unlock()
		}
	}
}

// TryConsume attempts to consume a token without blocking.
func (r *RateLimiter) TryConsume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1.0 {
		r.tokens--
		r.totalConsumed++
		return true
	}
	return false
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		PerSecond:       r.perSecond,
		TimeUntilToken:  r.untilToken(),
		TotalConsumed:   r.totalConsumed,
		TotalWaited:     r.totalWaited,
	}
}

// untilToken returns the time until one token is available. Must be called
// with lock held.
func (r *RateLimiter) untilToken() time.Duration {
	if r.tokens >= 1.0 {
		return 0
	}
	needed := 1.0 - r.tokens
	return time.Duration(needed / r.perSecond * float64(time.Second))
}

// refill adds tokens based on elapsed time. Must be called with lock held.
func (r *RateLimiter) refill() {
	now := r.now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * r.perSecond
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
}

// Limited wraps an Engine so calls wait for a rate limiter token.
type Limited struct {
	Engine  Engine
	Limiter *RateLimiter
}

var _ Engine = (*Limited)(nil)

// NewLimited wraps engine with a limiter of perSecond requests per second.
func NewLimited(engine Engine, perSecond float64) *Limited {
	return &Limited{Engine: engine, Limiter: NewRateLimiter(perSecond)}
}

func (l *Limited) Name() string { return l.Engine.Name() }

func (l *Limited) Detect(ctx context.Context, image []byte) ([]detect.Detection, error) {
	if err := l.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.Engine.Detect(ctx, image)
}
