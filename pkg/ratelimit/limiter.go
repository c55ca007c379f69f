package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Wait blocks until the rate limit allows another request
	Wait(ctx context.Context) error
}

// MaxRequestsPerSecond is the hard limit published by the e621 API
const MaxRequestsPerSecond = 2

// NewCeiling returns a limiter allowing at most perSecond requests each second
// with no bursting.
func NewCeiling(perSecond float64) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Spacer makes every request take at least a fixed interval. The caller marks
// the start of a request and, once it completes, Settle sleeps for whatever is
// left of the interval.
type Spacer struct {
	interval time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	mu       sync.Mutex
}

// NewSpacer creates a spacer with the given minimum request duration
func NewSpacer(interval time.Duration) *Spacer {
	return &Spacer{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Interval returns the configured minimum request duration
func (s *Spacer) Interval() time.Duration {
	return s.interval
}

// Start records the beginning of a request
func (s *Spacer) Start() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

// Settle sleeps for the remainder of the interval measured from start. It
// returns the time slept.
func (s *Spacer) Settle(ctx context.Context, start time.Time) (time.Duration, error) {
	s.mu.Lock()
	elapsed := s.now().Sub(start)
	s.mu.Unlock()

	remaining := s.interval - elapsed
	if remaining <= 0 {
		return 0, nil
	}
	return remaining, s.sleep(ctx, remaining)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
