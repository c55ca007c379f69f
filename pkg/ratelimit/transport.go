package ratelimit

import (
	"net/http"
	"time"

	"e621dl/pkg/logger"
)

// DefaultInterval is the minimum duration of one request
const DefaultInterval = time.Second

// Transport is an http.RoundTripper that serializes traffic to the API rate.
// Each request first waits on the ceiling limiter, and if the server answers
// faster than the spacing interval the transport sleeps out the rest of it
// before handing the response back.
type Transport struct {
	next    http.RoundTripper
	ceiling Limiter
	spacer  *Spacer
	logger  logger.Logger
}

// NewTransport wraps next with spacing of interval and the published
// two-requests-per-second ceiling. A non-positive interval uses DefaultInterval.
func NewTransport(next http.RoundTripper, interval time.Duration, log logger.Logger) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Transport{
		next:    next,
		ceiling: NewCeiling(MaxRequestsPerSecond),
		spacer:  NewSpacer(interval),
		logger:  log,
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if err := t.ceiling.Wait(ctx); err != nil {
		return nil, err
	}

	start := t.spacer.Start()
	resp, err := t.next.RoundTrip(req)

	slept, sleepErr := t.spacer.Settle(ctx, start)
	if sleepErr != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, sleepErr
	}

	if slept > 0 {
		t.logger.DebugWithFields("request spaced", map[string]interface{}{
			"url":      req.URL.Redacted(),
			"slept_ms": slept.Milliseconds(),
		})
	}

	return resp, err
}
