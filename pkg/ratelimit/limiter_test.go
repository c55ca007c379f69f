package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func newFakeSpacer(interval time.Duration) (*Spacer, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewSpacer(interval)
	s.now = clock.Now
	s.sleep = clock.Sleep
	return s, clock
}

func TestSpacerSleepsRemainder(t *testing.T) {
	s, clock := newFakeSpacer(time.Second)

	start := s.Start()
	clock.Advance(300 * time.Millisecond)

	slept, err := s.Settle(context.Background(), start)
	require.NoError(t, err)
	assert.Equal(t, 700*time.Millisecond, slept)
	assert.Equal(t, []time.Duration{700 * time.Millisecond}, clock.slept)
}

func TestSpacerSlowRequestNoSleep(t *testing.T) {
	s, clock := newFakeSpacer(time.Second)

	start := s.Start()
	clock.Advance(1500 * time.Millisecond)

	slept, err := s.Settle(context.Background(), start)
	require.NoError(t, err)
	assert.Zero(t, slept)
	assert.Empty(t, clock.slept)
}

func TestSpacerCancelled(t *testing.T) {
	s := NewSpacer(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Settle(ctx, s.Start())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCeiling(t *testing.T) {
	limiter := NewCeiling(20)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(ctx))
	}

	// burst of one, so the second and third requests wait 50ms each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestTransportSpacesEveryRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	transport := NewTransport(nil, time.Second, nil)
	spacer, clock := newFakeSpacer(time.Second)
	transport.spacer = spacer
	transport.ceiling = rate.NewLimiter(rate.Inf, 1)

	client := &http.Client{Transport: transport}
	for i := 0; i < 3; i++ {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}

	// the fake clock never advances during the request, so each one sleeps the full interval
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, clock.slept)
}

func TestTransportDefaultInterval(t *testing.T) {
	transport := NewTransport(nil, 0, nil)
	assert.Equal(t, DefaultInterval, transport.spacer.Interval())
}
