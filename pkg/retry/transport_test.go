package retry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
)

type failingRoundTripper struct {
	calls int32
}

func (f *failingRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	return nil, errors.New("connection reset by peer")
}

func fastBackoff() BackoffStrategy {
	return &ConstantBackoff{Delay: time.Millisecond}
}

func TestTransportRetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	client := &http.Client{Transport: NewTransport(nil, 5, nil, fastBackoff(), log)}

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.True(t, log.HasMessage("retrying operation"))
}

func TestTransportExhaustion(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := &http.Client{Transport: NewTransport(nil, 2, nil, fastBackoff(), nil)}

	_, err := client.Get(server.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "first attempt plus two retries")

	var apiErr *errs.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, errs.ErrorTypeServerError, apiErr.Type)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Code)
}

type countingBackoff struct {
	calls int32
}

func (b *countingBackoff) NextDelay(int) time.Duration {
	atomic.AddInt32(&b.calls, 1)
	return time.Millisecond
}

func TestTransportExhaustionWaitsOnlyBetweenAttempts(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	backoff := &countingBackoff{}
	log := logger.NewTestLogger()
	client := &http.Client{Transport: NewTransport(nil, 2, nil, backoff, log)}

	_, err := client.Get(server.URL)
	require.Error(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(2), atomic.LoadInt32(&backoff.calls), "one wait per retry")

	retries := 0
	for _, m := range log.GetMessagesByLevel("WARN") {
		if m.Message == "retrying operation" {
			retries++
		}
	}
	assert.Equal(t, 2, retries)
	assert.True(t, log.HasMessage("max retry attempts exceeded"))
}

func TestTransportDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := &http.Client{Transport: NewTransport(nil, 5, nil, fastBackoff(), nil)}

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestTransportCustomStatuses(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	// 503 is not in the configured set so it is handed back untouched
	client := &http.Client{Transport: NewTransport(nil, 5, []int{500}, fastBackoff(), nil)}

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestTransportRetriesNetworkErrors(t *testing.T) {
	base := &failingRoundTripper{}
	client := &http.Client{Transport: NewTransport(base, 3, nil, fastBackoff(), nil)}

	_, err := client.Get("http://e621.invalid/post/index.json")
	require.Error(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&base.calls))

	var apiErr *errs.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, errs.ErrorTypeNetwork, apiErr.Type)
}
