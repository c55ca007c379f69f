package retry

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
)

// DefaultRetryStatuses are the response codes treated as transient
var DefaultRetryStatuses = []int{
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// Transport is an http.RoundTripper that re-issues requests failing with a
// connection error or one of the configured statuses.
type Transport struct {
	next       http.RoundTripper
	maxRetries int
	statuses   map[int]bool
	backoff    BackoffStrategy
	logger     logger.Logger
}

// NewTransport wraps next. A nil backoff uses DefaultExponentialBackoff and a
// nil status list uses DefaultRetryStatuses.
func NewTransport(next http.RoundTripper, maxRetries int, statuses []int, backoff BackoffStrategy, log logger.Logger) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	if backoff == nil {
		backoff = DefaultExponentialBackoff()
	}
	if statuses == nil {
		statuses = DefaultRetryStatuses
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	set := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}

	return &Transport{
		next:       next,
		maxRetries: maxRetries,
		statuses:   set,
		backoff:    backoff,
		logger:     log,
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	url := req.URL.Redacted()
	attempt := 0

	cfg := &Config{
		MaxAttempts: t.maxRetries + 1,
		Backoff:     t.backoff,
		RetryIf:     t.shouldRetry,
		Context:     ctx,
		Logger:      t.logger.WithField("url", url),
	}

	resp, err := DoWithResult(func() (*http.Response, error) {
		attempt++
		r, err := rewind(req, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := t.next.RoundTrip(r)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &errs.Error{
				Type:    errs.ErrorTypeNetwork,
				Message: fmt.Sprintf("request to %s failed", url),
				Err:     err,
			}
		}

		if t.statuses[resp.StatusCode] {
			drain(resp)
			return nil, errs.FromStatus(resp.StatusCode, url)
		}

		return resp, nil
	}, cfg)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (t *Transport) shouldRetry(err error) bool {
	var apiErr *errs.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Type == errs.ErrorTypeNetwork {
		return true
	}
	return t.statuses[apiErr.Code]
}

// rewind returns the request to send for the given attempt, resetting the
// body when one was sent before.
func rewind(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 || req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("cannot retry %s: request body is not rewindable", req.URL.Redacted())
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	r := req.Clone(req.Context())
	r.Body = body
	return r, nil
}

// drain consumes a small amount of a discarded body so the connection can be reused
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
