// Package ratelimit keeps e621dl under the API's published request limit.
//
// Two mechanisms are layered in Transport:
//
// Spacing:
//   - Every request takes at least the configured interval (default 1s)
//   - A fast response is held back until the interval has elapsed
//
// Ceiling:
//   - A golang.org/x/time/rate limiter admits at most two requests per second
//   - Holds even when the interval is configured below 500ms
//
// Usage:
//
//	base := ratelimit.NewTransport(http.DefaultTransport, time.Second, log)
//	client := &http.Client{Transport: retry.NewTransport(base, 5, nil, nil, log)}
//
// Retries go through the spacing layer, so a retried request is paced like
// any other.
package ratelimit
