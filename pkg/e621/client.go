package e621

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"e621dl/pkg/config"
	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
	"e621dl/pkg/ratelimit"
	"e621dl/pkg/retry"
)

// Client talks to the e621 API. Every request goes through the retrying,
// rate limited transport built by NewClient.
type Client struct {
	httpClient *http.Client
	endpoints  Endpoints
	userAgent  string
	releaseURL string
	username   string
	apiKey     string
	logger     logger.Logger
}

// NewTransport builds the transport stack used for all traffic: retries on
// the outside, request spacing inside, so each retry is spaced too.
func NewTransport(cfg *config.NetworkConfig, log logger.Logger) http.RoundTripper {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ResponseHeaderTimeout = cfg.Timeout

	spaced := ratelimit.NewTransport(base, cfg.RequestInterval, log)
	return retry.NewTransport(spaced, cfg.MaxRetries, cfg.RetryStatuses, retry.DefaultExponentialBackoff(), log)
}

// NewClient creates a client from the network configuration
func NewClient(cfg *config.NetworkConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return NewClientWithHTTPClient(&http.Client{Transport: NewTransport(cfg, log)}, cfg, log)
}

// NewClientWithHTTPClient creates a client that sends requests through the
// given http.Client as is.
func NewClientWithHTTPClient(httpClient *http.Client, cfg *config.NetworkConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		httpClient: httpClient,
		endpoints:  NewEndpoints(cfg.BaseURL),
		userAgent:  cfg.UserAgent,
		releaseURL: cfg.ReleaseURL,
		logger:     log,
	}
}

// SetCredentials enables HTTP basic auth with an account name and API key
func (c *Client) SetCredentials(username, apiKey string) {
	c.username = username
	c.apiKey = apiKey
}

// Endpoints returns the URL builders the client uses
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

func (c *Client) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request for %s", rawURL),
			Err:     err,
		}
	}

	req.Header.Set("User-Agent", c.userAgent)
	// credentials only go to the API host, never to file or release hosts
	if c.username != "" && req.URL.Host == c.endpoints.Host() {
		req.SetBasicAuth(c.username, c.apiKey)
	}
	return req, nil
}

// doRequest sends the request and logs its outcome
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	start := time.Now()
	redacted := req.URL.Redacted()

	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    redacted,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      redacted,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, err
	}

	logger.LogRequest(c.logger, req.Method, redacted, resp.StatusCode, float64(duration.Milliseconds()))
	return resp, nil
}

// getJSON performs a GET request and decodes the JSON response into target
func (c *Client) getJSON(ctx context.Context, rawURL string, target interface{}) error {
	req, err := c.newRequest(ctx, rawURL)
	if err != nil {
		return err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return errs.FromStatus(resp.StatusCode, req.URL.Redacted())
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: "failed to read response body",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          req.URL.Redacted(),
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "failed to parse JSON",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	return nil
}

// SearchPosts fetches one page of posts matching tags. A non-positive
// beforeID asks for the newest posts.
func (c *Client) SearchPosts(ctx context.Context, tags string, limit int, beforeID int64) ([]Post, error) {
	var posts []Post
	if err := c.getJSON(ctx, c.endpoints.PostIndexURL(tags, limit, beforeID), &posts); err != nil {
		return nil, fmt.Errorf("search %q before %d: %w", tags, beforeID, err)
	}
	return posts, nil
}

// GetPost fetches a single post by id
func (c *Client) GetPost(ctx context.Context, id int64) (*Post, error) {
	var post Post
	if err := c.getJSON(ctx, c.endpoints.PostShowURL(id), &post); err != nil {
		return nil, fmt.Errorf("fetch post %d: %w", id, err)
	}
	return &post, nil
}

// ListTags looks a tag up by exact name. Names containing '*' match as a
// pattern on the server.
func (c *Client) ListTags(ctx context.Context, name string) ([]Tag, error) {
	var tags []Tag
	if err := c.getJSON(ctx, c.endpoints.TagIndexURL(name), &tags); err != nil {
		return nil, fmt.Errorf("look up tag %q: %w", name, err)
	}
	return tags, nil
}

// ListAliases returns approved aliases matching query
func (c *Client) ListAliases(ctx context.Context, query string) ([]TagAlias, error) {
	var aliases []TagAlias
	if err := c.getJSON(ctx, c.endpoints.TagAliasURL(query), &aliases); err != nil {
		return nil, fmt.Errorf("look up aliases of %q: %w", query, err)
	}
	return aliases, nil
}

// GetTag fetches a tag by id
func (c *Client) GetTag(ctx context.Context, id int64) (*Tag, error) {
	var tag Tag
	if err := c.getJSON(ctx, c.endpoints.TagShowURL(id), &tag); err != nil {
		return nil, fmt.Errorf("fetch tag %d: %w", id, err)
	}
	return &tag, nil
}

// LatestRelease fetches the newest published release of the tool
func (c *Client) LatestRelease(ctx context.Context) (*Release, error) {
	if c.releaseURL == "" {
		return nil, fmt.Errorf("no release url configured")
	}
	var release Release
	if err := c.getJSON(ctx, c.releaseURL, &release); err != nil {
		return nil, fmt.Errorf("check latest release: %w", err)
	}
	return &release, nil
}

// FetchRange requests fileURL starting at byte offset. The response is
// returned whatever its status; the caller owns the body.
func (c *Client) FetchRange(ctx context.Context, fileURL string, offset int64) (*http.Response, error) {
	if _, err := url.Parse(fileURL); err != nil {
		return nil, fmt.Errorf("invalid file url %q: %w", fileURL, err)
	}

	req, err := c.newRequest(ctx, fileURL)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))

	return c.doRequest(req)
}
