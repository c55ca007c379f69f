package e621

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the e621 API host
	DefaultBaseURL = "https://e621.net"

	// PostIndexEndpoint lists posts matching a tag query
	PostIndexEndpoint = "/post/index.json"

	// PostShowEndpoint returns a single post by id
	PostShowEndpoint = "/post/show.json"

	// TagIndexEndpoint looks tags up by exact name
	TagIndexEndpoint = "/tag/index.json"

	// TagShowEndpoint returns a single tag by id
	TagShowEndpoint = "/tag/show.json"

	// TagAliasEndpoint lists tag aliases
	TagAliasEndpoint = "/tag_alias/index.json"

	// MaxResults is the largest page the post index returns
	MaxResults = 320
)

// Endpoints builds request URLs against one API host
type Endpoints struct {
	base string
}

// NewEndpoints creates URL builders for the given host. An empty base uses
// DefaultBaseURL.
func NewEndpoints(base string) Endpoints {
	if base == "" {
		base = DefaultBaseURL
	}
	return Endpoints{base: strings.TrimRight(base, "/")}
}

// Host returns the host name requests are sent to
func (e Endpoints) Host() string {
	u, err := url.Parse(e.base)
	if err != nil {
		return ""
	}
	return u.Host
}

func (e Endpoints) build(path string, params url.Values) string {
	if len(params) == 0 {
		return e.base + path
	}
	return e.base + path + "?" + params.Encode()
}

// PostIndexURL constructs the search URL. A non-positive beforeID is omitted
// so the newest posts are returned.
func (e Endpoints) PostIndexURL(tags string, limit int, beforeID int64) string {
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if beforeID > 0 {
		params.Set("before_id", strconv.FormatInt(beforeID, 10))
	}
	params.Set("tags", tags)

	return e.build(PostIndexEndpoint, params)
}

// PostShowURL constructs the URL for one post
func (e Endpoints) PostShowURL(id int64) string {
	return e.build(PostShowEndpoint, url.Values{"id": {strconv.FormatInt(id, 10)}})
}

// TagIndexURL constructs the exact-name tag lookup URL
func (e Endpoints) TagIndexURL(name string) string {
	return e.build(TagIndexEndpoint, url.Values{"name": {name}})
}

// TagShowURL constructs the URL for one tag
func (e Endpoints) TagShowURL(id int64) string {
	return e.build(TagShowEndpoint, url.Values{"id": {strconv.FormatInt(id, 10)}})
}

// TagAliasURL constructs the approved alias lookup URL
func (e Endpoints) TagAliasURL(query string) string {
	params := url.Values{}
	params.Set("approved", "true")
	params.Set("query", query)
	return e.build(TagAliasEndpoint, params)
}
