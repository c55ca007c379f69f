// Package search describes one configured search and pages through its
// results.
package search

import (
	"context"
	"strings"
	"time"

	"e621dl/pkg/config"
	"e621dl/pkg/tags"
)

// ServerTagLimit is how many tags the post index accepts in one query
const ServerTagLimit = 5

// DateFormat is the layout of the date filter sent with every query
const DateFormat = "2006-01-02"

// Spec is the immutable description of one search
type Spec struct {
	Label     string
	Directory string
	// Tags are resolved tags in configured order; "" marks a tag that does not exist
	Tags         []string
	Ratings      []string
	MinScore     int
	MinFavorites int
	EarliestDate time.Time
	Blacklist    []string
}

// NewSpec resolves the search's tags and fills in the effective options
func NewSpec(ctx context.Context, opts config.SearchOptions, blacklist []string, resolver *tags.Resolver, today time.Time) (*Spec, error) {
	resolved, err := resolver.ResolveAll(ctx, opts.Tags)
	if err != nil {
		return nil, err
	}

	return &Spec{
		Label:        opts.Name,
		Directory:    opts.Name,
		Tags:         resolved,
		Ratings:      opts.Ratings,
		MinScore:     opts.MinScore,
		MinFavorites: opts.MinFavs,
		EarliestDate: config.EarliestDate(opts.Days, today),
		Blacklist:    blacklist,
	}, nil
}

// ResolveBlacklist resolves blacklist entries and drops the ones that do not exist
func ResolveBlacklist(ctx context.Context, entries []string, resolver *tags.Resolver) ([]string, error) {
	resolved, err := resolver.ResolveAll(ctx, entries)
	if err != nil {
		return nil, err
	}
	return DropUnresolved(resolved), nil
}

// DropUnresolved returns the resolved tags without the "" entries
func DropUnresolved(resolved []string) []string {
	out := make([]string, 0, len(resolved))
	for _, t := range resolved {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// QueryTags are the tags sent to the server: the resolved ones among the
// first ServerTagLimit.
func (s *Spec) QueryTags() []string {
	head := s.Tags
	if len(head) > ServerTagLimit {
		head = head[:ServerTagLimit]
	}

	out := make([]string, 0, len(head))
	for _, t := range head {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ClientTags are the tags checked locally: everything past the server limit.
// An unresolvable tag within the limit is simply left out of the search.
func (s *Spec) ClientTags() []string {
	if len(s.Tags) <= ServerTagLimit {
		return nil
	}
	return s.Tags[ServerTagLimit:]
}

// Query is the tag string for the post index
func (s *Spec) Query() string {
	parts := append([]string{"date:>=" + s.EarliestDate.Format(DateFormat)}, s.QueryTags()...)
	return strings.Join(parts, " ")
}

// AllowsRating reports whether posts of rating are wanted
func (s *Spec) AllowsRating(rating string) bool {
	for _, r := range s.Ratings {
		if r == rating {
			return true
		}
	}
	return false
}
