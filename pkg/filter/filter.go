// Package filter decides what happens to each post a search returns.
package filter

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"e621dl/pkg/e621"
	"e621dl/pkg/search"
	"e621dl/pkg/storage"
	"e621dl/pkg/tags"
)

// Decision is the outcome of classifying one post
type Decision int

const (
	Accepted Decision = iota
	AlreadyPresent
	RatingRejected
	Blacklisted
	TagRejected
	ScoreRejected
	FavoritesRejected
)

// Decisions lists every decision in tally column order
var Decisions = []Decision{
	Accepted,
	AlreadyPresent,
	RatingRejected,
	Blacklisted,
	TagRejected,
	ScoreRejected,
	FavoritesRejected,
}

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "new"
	case AlreadyPresent:
		return "duplicate"
	case RatingRejected:
		return "rating conflict"
	case Blacklisted:
		return "blacklisted"
	case TagRejected:
		return "missing tag"
	case ScoreRejected:
		return "low score"
	case FavoritesRejected:
		return "low favs"
	default:
		return "unknown"
	}
}

// Classifier assigns decisions for posts of one download layout
type Classifier struct {
	layout *storage.Layout
}

// NewClassifier creates a classifier checking presence under layout
func NewClassifier(layout *storage.Layout) *Classifier {
	return &Classifier{layout: layout}
}

// Classify returns the first matching decision in this order: already
// present, rating, blacklist, client-side tags, score, favorites. A post that
// passes every check is Accepted. It has no side effects.
func (c *Classifier) Classify(post *e621.Post, spec *search.Spec) (Decision, error) {
	present, err := storage.Exists(c.layout.PathFor(spec.Directory, post))
	if err != nil {
		return Accepted, err
	}
	if present {
		return AlreadyPresent, nil
	}

	if !spec.AllowsRating(post.Rating) {
		return RatingRejected, nil
	}

	postTags := post.TagList()
	if matchesAny(postTags, spec.Blacklist) {
		return Blacklisted, nil
	}

	if !satisfies(postTags, spec.ClientTags()) {
		return TagRejected, nil
	}

	if post.Score < spec.MinScore {
		return ScoreRejected, nil
	}
	if post.FavCount < spec.MinFavorites {
		return FavoritesRejected, nil
	}

	return Accepted, nil
}

// matchesAny reports whether any post tag matches any pattern
func matchesAny(postTags, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		for _, t := range postTags {
			if match(p, t) {
				return true
			}
		}
	}
	return false
}

// satisfies checks the locally evaluated tags: plain tags must be present,
// '-' tags absent, and at least one '~' tag present when any are given.
func satisfies(postTags, required []string) bool {
	anyOf := 0
	anyOfFound := false

	for _, r := range required {
		sigil, name := tags.SplitSigil(r)
		has := name != "" && contains(postTags, name)

		switch sigil {
		case tags.SigilExclude:
			if has {
				return false
			}
		case tags.SigilAny:
			anyOf++
			anyOfFound = anyOfFound || has
		default:
			if !has {
				return false
			}
		}
	}

	return anyOf == 0 || anyOfFound
}

func contains(postTags []string, pattern string) bool {
	for _, t := range postTags {
		if match(pattern, t) {
			return true
		}
	}
	return false
}

var globs sync.Map // pattern -> glob.Glob

// match compares a tag to a pattern. Only '*' is a wildcard and it matches
// any run of characters, '/' included. Every other character compares
// literally.
func match(pattern, tag string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == tag
	}
	if g, ok := globs.Load(pattern); ok {
		return g.(glob.Glob).Match(tag)
	}

	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = glob.QuoteMeta(part)
	}
	g, err := glob.Compile(strings.Join(parts, "*"))
	if err != nil {
		return false
	}
	globs.Store(pattern, g)
	return g.Match(tag)
}
