// Package tags turns the tags a user writes into the canonical names the
// search endpoint understands.
package tags

import (
	"context"
	"strings"
	"sync"

	"e621dl/pkg/e621"
	"e621dl/pkg/logger"
)

const (
	// SigilAny marks a tag of which at least one must be present
	SigilAny = "~"
	// SigilExclude marks a tag that must be absent
	SigilExclude = "-"
)

// Lookup is the part of the API client the resolver needs
type Lookup interface {
	ListTags(ctx context.Context, name string) ([]e621.Tag, error)
	ListAliases(ctx context.Context, query string) ([]e621.TagAlias, error)
	GetTag(ctx context.Context, id int64) (*e621.Tag, error)
}

// SplitSigil separates a leading '~' or '-' from the tag name
func SplitSigil(token string) (sigil, name string) {
	switch {
	case strings.HasPrefix(token, SigilAny):
		return SigilAny, token[1:]
	case strings.HasPrefix(token, SigilExclude):
		return SigilExclude, token[1:]
	default:
		return "", token
	}
}

// Resolver maps tag tokens to canonical names. Results, including the empty
// result for an unknown tag, are cached for the life of the resolver.
type Resolver struct {
	lookup Lookup
	logger logger.Logger

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver creates a resolver backed by lookup
func NewResolver(lookup Lookup, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Resolver{
		lookup: lookup,
		logger: log,
		cache:  make(map[string]string),
	}
}

// Resolve returns the canonical form of token with its sigil kept, or "" when
// the tag does not exist. Network failures are returned and not cached.
func (r *Resolver) Resolve(ctx context.Context, token string) (string, error) {
	r.mu.Lock()
	if resolved, ok := r.cache[token]; ok {
		r.mu.Unlock()
		return resolved, nil
	}
	r.mu.Unlock()

	resolved, err := r.resolve(ctx, token)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache[token] = resolved
	r.mu.Unlock()
	return resolved, nil
}

// ResolveAll resolves every token, keeping order and empty results
func (r *Resolver) ResolveAll(ctx context.Context, tokens []string) ([]string, error) {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		resolved, err := r.Resolve(ctx, token)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

func (r *Resolver) resolve(ctx context.Context, token string) (string, error) {
	sigil, name := SplitSigil(token)
	log := r.logger.WithField("tag", token)

	if name == "" {
		log.Warn("empty tag ignored")
		return "", nil
	}

	// namespaced tags such as rating:s cannot be checked against the tag index
	if strings.Contains(name, ":") {
		log.Warn("cannot verify namespaced tag, using it as written")
		return token, nil
	}

	tags, err := r.lookup.ListTags(ctx, name)
	if err != nil {
		return "", err
	}

	if strings.Contains(name, "*") && len(tags) > 0 {
		log.Info("tag pattern is valid")
		return sigil + name, nil
	}

	for _, t := range tags {
		if t.Name == name {
			log.Debug("tag is valid")
			return sigil + name, nil
		}
	}

	aliases, err := r.lookup.ListAliases(ctx, name)
	if err != nil {
		return "", err
	}

	for _, a := range aliases {
		if a.Name != name {
			continue
		}
		target, err := r.lookup.GetTag(ctx, a.AliasID)
		if err != nil {
			return "", err
		}
		log.InfoWithFields("tag aliased", map[string]interface{}{
			"canonical": sigil + target.Name,
		})
		return sigil + target.Name, nil
	}

	log.Warn("tag is spelled incorrectly or does not exist")
	return "", nil
}
