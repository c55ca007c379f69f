package search

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"

	"e621dl/pkg/e621"
)

const (
	// NewestCursor starts a search at the newest post
	NewestCursor int64 = math.MaxInt64
	// DoneCursor marks a finished search
	DoneCursor int64 = 0
	// PageLimit is the page size requested from the post index
	PageLimit = e621.MaxResults
)

// ErrExhausted is returned by Next once the last page has been delivered
var ErrExhausted = errors.New("search exhausted")

// PostSearcher is the part of the API client the paginator needs
type PostSearcher interface {
	SearchPosts(ctx context.Context, tags string, limit int, beforeID int64) ([]e621.Post, error)
}

// Paginator walks the post index from newest to oldest using before_id
type Paginator struct {
	searcher PostSearcher
	query    string
	cursor   int64
}

// NewPaginator creates a paginator for the search's query
func NewPaginator(searcher PostSearcher, spec *Spec) *Paginator {
	return &Paginator{
		searcher: searcher,
		query:    spec.Query(),
		cursor:   NewestCursor,
	}
}

// Cursor returns the id the next page ends before
func (p *Paginator) Cursor() int64 {
	return p.cursor
}

// Done reports whether the last page has been delivered
func (p *Paginator) Done() bool {
	return p.cursor == DoneCursor
}

// Next fetches the next page. A page shorter than PageLimit is the last one;
// after it Next returns ErrExhausted without touching the network.
func (p *Paginator) Next(ctx context.Context) ([]e621.Post, error) {
	if p.Done() {
		return nil, ErrExhausted
	}

	beforeID := p.cursor
	if beforeID == NewestCursor {
		beforeID = 0
	}

	posts, err := p.searcher.SearchPosts(ctx, p.query, PageLimit, beforeID)
	if err != nil {
		return nil, err
	}

	if len(posts) < PageLimit {
		p.cursor = DoneCursor
		return posts, nil
	}

	last := posts[len(posts)-1].ID
	if last >= p.cursor || last <= 0 {
		previous := p.cursor
		p.cursor = DoneCursor
		return nil, fmt.Errorf("cursor did not advance: page ended at id %d, previous cursor %d", last, previous)
	}
	p.cursor = last
	return posts, nil
}

// All yields every post of every page in order. Iteration stops after the
// first error, which is yielded with a nil post.
func (p *Paginator) All(ctx context.Context) iter.Seq2[*e621.Post, error] {
	return func(yield func(*e621.Post, error) bool) {
		for {
			page, err := p.Next(ctx)
			if errors.Is(err, ErrExhausted) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			for i := range page {
				if !yield(&page[i], nil) {
					return
				}
			}
		}
	}
}
