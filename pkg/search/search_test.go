package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e621dl/pkg/config"
	"e621dl/pkg/e621"
	"e621dl/pkg/logger"
	"e621dl/pkg/tags"
)

type searchCall struct {
	query    string
	limit    int
	beforeID int64
}

// fakeIndex serves posts with ids total..1, newest first
type fakeIndex struct {
	total int64
	calls []searchCall
	err   error
}

func (f *fakeIndex) SearchPosts(_ context.Context, query string, limit int, beforeID int64) ([]e621.Post, error) {
	f.calls = append(f.calls, searchCall{query, limit, beforeID})
	if f.err != nil {
		return nil, f.err
	}

	start := f.total
	if beforeID > 0 && beforeID-1 < start {
		start = beforeID - 1
	}
	var posts []e621.Post
	for id := start; id > 0 && len(posts) < limit; id-- {
		posts = append(posts, e621.Post{ID: id})
	}
	return posts, nil
}

func testSpec(tagList ...string) *Spec {
	return &Spec{
		Label:        "cats",
		Directory:    "cats",
		Tags:         tagList,
		Ratings:      []string{"s"},
		EarliestDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestQueryUsesFirstFiveTags(t *testing.T) {
	spec := testSpec("cat", "yellow_fur", "fluffy", "big", "round", "tabby")

	assert.Equal(t, "date:>=2024-01-02 cat yellow_fur fluffy big round", spec.Query())
	assert.Equal(t, []string{"tabby"}, spec.ClientTags())
}

func TestUnresolvedTagsAreDroppedFromQuery(t *testing.T) {
	spec := testSpec("cat", "", "fluffy")

	assert.Equal(t, []string{"cat", "fluffy"}, spec.QueryTags())
	assert.Empty(t, spec.ClientTags())

	past := testSpec("a", "b", "c", "d", "e", "")
	assert.Equal(t, []string{""}, past.ClientTags())
}

func TestDropUnresolved(t *testing.T) {
	assert.Equal(t, []string{"gore", "-cub"}, DropUnresolved([]string{"gore", "", "-cub", ""}))
	assert.Empty(t, DropUnresolved(nil))
}

func TestQueryWithoutTags(t *testing.T) {
	assert.Equal(t, "date:>=2024-01-02", testSpec().Query())
}

func TestAllowsRating(t *testing.T) {
	spec := testSpec()
	spec.Ratings = []string{"s", "q"}
	assert.True(t, spec.AllowsRating("q"))
	assert.False(t, spec.AllowsRating("e"))
}

func TestPaginatorCursorStrictlyDecreases(t *testing.T) {
	index := &fakeIndex{total: 1000}
	p := NewPaginator(index, testSpec("cat"))
	ctx := context.Background()

	var seen []int64
	previous := p.Cursor()
	for !p.Done() {
		page, err := p.Next(ctx)
		require.NoError(t, err)
		for _, post := range page {
			seen = append(seen, post.ID)
		}
		if !p.Done() {
			assert.Less(t, p.Cursor(), previous)
			previous = p.Cursor()
		}
	}

	require.Len(t, index.calls, 4)
	assert.Equal(t, int64(0), index.calls[0].beforeID, "first page asks for newest posts")
	assert.Equal(t, int64(681), index.calls[1].beforeID)
	assert.Equal(t, int64(361), index.calls[2].beforeID)
	assert.Equal(t, int64(41), index.calls[3].beforeID)
	for _, c := range index.calls {
		assert.Equal(t, PageLimit, c.limit)
		assert.Equal(t, "date:>=2024-01-02 cat", c.query)
	}

	assert.Len(t, seen, 1000)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i], seen[i-1])
	}

	_, err := p.Next(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Len(t, index.calls, 4, "no request after exhaustion")
}

func TestPaginatorExactMultiple(t *testing.T) {
	index := &fakeIndex{total: 640}
	p := NewPaginator(index, testSpec("cat"))

	var count int
	for post, err := range p.All(context.Background()) {
		require.NoError(t, err)
		require.NotNil(t, post)
		count++
	}

	assert.Equal(t, 640, count)
	assert.Len(t, index.calls, 3, "an empty third page ends the search")
}

func TestPaginatorEmpty(t *testing.T) {
	index := &fakeIndex{total: 0}
	p := NewPaginator(index, testSpec("cat"))

	page, err := p.Next(context.Background())
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.True(t, p.Done())
}

func TestPaginatorError(t *testing.T) {
	index := &fakeIndex{err: errors.New("server exploded")}
	p := NewPaginator(index, testSpec("cat"))

	var errs []error
	for post, err := range p.All(context.Background()) {
		assert.Nil(t, post)
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "server exploded")
}

type stuckIndex struct{}

func (stuckIndex) SearchPosts(context.Context, string, int, int64) ([]e621.Post, error) {
	posts := make([]e621.Post, PageLimit)
	for i := range posts {
		posts[i].ID = 500
	}
	return posts, nil
}

func TestPaginatorRejectsNonDecreasingCursor(t *testing.T) {
	p := NewPaginator(stuckIndex{}, testSpec("cat"))
	ctx := context.Background()

	_, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), p.Cursor())

	_, err = p.Next(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not advance")
	assert.True(t, p.Done())
}

type fakeLookup struct{}

func (fakeLookup) ListTags(_ context.Context, name string) ([]e621.Tag, error) {
	if name == "cat" || name == "gore" {
		return []e621.Tag{{Name: name}}, nil
	}
	return nil, nil
}

func (fakeLookup) ListAliases(context.Context, string) ([]e621.TagAlias, error) { return nil, nil }

func (fakeLookup) GetTag(context.Context, int64) (*e621.Tag, error) { return &e621.Tag{}, nil }

func TestNewSpec(t *testing.T) {
	resolver := tags.NewResolver(fakeLookup{}, logger.NewNopLogger())
	ctx := context.Background()
	today := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	blacklist, err := ResolveBlacklist(ctx, []string{"gore", "goree"}, resolver)
	require.NoError(t, err)
	assert.Equal(t, []string{"gore"}, blacklist)

	spec, err := NewSpec(ctx, config.SearchOptions{
		Name:     "Big Cats",
		Tags:     []string{"cat", "catt"},
		Days:     3,
		MinScore: 10,
		MinFavs:  2,
		Ratings:  []string{"s", "q"},
	}, blacklist, resolver, today)
	require.NoError(t, err)

	assert.Equal(t, "Big Cats", spec.Label)
	assert.Equal(t, []string{"cat", ""}, spec.Tags)
	assert.Equal(t, "date:>=2024-03-08 cat", spec.Query())
	assert.Equal(t, 10, spec.MinScore)
	assert.Equal(t, 2, spec.MinFavorites)
	assert.Equal(t, []string{"gore"}, spec.Blacklist)
}
