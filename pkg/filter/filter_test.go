package filter

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e621dl/pkg/e621"
	"e621dl/pkg/search"
	"e621dl/pkg/storage"
)

func newSpec(tagList ...string) *search.Spec {
	return &search.Spec{
		Label:        "cats",
		Directory:    "cats",
		Tags:         tagList,
		Ratings:      []string{"s"},
		EarliestDate: time.Now(),
	}
}

func newPost(id int64, rating, tagString string) *e621.Post {
	return &e621.Post{ID: id, MD5: "abc", FileExt: "png", Rating: rating, Tags: tagString, Score: 10, FavCount: 5}
}

func TestDecisionString(t *testing.T) {
	want := []string{"new", "duplicate", "rating conflict", "blacklisted", "missing tag", "low score", "low favs"}
	for i, d := range Decisions {
		assert.Equal(t, want[i], d.String())
	}
}

func TestClassifyPriority(t *testing.T) {
	root := t.TempDir()
	layout := storage.NewLayout(root, false)
	c := NewClassifier(layout)

	spec := newSpec("cat")
	spec.Blacklist = []string{"gore"}
	spec.MinScore = 5
	spec.MinFavorites = 3

	tests := []struct {
		name string
		post *e621.Post
		want Decision
	}{
		{"accepted", newPost(1, "s", "cat fluffy"), Accepted},
		{"rating beats blacklist", newPost(2, "e", "cat gore"), RatingRejected},
		{"blacklisted", newPost(3, "s", "cat gore"), Blacklisted},
		{"blacklist beats score", &e621.Post{ID: 4, FileExt: "png", Rating: "s", Tags: "cat gore", Score: -50}, Blacklisted},
		{"low score", &e621.Post{ID: 5, FileExt: "png", Rating: "s", Tags: "cat", Score: 4, FavCount: 100}, ScoreRejected},
		{"low favs", &e621.Post{ID: 6, FileExt: "png", Rating: "s", Tags: "cat", Score: 5, FavCount: 2}, FavoritesRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(tt.post, spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyAlreadyPresentWins(t *testing.T) {
	root := t.TempDir()
	layout := storage.NewLayout(root, false)
	c := NewClassifier(layout)
	spec := newSpec("cat")
	spec.Blacklist = []string{"gore"}

	post := newPost(7, "e", "gore")
	require.NoError(t, layout.EnsureDir(spec.Directory))
	require.NoError(t, os.WriteFile(layout.PathFor(spec.Directory, post), []byte("done"), 0644))

	got, err := c.Classify(post, spec)
	require.NoError(t, err)
	assert.Equal(t, AlreadyPresent, got)

	// a partial download is not a finished one
	other := newPost(8, "s", "cat")
	require.NoError(t, os.WriteFile(storage.PartialPath(layout.PathFor(spec.Directory, other)), []byte("d"), 0644))
	got, err = c.Classify(other, spec)
	require.NoError(t, err)
	assert.Equal(t, Accepted, got)
}

func TestClassifySixthTagFilteredLocally(t *testing.T) {
	c := NewClassifier(storage.NewLayout(t.TempDir(), false))
	spec := newSpec("cat", "yellow_fur", "fluffy", "big", "round", "tabby")

	withAllSent := newPost(1, "s", "cat yellow_fur fluffy big round")
	got, err := c.Classify(withAllSent, spec)
	require.NoError(t, err)
	assert.Equal(t, TagRejected, got)

	withTabby := newPost(2, "s", "cat yellow_fur fluffy big round tabby")
	got, err = c.Classify(withTabby, spec)
	require.NoError(t, err)
	assert.Equal(t, Accepted, got)
}

func TestClassifyGlobBlacklist(t *testing.T) {
	c := NewClassifier(storage.NewLayout(t.TempDir(), false))
	spec := newSpec("cat")
	spec.Ratings = []string{"s", "q", "e"}
	spec.Blacklist = []string{"explicit*"}

	got, err := c.Classify(newPost(1, "s", "cat explicit_content"), spec)
	require.NoError(t, err)
	assert.Equal(t, Blacklisted, got)

	got, err = c.Classify(newPost(2, "s", "cat not_explicit"), spec)
	require.NoError(t, err)
	assert.Equal(t, Accepted, got)

	spec.Blacklist = []string{"*male"}
	got, err = c.Classify(newPost(3, "s", "cat male/male"), spec)
	require.NoError(t, err)
	assert.Equal(t, Blacklisted, got, "'*' spans '/'")
}

func TestClientTagSigils(t *testing.T) {
	c := NewClassifier(storage.NewLayout(t.TempDir(), false))
	base := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		name  string
		extra []string
		tags  string
		want  Decision
	}{
		{"excluded tag absent", []string{"-dog"}, "a b c d e cat", Accepted},
		{"excluded tag present", []string{"-dog"}, "a b c d e dog", TagRejected},
		{"any-of one present", []string{"~dog", "~cat"}, "a b c d e cat", Accepted},
		{"any-of none present", []string{"~dog", "~cat"}, "a b c d e fox", TagRejected},
		{"glob required", []string{"yellow_*"}, "a b c d e yellow_fur", Accepted},
		{"glob required missing", []string{"yellow_*"}, "a b c d e red_fur", TagRejected},
		{"glob required across slash", []string{"*female"}, "a b c d e male/female", Accepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := newSpec(append(append([]string{}, base...), tt.extra...)...)
			got, err := c.Classify(newPost(1, "s", tt.tags), spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnresolvedTagWithinServerLimitIsIgnored(t *testing.T) {
	c := NewClassifier(storage.NewLayout(t.TempDir(), false))
	spec := newSpec("cat", "")

	got, err := c.Classify(newPost(1, "s", "cat"), spec)
	require.NoError(t, err)
	assert.Equal(t, Accepted, got)
}

func TestUnresolvedTagPastServerLimitRejects(t *testing.T) {
	c := NewClassifier(storage.NewLayout(t.TempDir(), false))
	spec := newSpec("a", "b", "c", "d", "e", "")

	got, err := c.Classify(newPost(1, "s", "a b c d e"), spec)
	require.NoError(t, err)
	assert.Equal(t, TagRejected, got)
}

func TestMatchLiteralBrackets(t *testing.T) {
	assert.True(t, match("[censored]", "[censored]"))
	assert.False(t, match("[censored]", "c"))
	assert.True(t, match("*_(artist)", "someone_(artist)"))
	assert.True(t, match("male/*", "male/female"))
	assert.True(t, match("*{x}?", "a{x}?"))
	assert.False(t, match("*{x}?", "ax!"))
}
