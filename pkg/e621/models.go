package e621

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Post is one entry of the post index
type Post struct {
	ID       int64  `json:"id"`
	MD5      string `json:"md5"`
	FileExt  string `json:"file_ext"`
	FileURL  string `json:"file_url"`
	Rating   string `json:"rating"`
	Score    int    `json:"score"`
	FavCount int    `json:"fav_count"`
	Tags     string `json:"tags"`

	// Raw is the post object exactly as the server sent it
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the original bytes
func (p *Post) UnmarshalJSON(data []byte) error {
	type plain Post
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = Post(decoded)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// TagList splits the space-separated tag string
func (p Post) TagList() []string {
	return strings.Fields(p.Tags)
}

// Tag is a canonical tag
type Tag struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
	Type  int    `json:"type"`
}

// TagAlias maps an alternative name to the id of its canonical tag
type TagAlias struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	AliasID int64  `json:"alias_id"`
}

// Release is the subset of a GitHub release the version check needs
type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Version returns the release tag without a leading "v"
func (r Release) Version() string {
	return strings.TrimPrefix(strings.TrimSpace(r.TagName), "v")
}

// NewerThan reports whether the release version is greater than current.
// Versions compare numerically per dot-separated component; a component that
// is not a number compares as zero.
func (r Release) NewerThan(current string) bool {
	latest := strings.Split(r.Version(), ".")
	running := strings.Split(strings.TrimPrefix(strings.TrimSpace(current), "v"), ".")

	for i := 0; i < len(latest) || i < len(running); i++ {
		a, b := component(latest, i), component(running, i)
		if a != b {
			return a > b
		}
	}
	return false
}

func component(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return n
}
