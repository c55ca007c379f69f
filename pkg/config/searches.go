package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StringList is a list of lower-cased words. In YAML it may be written as a
// sequence or as a single scalar separated by commas or whitespace.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	var raw []string
	switch node.Kind {
	case yaml.ScalarNode:
		raw = []string{node.Value}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected a word, got a nested structure", item.Line)
			}
			raw = append(raw, item.Value)
		}
	default:
		return fmt.Errorf("line %d: expected a list of words", node.Line)
	}

	*l = SplitWords(strings.Join(raw, " "))
	return nil
}

// SplitWords splits on commas and whitespace and lower-cases every word
func SplitWords(s string) StringList {
	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	if len(fields) == 0 {
		return nil
	}
	out := make(StringList, len(fields))
	for i, f := range fields {
		out[i] = strings.ToLower(f)
	}
	return out
}

// Search is one named entry under searches. Nil overrides inherit from
// default_search.
type Search struct {
	Name     string
	Tags     StringList
	Days     *int
	MinScore *int
	MinFavs  *int
	Ratings  StringList
}

// searchFields accepts the current keys and the older short forms
type searchFields struct {
	Tags        StringList `yaml:"tags"`
	Tag         StringList `yaml:"tag"`
	Days        *int       `yaml:"days"`
	DaysToCheck *int       `yaml:"days_to_check"`
	MinScore    *int       `yaml:"min_score"`
	Score       *int       `yaml:"score"`
	MinFavs     *int       `yaml:"min_favs"`
	Ratings     StringList `yaml:"ratings"`
	Rating      StringList `yaml:"rating"`
}

type searchOut struct {
	Tags     StringList `yaml:"tags"`
	Days     *int       `yaml:"days,omitempty"`
	MinScore *int       `yaml:"min_score,omitempty"`
	MinFavs  *int       `yaml:"min_favs,omitempty"`
	Ratings  StringList `yaml:"ratings,omitempty"`
}

// Searches keeps the searches in file order
type Searches []Search

// UnmarshalYAML implements yaml.Unmarshaler
func (s *Searches) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: searches must be a mapping of name to settings", node.Line)
	}

	out := make(Searches, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		var f searchFields
		if err := value.Decode(&f); err != nil {
			return fmt.Errorf("search %q: %w", key.Value, err)
		}

		out = append(out, Search{
			Name:     key.Value,
			Tags:     firstList(f.Tags, f.Tag),
			Days:     firstInt(f.Days, f.DaysToCheck),
			MinScore: firstInt(f.MinScore, f.Score),
			MinFavs:  f.MinFavs,
			Ratings:  firstList(f.Ratings, f.Rating),
		})
	}

	*s = out
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (s Searches) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, search := range s {
		var value yaml.Node
		if err := value.Encode(searchOut{
			Tags:     search.Tags,
			Days:     search.Days,
			MinScore: search.MinScore,
			MinFavs:  search.MinFavs,
			Ratings:  search.Ratings,
		}); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: search.Name},
			&value,
		)
	}
	return node, nil
}

func firstList(a, b StringList) StringList {
	if len(a) > 0 {
		return a
	}
	return b
}

func firstInt(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}

// SearchOptions are the effective settings of one search
type SearchOptions struct {
	Name     string
	Tags     []string
	Days     int
	MinScore int
	MinFavs  int
	Ratings  []string
}

// Options merges a search with default_search
func (c *Config) Options(s Search) SearchOptions {
	opts := SearchOptions{
		Name:     s.Name,
		Tags:     s.Tags,
		Days:     c.DefaultSearch.Days,
		MinScore: c.DefaultSearch.MinScore,
		MinFavs:  c.DefaultSearch.MinFavs,
		Ratings:  c.DefaultSearch.Ratings,
	}
	if s.Days != nil {
		opts.Days = *s.Days
	}
	if s.MinScore != nil {
		opts.MinScore = *s.MinScore
	}
	if s.MinFavs != nil {
		opts.MinFavs = *s.MinFavs
	}
	if len(s.Ratings) > 0 {
		opts.Ratings = s.Ratings
	}
	return opts
}

// EarliestDate returns the first day included when checking the given number
// of days back from today, clamped to [0001-01-01, today].
func EarliestDate(days int, today time.Time) time.Time {
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	first := time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

	if days < 1 {
		return today
	}
	span := today.Sub(first) / (24 * time.Hour)
	if int64(days-1) > int64(span) {
		return first
	}
	return today.AddDate(0, 0, -(days - 1))
}

// DefaultConfigText is written when no configuration file exists
const DefaultConfigText = `toggles:
  include_md5: false

default_search:
  days: 1
  min_score: 0
  min_favs: 0
  ratings:
    - s

blacklist:

searches:
  cats:
    tags:
      - cat
      - yellow_fur
  dogs:
    tags:
      - dog
      - brown_fur

# Any default_search setting can be overridden for a single search:
#
# searches:
#   dogs:
#     days: 30
#     min_score: 10
#     min_favs: 10
#     ratings:
#       - s
#       - q
#       - e
#     tags:
#       - dog
#       - brown_fur
`

// WriteDefault creates a new configuration file with the default contents.
// It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(DefaultConfigText); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
