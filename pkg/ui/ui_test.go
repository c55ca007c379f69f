package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"e621dl/pkg/filter"
)

func TestConsoleQuiet(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true)

	c.Info("hidden %d", 1)
	c.Warning("hidden")
	c.Success("hidden")
	c.Decision(1, filter.Accepted)
	c.Error("shown %s", "error")
	c.Notice("new version")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[!] shown error")
	assert.Contains(t, out, "[i] new version")
}

func TestConsoleUncolored(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, false)

	c.Decision(42, filter.RatingRejected)
	c.Downloaded(43, 2048, true)
	c.Field("version", "5.0.0")

	assert.Equal(t,
		"[post] 42 rating conflict\n[✓] 43 resumed (2.0 kB)\nversion: 5.0.0\n",
		buf.String())
	assert.NotContains(t, buf.String(), "\033[")
}

func TestTally(t *testing.T) {
	tally := NewTally("cats")
	tally.Add(filter.Accepted)
	tally.Add(filter.Accepted)
	tally.Add(filter.Blacklisted)
	tally.Downloaded = 2
	tally.Bytes = 1500

	assert.Equal(t, 2, tally.Count(filter.Accepted))
	assert.Equal(t, 0, tally.Count(filter.ScoreRejected))
	assert.Equal(t, 3, tally.Total())

	out := tally.Render()
	for _, d := range filter.Decisions {
		assert.Contains(t, out, d.String())
	}
	assert.Contains(t, out, "cats")
	assert.Contains(t, out, "2 downloaded (1.5 kB)")
	assert.True(t, strings.Contains(out, "╭"), "rounded border")
}
