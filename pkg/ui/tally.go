package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"e621dl/pkg/filter"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FFFF")).
			Bold(true).
			Padding(0, 1).
			Align(lipgloss.Center)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00")).
			Padding(0, 1).
			Align(lipgloss.Center)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#B0B0B0"))
)

// Tally counts what happened to the posts of one search
type Tally struct {
	Label string

	counts map[filter.Decision]int

	Downloaded int
	Resumed    int
	Failed     int
	Bytes      int64
}

// NewTally creates an empty tally for the search called label
func NewTally(label string) *Tally {
	return &Tally{Label: label, counts: make(map[filter.Decision]int)}
}

// Add records one decision
func (t *Tally) Add(d filter.Decision) {
	t.counts[d]++
}

// Count returns how many posts got decision d
func (t *Tally) Count(d filter.Decision) int {
	return t.counts[d]
}

// Total returns the number of posts classified
func (t *Tally) Total() int {
	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}

// Render draws the tally as a boxed table, one column per decision
func (t *Tally) Render() string {
	columns := make([]string, 0, len(filter.Decisions))
	for _, d := range filter.Decisions {
		name := d.String()
		width := lipgloss.Width(name) + 2
		col := lipgloss.JoinVertical(lipgloss.Center,
			headerStyle.Width(width).Render(name),
			countStyle.Width(width).Render(strconv.Itoa(t.Count(d))),
		)
		columns = append(columns, col)
	}

	footer := fmt.Sprintf("%d downloaded (%s), %d resumed, %d failed",
		t.Downloaded, humanize.Bytes(uint64(t.Bytes)), t.Resumed, t.Failed)

	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(t.Label),
		lipgloss.JoinHorizontal(lipgloss.Top, columns...),
		footerStyle.Render(footer),
	)
	return boxStyle.Render(body)
}

// Decision prints the status line for one classified post
func (c *Console) Decision(postID int64, d filter.Decision) {
	if c.quiet {
		return
	}
	color := Dim
	switch d {
	case filter.Accepted:
		color = Green
	case filter.AlreadyPresent:
		color = Cyan
	}
	fmt.Fprintf(c.out, "%s %d %s\n", c.paint(Magenta)("[post]"), postID, c.paint(color)(d.String()))
}

// Downloaded prints the status line for a committed file
func (c *Console) Downloaded(postID int64, size int64, resumed bool) {
	how := "downloaded"
	if resumed {
		how = "resumed"
	}
	c.Success("%d %s (%s)", postID, how, humanize.Bytes(uint64(size)))
}

// Tally prints the rendered tally
func (c *Console) Tally(t *Tally) {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.out, t.Render())
}
