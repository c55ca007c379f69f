package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ANSI color wrappers
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

func plain(text string) string { return text }

// Console writes the one-line status messages of a run. Errors are printed
// even in quiet mode.
type Console struct {
	out   io.Writer
	color bool
	quiet bool
}

// NewConsole creates a console on stdout, colored when stdout is a terminal
func NewConsole(quiet bool) *Console {
	return &Console{
		out:   os.Stdout,
		color: term.IsTerminal(int(os.Stdout.Fd())),
		quiet: quiet,
	}
}

// NewConsoleWriter creates an uncolored console writing to w
func NewConsoleWriter(w io.Writer, quiet bool) *Console {
	return &Console{out: w, quiet: quiet}
}

// Quiet reports whether non-error lines are suppressed
func (c *Console) Quiet() bool {
	return c.quiet
}

func (c *Console) paint(fn func(string) string) func(string) string {
	if !c.color {
		return plain
	}
	return fn
}

func (c *Console) line(marker string, color func(string) string, msg string) {
	fmt.Fprintf(c.out, "%s %s\n", c.paint(color)(marker), msg)
}

// Error prints a failure line
func (c *Console) Error(format string, args ...interface{}) {
	c.line("[!]", Red, fmt.Sprintf(format, args...))
}

// Warning prints a line about something skipped or changed
func (c *Console) Warning(format string, args ...interface{}) {
	if c.quiet {
		return
	}
	c.line("[!]", Yellow, fmt.Sprintf(format, args...))
}

// Success prints a line about something that worked
func (c *Console) Success(format string, args ...interface{}) {
	if c.quiet {
		return
	}
	c.line("[✓]", Green, fmt.Sprintf(format, args...))
}

// Info prints a neutral line
func (c *Console) Info(format string, args ...interface{}) {
	if c.quiet {
		return
	}
	c.line("[i]", Cyan, fmt.Sprintf(format, args...))
}

// Notice prints a highlighted line that is shown even in quiet mode
func (c *Console) Notice(format string, args ...interface{}) {
	c.line("[i]", Magenta, fmt.Sprintf(format, args...))
}

// Field prints a "label: value" pair
func (c *Console) Field(label, value string) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.out, "%s: %s\n", c.paint(Cyan)(label), c.paint(Yellow)(value))
}
