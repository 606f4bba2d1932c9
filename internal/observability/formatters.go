// Package observability renders generation progress for the terminal.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/jonathan/painting-generator/internal/events"
	"github.com/jonathan/painting-generator/internal/progress"
)

const (
	// boxWidth is the width of a rendered generation box
	boxWidth = 64
	// barWidth is the width of a progress bar inside the box
	barWidth = 30
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Printer writes progress output to a terminal.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // terminal output; errors are not recoverable
func (p *Printer) printBox(title string, lines []string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)
	for _, line := range lines {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintEvent writes a one-line description of e.
//
//nolint:errcheck // terminal output; errors are not recoverable
func (p *Printer) PrintEvent(e events.Event) {
	switch ev := e.(type) {
	case events.Connected:
		green.Fprintf(p.out, "✓ %s\n", ev.Message)
	case events.GenerationStarted:
		cyan.Fprintf(p.out, "▶ generating %d paintings for %s\n", ev.Quantity, ev.TitleID)
	case events.IdeaProgress:
		fmt.Fprintf(p.out, "  idea %d/%d...\n", ev.Current, ev.Total)
	case events.IdeaCreated:
		fmt.Fprintf(p.out, "  idea #%d: %s\n", ev.IdeaIndex+1, ev.Summary)
	case events.IdeasComplete:
		cyan.Fprintf(p.out, "▶ ideas complete, painting...\n")
	case events.ImageProcessingStarted:
		faint.Fprintf(p.out, "  painting #%d started\n", ev.IdeaIndex+1)
	case events.ImageCompleted:
		green.Fprintf(p.out, "  ✓ painting #%d: %s\n", ev.IdeaIndex+1, ev.ImageURL)
	case events.ImageFailed:
		yellow.Fprintf(p.out, "  ✗ painting #%d failed: %s\n", ev.IdeaIndex+1, ev.Error)
	case events.GenerationComplete:
		green.Fprintf(p.out, "✓ generation complete for %s\n", ev.TitleID)
	case events.GenerationError:
		red.Fprintf(p.out, "✗ generation failed for %s: %s\n", ev.TitleID, ev.Error)
	}
}

// PrintDisconnected reports that the server closed the event stream.
//
//nolint:errcheck // terminal output; errors are not recoverable
func (p *Printer) PrintDisconnected() {
	yellow.Fprintln(p.out, "! event stream closed by server")
}

// PrintGeneration writes a summary box for g.
func (p *Printer) PrintGeneration(g *progress.Generation) {
	if g == nil {
		return
	}

	lines := []string{
		fmt.Sprintf("Phase:   %s", g.Phase),
		fmt.Sprintf("Ideas:   %s %d/%d", bar(g.IdeaFraction()), g.IdeaCurrent, g.Total),
		fmt.Sprintf("Overall: %s %3.0f%%", bar(g.OverallFraction()), g.OverallFraction()*100),
		"",
	}
	for _, slot := range g.Slots {
		line := fmt.Sprintf("%2d. %-11s %s", slot.Index+1, slot.Status, slot.Summary)
		switch slot.Status {
		case progress.SlotCompleted:
			line = fmt.Sprintf("%2d. %-11s %s", slot.Index+1, slot.Status, slot.ImageURL)
		case progress.SlotFailed:
			line = fmt.Sprintf("%2d. %-11s %s", slot.Index+1, slot.Status, slot.Error)
		}
		lines = append(lines, line)
	}
	if g.Error != "" {
		lines = append(lines, "", "Error: "+g.Error)
	}

	p.printBox("Title "+g.TitleID.String(), lines)
}

func bar(fraction float64) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * barWidth)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
