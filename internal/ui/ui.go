// Package ui prints run progress and results as colored plain text.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/sokinpui/llm2fs/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
	FaintColor   = color.New(color.Faint)
)

const separator = "------"

// Printer writes human-facing output to W, usually stderr.
type Printer struct {
	W io.Writer
}

// New returns a Printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{W: w}
}

func (p *Printer) Header(format string, a ...any) {
	HeaderColor.Fprintf(p.W, format+"\n", a...)
}

func (p *Printer) Info(format string, a ...any) {
	InfoColor.Fprintf(p.W, format+"\n", a...)
}

func (p *Printer) Success(format string, a ...any) {
	SuccessColor.Fprintf(p.W, format+"\n", a...)
}

func (p *Printer) Warning(format string, a ...any) {
	WarningColor.Fprintf(p.W, format+"\n", a...)
}

func (p *Printer) Error(format string, a ...any) {
	ErrorColor.Fprintf(p.W, format+"\n", a...)
}

// Result prints the block for one change: file, action, reason and status.
func (p *Printer) Result(res model.Result) {
	fmt.Fprint(p.W, "=> File: ")
	PathColor.Fprintln(p.W, res.Path)
	fmt.Fprintf(p.W, "=> Action: %s\n", res.Action)
	if res.Reason != "" {
		fmt.Fprintf(p.W, "=> Reason: %s\n", res.Reason)
	}

	switch res.Outcome {
	case model.OutcomeApplied:
		p.Success("✓ %s", res.Message)
	case model.OutcomeSkipped:
		p.Warning("⚠ %s", res.Message)
	default:
		p.Error("✗ %s", res.Message)
	}

	if res.Preview != "" {
		for _, line := range strings.Split(strings.TrimSuffix(res.Preview, "\n"), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				SuccessColor.Fprintln(p.W, "    "+line)
			case strings.HasPrefix(line, "-"):
				ErrorColor.Fprintln(p.W, "    "+line)
			default:
				FaintColor.Fprintln(p.W, "    "+line)
			}
		}
	}
	fmt.Fprintln(p.W)
}

// Report prints a whole run: explanation, one block per change, conclusion
// and a summary.
func (p *Printer) Report(r *model.Report) {
	if r.Explanation != "" {
		fmt.Fprintln(p.W, r.Explanation)
	}
	if len(r.Results) > 0 {
		fmt.Fprintln(p.W, separator)
		for _, res := range r.Results {
			p.Result(res)
		}
		fmt.Fprintln(p.W, separator)
	}
	if r.Conclusion != "" {
		fmt.Fprintln(p.W, r.Conclusion)
	}
	if r.Aborted {
		p.Error("Stopped after the first failure; later changes were not attempted.")
	}
	if r.DryRun && len(r.Results) > 0 {
		p.Info("Dry run: no files were written.")
	}
	p.Summary(r.Summary())
}

// Summary prints the grouped list of touched paths.
func (p *Printer) Summary(s model.Summary) {
	if s.Message != "" {
		p.Header(s.Message)
	}

	groups := []struct {
		title string
		paths []string
		c     *color.Color
	}{
		{"Created", s.Created, SuccessColor},
		{"Modified", s.Modified, SuccessColor},
		{"Renamed", s.Renamed, SuccessColor},
		{"Deleted", s.Deleted, SuccessColor},
		{"Skipped", s.Skipped, WarningColor},
		{"Failed", s.Failed, ErrorColor},
	}

	empty := true
	for _, g := range groups {
		if len(g.paths) == 0 {
			continue
		}
		empty = false
		g.c.Fprintf(p.W, "%s %d file(s):\n", g.title, len(g.paths))
		for _, path := range g.paths {
			fmt.Fprintf(p.W, "  - %s\n", path)
		}
	}
	if empty && s.Message == "" {
		p.Info("No files were updated.")
	}
}

// ProgressBar draws a single-line progress bar.
type ProgressBar struct {
	w       io.Writer
	total   int
	prefix  string
	current int
}

func NewProgressBar(w io.Writer, total int, prefix string) *ProgressBar {
	return &ProgressBar{w: w, total: total, prefix: prefix}
}

// Set moves the bar to current of total.
func (p *ProgressBar) Set(current, total int) {
	p.current, p.total = current, total
	p.draw()
}

func (p *ProgressBar) Finish() {
	if p.total > 0 {
		fmt.Fprintln(p.w)
	}
}

func (p *ProgressBar) draw() {
	if p.total == 0 {
		return
	}
	const barLength = 40
	percent := float64(p.current) / float64(p.total)
	filledLength := int(percent * barLength)
	bar := strings.Repeat("█", filledLength) + strings.Repeat("-", barLength-filledLength)

	fmt.Fprintf(p.w, "\r%s |%s| [%d/%d] %.1f%%", p.prefix, bar, p.current, p.total, percent*100)
}
