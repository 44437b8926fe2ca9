// Package ui renders search outcomes and index status for the
// terminal. Styled output is used on a TTY, plain text otherwise, so
// piped output stays machine-friendly.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/search"
)

// Printer writes human-readable output.
type Printer struct {
	out    io.Writer
	styles Styles
}

// NewPrinter creates a printer for the given writer, with styling
// enabled only when the writer is a terminal.
func NewPrinter(out io.Writer) *Printer {
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return newPrinter(out, styled)
}

func newPrinter(out io.Writer, styled bool) *Printer {
	styles := PlainStyles()
	if styled {
		styles = DefaultStyles()
	}
	return &Printer{out: out, styles: styles}
}

// Outcome renders a search outcome: ranked passages with scores and
// citations, or the no-evidence notice.
func (p *Printer) Outcome(query string, outcome *search.Outcome) {
	if outcome.NoEvidence {
		p.NoEvidence(query)
		return
	}

	fmt.Fprintln(p.out, p.styles.Header.Render(fmt.Sprintf("Results for %q", query)))
	fmt.Fprintln(p.out)

	for i, r := range outcome.Results {
		src := outcome.Sources[i]
		heading := fmt.Sprintf("%d. %s", i+1, p.styles.Source.Render(formatSource(src)))
		score := p.styles.Score.Render(fmt.Sprintf("score %.3f", r.Score))
		fmt.Fprintf(p.out, "%s  %s\n", heading, score)
		fmt.Fprintln(p.out, indent(strings.TrimSpace(r.Passage.Text), "   "))
		fmt.Fprintln(p.out)
	}
}

// NoEvidence renders the nothing-relevant-found notice. This is a
// successful outcome, not an error.
func (p *Printer) NoEvidence(query string) {
	fmt.Fprintln(p.out, p.styles.Warning.Render(
		fmt.Sprintf("No relevant passages found for %q.", query)))
	fmt.Fprintln(p.out, p.styles.Label.Render(
		"The indexed documents do not appear to cover this topic."))
}

// Status renders index status.
func (p *Printer) Status(status *index.Status) {
	fmt.Fprintln(p.out, p.styles.Header.Render("Index status"))
	rows := []struct {
		label string
		value string
	}{
		{"Data directory", status.DataDir},
		{"Passages", fmt.Sprintf("%d", status.PassageCount)},
		{"Vectors", fmt.Sprintf("%d", status.VectorCount)},
		{"Dimensions", fmt.Sprintf("%d", status.Dimensions)},
		{"Embedding model", status.Model},
	}
	for _, row := range rows {
		fmt.Fprintf(p.out, "  %s %s\n",
			p.styles.Label.Render(fmt.Sprintf("%-16s", row.label)),
			row.value)
	}
}

// IngestStats renders an ingestion summary.
func (p *Printer) IngestStats(stats *index.IngestStats) {
	fmt.Fprintln(p.out, p.styles.Success.Render(fmt.Sprintf(
		"Indexed %d new passages (%d read, %d already present).",
		stats.Inserted, stats.Read, stats.Skipped)))
}

// Error renders an error with its suggestion, when present.
func (p *Printer) Error(err error) {
	fmt.Fprintln(p.out, p.styles.Error.Render("Error: "+err.Error()))
}

func formatSource(s search.Source) string {
	if s.Page > 0 {
		return fmt.Sprintf("%s, page %d", s.Source, s.Page)
	}
	return s.Source
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
