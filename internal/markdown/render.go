package markdown

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
)

// markerPrefix opens the metadata comment above each highlight blockquote.
const markerPrefix = "<!-- highlight "

// Ensure Renderer implements the interface.
var _ driven.BodyRenderer = (*Renderer)(nil)

// Renderer produces the canonical markdown body for a set of annotations.
// Output is deterministic: the same annotations always render to the same
// bytes, so an unchanged re-import is a byte-identical no-op.
type Renderer struct{}

// NewRenderer creates a renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render writes the document body: title heading, author line, chapter
// headings where the chapter changes, then one highlight block per
// annotation. Annotations must already be sorted.
func (r *Renderer) Render(book domain.BookIdentity, anns []domain.Annotation) (string, error) {
	var b strings.Builder

	title := book.Title
	if title == "" {
		title = "Highlights"
	}
	fmt.Fprintf(&b, "# %s\n", title)
	if len(book.Authors) > 0 {
		fmt.Fprintf(&b, "\n*%s*\n", strings.Join(book.Authors, ", "))
	}

	chapter := ""
	for _, ann := range anns {
		b.WriteString("\n")
		if ann.Chapter != "" && ann.Chapter != chapter {
			chapter = ann.Chapter
			fmt.Fprintf(&b, "## %s\n\n", chapter)
		}

		b.WriteString(renderMarker(ann))
		for _, line := range splitLines(ann.Text) {
			b.WriteString("> ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		if ann.Note != "" {
			b.WriteString("\n**Note:** ")
			b.WriteString(strings.Join(splitLines(ann.Note), "\n"))
			b.WriteString("\n")
		}
	}

	return b.String(), nil
}

// renderMarker writes the metadata comment. Page is plain, everything else
// is quoted so device position strings and timestamps survive verbatim.
// Empty optional fields are omitted.
func renderMarker(ann domain.Annotation) string {
	var b strings.Builder
	b.WriteString(markerPrefix)
	fmt.Fprintf(&b, "page=%d pos0=%s pos1=%s", ann.Page, strconv.Quote(ann.Pos0), strconv.Quote(ann.Pos1))
	if ann.Datetime != "" {
		fmt.Fprintf(&b, " datetime=%s", strconv.Quote(ann.Datetime))
	}
	if ann.Color != "" {
		fmt.Fprintf(&b, " color=%s", strconv.Quote(ann.Color))
	}
	b.WriteString(" -->\n")
	return b.String()
}

// splitLines breaks s on newlines, dropping blank lines so the text renders
// as one paragraph. Blank separation cannot round-trip through a blockquote
// anyway, and highlight comparisons normalise whitespace before comparing.
func splitLines(s string) []string {
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
