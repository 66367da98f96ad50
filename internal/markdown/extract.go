package markdown

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
)

// Ensure Parser implements the interface.
var _ driven.HighlightParser = (*Parser)(nil)

// Parser recovers annotations from a rendered document body by walking its
// markdown AST. It keys off the metadata comment the renderer writes above
// each highlight blockquote; everything else in the document, including
// text the user added around and between highlights, is ignored rather
// than rejected.
type Parser struct {
	md goldmark.Markdown
}

// NewParser creates a parser.
func NewParser() *Parser {
	return &Parser{md: goldmark.New()}
}

var (
	pageRe = regexp.MustCompile(`\bpage=(\d+)\b`)
	attrRe = regexp.MustCompile(`\b(pos0|pos1|datetime|color)=("(?:[^"\\]|\\.)*")`)
)

// ExtractHighlights walks the body's AST top to bottom. A metadata comment
// immediately followed by a blockquote yields one annotation; a "**Note:**"
// paragraph directly after that blockquote attaches as its note. Level-two
// headings set the chapter for the highlights beneath them.
func (p *Parser) ExtractHighlights(body string) ([]domain.Annotation, error) {
	source := []byte(body)
	doc := p.md.Parser().Parse(text.NewReader(source))

	var (
		anns    []domain.Annotation
		chapter string
		pending *domain.Annotation // marker seen, blockquote not yet
		last    *domain.Annotation // annotation a note may still attach to
	)

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			if n.Level == 2 {
				chapter = string(n.Text(source))
			}
			pending, last = nil, nil

		case *ast.HTMLBlock:
			pending, last = nil, nil
			raw := strings.TrimSpace(htmlBlockText(n, source))
			if ann, ok := parseMarker(raw); ok {
				ann.Chapter = chapter
				pending = &ann
			}

		case *ast.Blockquote:
			if pending == nil {
				last = nil
				continue
			}
			pending.Text = blockquoteText(n, source)
			anns = append(anns, *pending)
			last = &anns[len(anns)-1]
			pending = nil

		case *ast.Paragraph:
			if last != nil && last.Note == "" {
				if note, ok := parseNote(nodeText(n, source)); ok {
					last.Note = note
					continue
				}
			}
			pending, last = nil, nil

		default:
			pending, last = nil, nil
		}
	}

	return anns, nil
}

// parseMarker decodes a metadata comment. A comment without a page number
// or position pair is user prose, not a highlight.
func parseMarker(raw string) (domain.Annotation, bool) {
	if !strings.HasPrefix(raw, markerPrefix) || !strings.HasSuffix(raw, "-->") {
		return domain.Annotation{}, false
	}

	pm := pageRe.FindStringSubmatch(raw)
	if pm == nil {
		return domain.Annotation{}, false
	}
	page, err := strconv.Atoi(pm[1])
	if err != nil {
		return domain.Annotation{}, false
	}

	ann := domain.Annotation{Page: page}
	seenPos := false
	for _, m := range attrRe.FindAllStringSubmatch(raw, -1) {
		value, err := strconv.Unquote(m[2])
		if err != nil {
			continue
		}
		switch m[1] {
		case "pos0":
			ann.Pos0 = value
			seenPos = true
		case "pos1":
			ann.Pos1 = value
			seenPos = true
		case "datetime":
			ann.Datetime = value
		case "color":
			ann.Color = value
		}
	}
	if !seenPos {
		return domain.Annotation{}, false
	}
	return ann, true
}

// parseNote recognises the rendered note paragraph and strips its label.
func parseNote(raw string) (string, bool) {
	const label = "**Note:** "
	if !strings.HasPrefix(raw, label) {
		return "", false
	}
	return strings.TrimPrefix(raw, label), true
}

// blockquoteText joins the quoted paragraphs back into the highlight text.
func blockquoteText(bq *ast.Blockquote, source []byte) string {
	var parts []string
	for child := bq.FirstChild(); child != nil; child = child.NextSibling() {
		if para, ok := child.(*ast.Paragraph); ok {
			parts = append(parts, nodeText(para, source))
		}
	}
	return strings.Join(parts, "\n\n")
}

// htmlBlockText reassembles an HTML block including its closure line, which
// goldmark stores separately from the body lines.
func htmlBlockText(hb *ast.HTMLBlock, source []byte) string {
	raw := nodeText(hb, source)
	if hb.HasClosure() {
		closure := strings.TrimRight(string(hb.ClosureLine.Value(source)), "\r\n")
		if raw == "" {
			return closure
		}
		raw += "\n" + closure
	}
	return raw
}

// nodeText reassembles a block node's raw source lines, one per segment,
// without their terminators.
func nodeText(n ast.Node, source []byte) string {
	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimRight(string(seg.Value(source)), "\r\n"))
	}
	return strings.Join(parts, "\n")
}
