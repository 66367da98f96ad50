// Package frontmatter reads and writes the YAML frontmatter block of
// highlight documents. Keys the importer does not own round-trip through
// domain.Frontmatter.Extra, so user- and plugin-added metadata survives
// every rewrite.
package frontmatter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/t5k6/marginalia/internal/core/domain"
)

const delimiter = "---"

// payload mirrors domain.Frontmatter for YAML round-tripping. Unrecognised
// keys land in the inline map on decode and are re-emitted on encode.
type payload struct {
	UID       string         `yaml:"uid,omitempty"`
	Title     string         `yaml:"title,omitempty"`
	Authors   []string       `yaml:"authors,omitempty"`
	Conflicts string         `yaml:"conflicts,omitempty"`
	Extra     map[string]any `yaml:",inline"`
}

// Parse splits content into frontmatter and body. A document without an
// opening "---" line has no frontmatter: the zero Frontmatter and the whole
// content are returned. Malformed YAML inside the block is an error; the
// caller must treat such a document as unsafe to merge mechanically.
func Parse(content string) (domain.Frontmatter, string, error) {
	raw, body, found := split(content)
	if !found {
		return domain.Frontmatter{}, content, nil
	}

	var p payload
	if err := yaml.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Frontmatter{}, "", fmt.Errorf("parse frontmatter: %w", err)
	}

	return domain.Frontmatter{
		UID:       p.UID,
		Title:     p.Title,
		Authors:   p.Authors,
		Conflicts: p.Conflicts,
		Extra:     p.Extra,
	}, strings.TrimPrefix(body, "\n"), nil
}

// Render serialises fm above body as a complete document. Owned keys come
// first in a fixed order; extra keys follow in the encoder's sorted order,
// so rendering is deterministic. A zero Frontmatter renders as body alone.
func Render(fm domain.Frontmatter, body string) (string, error) {
	body = strings.TrimLeft(body, "\n")
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}

	p := payload{
		UID:       fm.UID,
		Title:     fm.Title,
		Authors:   fm.Authors,
		Conflicts: fm.Conflicts,
		Extra:     fm.Extra,
	}
	if p.UID == "" && p.Title == "" && len(p.Authors) == 0 && p.Conflicts == "" && len(p.Extra) == 0 {
		return body, nil
	}

	raw, err := yaml.Marshal(&p)
	if err != nil {
		return "", fmt.Errorf("render frontmatter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(delimiter)
	sb.WriteByte('\n')
	sb.Write(raw)
	sb.WriteString(delimiter)
	sb.WriteString("\n\n")
	sb.WriteString(body)
	return sb.String(), nil
}

// split separates the frontmatter block from the body. The block opens with
// a "---" line at the very start of the document and closes at the next
// "---" or "..." line. "---" lines in the body are untouched because the
// search stops at the first closing delimiter.
func split(content string) (raw, body string, found bool) {
	first, rest, ok := strings.Cut(content, "\n")
	if !ok || strings.TrimRight(first, "\r") != delimiter {
		return "", content, false
	}

	for searched := 0; ; {
		idx := strings.Index(rest[searched:], "\n")
		if idx < 0 {
			if strings.TrimRight(rest[searched:], "\r") == delimiter {
				return rest[:searched], "", true
			}
			return "", content, false
		}
		line := strings.TrimRight(rest[searched:searched+idx], "\r")
		if line == delimiter || line == "..." {
			return rest[:searched], rest[searched+idx+1:], true
		}
		searched += idx + 1
	}
}
