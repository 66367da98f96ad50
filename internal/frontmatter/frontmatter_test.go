package frontmatter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t5k6/marginalia/internal/core/domain"
)

// TestParse_OwnedKeys tests extraction of the keys the importer owns
func TestParse_OwnedKeys(t *testing.T) {
	content := `---
uid: 0195c2f0-a1b2-7000-8000-abcdef012345
title: Dune
authors:
  - Frank Herbert
conflicts: unresolved
---

## Highlights

> A beginning is the time for taking the most delicate care.
`

	fm, body, err := Parse(content)
	require.NoError(t, err)

	assert.Equal(t, "0195c2f0-a1b2-7000-8000-abcdef012345", fm.UID)
	assert.Equal(t, "Dune", fm.Title)
	assert.Equal(t, []string{"Frank Herbert"}, fm.Authors)
	assert.True(t, fm.HasUnresolvedConflicts())
	assert.True(t, strings.HasPrefix(body, "## Highlights"))
}

// TestParse_ExtraKeysPreserved tests that unknown keys survive a round trip
func TestParse_ExtraKeysPreserved(t *testing.T) {
	content := `---
uid: abc-123
title: Dune
tags:
  - reading
  - sci-fi
rating: 5
---

body text
`

	fm, body, err := Parse(content)
	require.NoError(t, err)
	assert.Equal(t, 5, fm.Extra["rating"])
	assert.Contains(t, fm.Extra, "tags")

	out, err := Render(fm, body)
	require.NoError(t, err)

	fm2, body2, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, fm.UID, fm2.UID)
	assert.Equal(t, fm.Extra["rating"], fm2.Extra["rating"])
	assert.Equal(t, body, body2)
}

// TestParse_NoFrontmatter tests documents without a frontmatter block
func TestParse_NoFrontmatter(t *testing.T) {
	content := "# Just a heading\n\nplain body\n"

	fm, body, err := Parse(content)
	require.NoError(t, err)
	assert.Empty(t, fm.UID)
	assert.Equal(t, content, body)
}

// TestParse_MalformedYAML tests that broken frontmatter is an error
func TestParse_MalformedYAML(t *testing.T) {
	content := "---\nuid: [unclosed\n---\n\nbody\n"

	_, _, err := Parse(content)
	assert.Error(t, err)
}

// TestParse_BodyWithRuleLines tests that "---" in the body is not treated
// as a delimiter
func TestParse_BodyWithRuleLines(t *testing.T) {
	content := "---\nuid: abc\n---\n\nabove\n\n---\n\nbelow\n"

	fm, body, err := Parse(content)
	require.NoError(t, err)
	assert.Equal(t, "abc", fm.UID)
	assert.Contains(t, body, "---")
	assert.Contains(t, body, "below")
}

// TestParse_UnterminatedBlock tests a document that opens but never closes
// a frontmatter block
func TestParse_UnterminatedBlock(t *testing.T) {
	content := "---\nuid: abc\nno closing line\n"

	fm, body, err := Parse(content)
	require.NoError(t, err)
	assert.Empty(t, fm.UID)
	assert.Equal(t, content, body)
}

// TestRender_Deterministic tests that rendering the same inputs twice
// produces identical bytes
func TestRender_Deterministic(t *testing.T) {
	fm := domain.Frontmatter{
		UID:     "abc-123",
		Title:   "Dune",
		Authors: []string{"Frank Herbert"},
		Extra:   map[string]any{"zeta": 1, "alpha": 2, "mid": 3},
	}

	a, err := Render(fm, "body\n")
	require.NoError(t, err)
	b, err := Render(fm, "body\n")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "---\nuid: abc-123\n"))
}

// TestRender_ZeroFrontmatter tests that an empty Frontmatter renders body only
func TestRender_ZeroFrontmatter(t *testing.T) {
	out, err := Render(domain.Frontmatter{}, "just the body\n")
	require.NoError(t, err)
	assert.Equal(t, "just the body\n", out)
}

// TestRender_TrailingNewline tests that a rendered document always ends
// with a newline
func TestRender_TrailingNewline(t *testing.T) {
	out, err := Render(domain.Frontmatter{UID: "abc"}, "no trailing newline")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

// TestRoundTrip_CRLFDelimiters tests parsing a file saved with CRLF endings
func TestRoundTrip_CRLFDelimiters(t *testing.T) {
	content := "---\r\nuid: abc\r\n---\r\n\r\nbody\r\n"

	fm, body, err := Parse(content)
	require.NoError(t, err)
	assert.Equal(t, "abc", fm.UID)
	assert.Contains(t, body, "body")
}
