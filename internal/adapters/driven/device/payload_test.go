package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t5k6/marginalia/internal/core/domain"
)

func TestParsePayloadArrayShape(t *testing.T) {
	data := []byte(`[
		{
			"title": "Kindred",
			"author": "Octavia Butler",
			"partial_md5_checksum": "abc123",
			"identifiers": {"isbn": "9780807083697"},
			"entries": [
				{
					"chapter": "The River",
					"datetime": "2026-03-14 09:21:55",
					"page": 12,
					"pos0": "/body/DocFragment[3]/body/p[1]/text().0",
					"pos1": "/body/DocFragment[3]/body/p[1]/text().40",
					"text": "The trouble began long before.",
					"note": "opening line",
					"color": "yellow"
				},
				{
					"datetime": "2026-03-14 09:25:00",
					"page": 13,
					"text": ""
				}
			]
		}
	]`)

	items, err := ParsePayload(data)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "Kindred", item.Book.Title)
	assert.Equal(t, []string{"Octavia Butler"}, item.Book.Authors)
	assert.Equal(t, "abc123", item.Book.ContentHash)
	require.Len(t, item.Book.Identifiers, 1)
	assert.Equal(t, domain.StrongIdentifier{Scheme: "isbn", Value: "9780807083697"}, item.Book.Identifiers[0])

	// The empty-text entry is a bookmark, not a highlight.
	require.Len(t, item.Annotations, 1)
	ann := item.Annotations[0]
	assert.Equal(t, 12, ann.Page)
	assert.Equal(t, "The River", ann.Chapter)
	assert.Equal(t, "The trouble began long before.", ann.Text)
	assert.Equal(t, "opening line", ann.Note)
	assert.Equal(t, "yellow", ann.Color)
}

func TestParsePayloadDocumentsShape(t *testing.T) {
	data := []byte(`{
		"documents": [
			{
				"title": "Parable of the Sower",
				"authors": ["Octavia Butler"],
				"md5": "def456",
				"entries": [
					{"time": "2026-01-01 08:00:00", "page": "77", "pos0": 102, "pos1": 188, "text": "All that you touch you change.", "drawer": "lighten"}
				]
			}
		]
	}`)

	items, err := ParsePayload(data)
	require.NoError(t, err)
	require.Len(t, items, 1)

	// Numeric positions and string pages are both tolerated.
	ann := items[0].Annotations[0]
	assert.Equal(t, 77, ann.Page)
	assert.Equal(t, "102", ann.Pos0)
	assert.Equal(t, "188", ann.Pos1)
	assert.Equal(t, "2026-01-01 08:00:00", ann.Datetime)
	assert.Equal(t, "lighten", ann.Color)
}

func TestParsePayloadGarbage(t *testing.T) {
	_, err := ParsePayload([]byte(`{"not": "an export"}`))
	require.Error(t, err)

	_, err = ParsePayload([]byte(`hello`))
	require.Error(t, err)
}

func TestLoadPayloadStampsSourcePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"title": "Kindred", "entries": []}]`), 0o644))

	items, err := LoadPayload(path)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, path, items[0].SourcePath)

	_, err = LoadPayload(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, domain.ErrNotFound)
}
