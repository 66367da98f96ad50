package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAnnotation_Key tests that the position key ignores text and note
func TestAnnotation_Key(t *testing.T) {
	a := Annotation{Page: 12, Pos0: "0.1.3", Pos1: "0.1.9", Text: "first reading"}
	b := Annotation{Page: 12, Pos0: "0.1.3", Pos1: "0.1.9", Text: "second reading", Note: "changed"}
	c := Annotation{Page: 12, Pos0: "0.1.3", Pos1: "0.2.0", Text: "first reading"}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

// TestAnnotation_UnionKey tests that the union key separates same-position
// annotations with different text
func TestAnnotation_UnionKey(t *testing.T) {
	a := Annotation{Page: 3, Pos0: "10", Pos1: "20", Text: "The quick brown fox"}
	b := Annotation{Page: 3, Pos0: "10", Pos1: "20", Text: "A different passage"}
	c := Annotation{Page: 3, Pos0: "10", Pos1: "20", Text: "  the QUICK   brown fox "}

	assert.NotEqual(t, a.UnionKey(), b.UnionKey())
	// Whitespace and case differences collapse to the same key.
	assert.Equal(t, a.UnionKey(), c.UnionKey())
}

// TestNormaliseText tests whitespace and case normalisation
func TestNormaliseText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already normal", "plain text", "plain text"},
		{"mixed case", "The Quick Brown Fox", "the quick brown fox"},
		{"collapsed whitespace", "a  b\tc\nd", "a b c d"},
		{"surrounding space", "  trimmed  ", "trimmed"},
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormaliseText(tt.in))
		})
	}
}

// TestSortAnnotations tests page-then-position ordering
func TestSortAnnotations(t *testing.T) {
	anns := []Annotation{
		{Page: 2, Pos0: "10", Pos1: "15", Text: "third"},
		{Page: 1, Pos0: "9", Pos1: "12", Text: "second"},
		{Page: 1, Pos0: "10", Pos1: "11", Text: "numeric sorts after 9"},
		{Page: 1, Pos0: "2", Pos1: "5", Text: "first"},
	}

	SortAnnotations(anns)

	assert.Equal(t, "first", anns[0].Text)
	assert.Equal(t, "second", anns[1].Text)
	assert.Equal(t, "numeric sorts after 9", anns[2].Text)
	assert.Equal(t, "third", anns[3].Text)
}

// TestSortAnnotations_EpubPositions tests lexicographic ordering of
// non-numeric position markers
func TestSortAnnotations_EpubPositions(t *testing.T) {
	anns := []Annotation{
		{Page: 1, Pos0: "/body/DocFragment[2]/p[4]/text().3", Text: "b"},
		{Page: 1, Pos0: "/body/DocFragment[2]/p[1]/text().0", Text: "a"},
	}

	SortAnnotations(anns)

	assert.Equal(t, "a", anns[0].Text)
	assert.Equal(t, "b", anns[1].Text)
}

// TestSortAnnotations_Stable tests that equal-position annotations keep
// their arrival order
func TestSortAnnotations_Stable(t *testing.T) {
	anns := []Annotation{
		{Page: 1, Pos0: "5", Pos1: "8", Text: "kept first"},
		{Page: 1, Pos0: "5", Pos1: "8", Text: "kept second"},
	}

	SortAnnotations(anns)

	assert.Equal(t, "kept first", anns[0].Text)
	assert.Equal(t, "kept second", anns[1].Text)
}
