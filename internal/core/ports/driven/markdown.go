package driven

import "github.com/t5k6/marginalia/internal/core/domain"

// HighlightParser extracts annotations from a rendered document body.
// Parsing must be tolerant: user edits around and inside highlight blocks
// are expected, and anything that is not recognisably a highlight is simply
// not an annotation.
type HighlightParser interface {
	// ExtractHighlights returns the annotations found in body, in document
	// order. An error means the body could not be parsed at all; such a
	// document is unsafe to merge mechanically.
	ExtractHighlights(body string) ([]domain.Annotation, error)
}

// BodyRenderer turns annotations back into a markdown body following the
// document layout conventions. Render then ExtractHighlights must round-trip
// losslessly for unedited documents.
type BodyRenderer interface {
	// Render produces a complete document body for the annotations, which
	// must already be sorted.
	Render(book domain.BookIdentity, anns []domain.Annotation) (string, error)
}
