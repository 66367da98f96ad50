package services

import (
	"fmt"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
)

// MergeEngine produces new document bodies from existing content and
// incoming annotations. Every method is a pure function of its inputs:
// the engine performs no I/O and takes no locks, so the commit layer can
// hold the document lock for as short a time as the merge maths allows.
type MergeEngine struct {
	parser   driven.HighlightParser
	renderer driven.BodyRenderer
}

// NewMergeEngine creates a merge engine over the given parser and renderer.
func NewMergeEngine(parser driven.HighlightParser, renderer driven.BodyRenderer) *MergeEngine {
	return &MergeEngine{parser: parser, renderer: renderer}
}

// RenderIncoming renders the device payload as a standalone body, sorted by
// reading order. Used for creation, replace, keep-both, and as the "theirs"
// side of a three-way merge.
func (e *MergeEngine) RenderIncoming(book domain.BookIdentity, incoming []domain.Annotation) (string, error) {
	anns := make([]domain.Annotation, len(incoming))
	copy(anns, incoming)
	domain.SortAnnotations(anns)

	body, err := e.renderer.Render(book, anns)
	if err != nil {
		return "", fmt.Errorf("render incoming annotations: %w", err)
	}
	return body, nil
}

// TwoWay unions the document's current annotations with the incoming set
// and re-renders. Used when no trustworthy snapshot baseline exists.
// De-duplication keys on position plus full normalised text, so two
// different passages sharing a position both survive. The union loses exact
// body formatting, never highlight content.
func (e *MergeEngine) TwoWay(book domain.BookIdentity, currentBody string, incoming []domain.Annotation) (string, error) {
	current, err := e.parser.ExtractHighlights(currentBody)
	if err != nil {
		return "", fmt.Errorf("extract current highlights: %w", err)
	}

	seen := make(map[string]struct{}, len(current)+len(incoming))
	union := make([]domain.Annotation, 0, len(current)+len(incoming))
	add := func(anns []domain.Annotation) {
		for _, ann := range anns {
			key := ann.UnionKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			union = append(union, ann)
		}
	}
	// Vault side first, so the document's variant wins exact duplicates.
	add(current)
	add(incoming)

	domain.SortAnnotations(union)
	body, err := e.renderer.Render(book, union)
	if err != nil {
		return "", fmt.Errorf("render merged annotations: %w", err)
	}
	return body, nil
}

// ThreeWay reconciles the current body with the incoming render against the
// snapshot baseline. The second return reports whether the output contains
// conflict regions; committers must flag the document accordingly.
func (e *MergeEngine) ThreeWay(baseline, currentBody, incomingBody string) (string, bool) {
	res := diff3(baseline, currentBody, incomingBody)
	return res.body, res.hasConflict
}

// CountHighlights reports how many highlights a body contains, for outcome
// reporting. Unparseable bodies count as zero rather than failing.
func (e *MergeEngine) CountHighlights(body string) int {
	anns, err := e.parser.ExtractHighlights(body)
	if err != nil {
		return 0
	}
	return len(anns)
}
