package services

import (
	"fmt"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
)

// Analyzer classifies how an incoming annotation set relates to an existing
// document. It is parser-only: no snapshot or vault state is consulted, so
// CanMergeSafely on the returned match is always false until the locator
// fills it in.
type Analyzer struct {
	parser driven.HighlightParser
}

// NewAnalyzer creates a match analyzer.
func NewAnalyzer(parser driven.HighlightParser) *Analyzer {
	return &Analyzer{parser: parser}
}

// Analyze extracts the document's current highlights and compares them with
// the incoming set by position key. An incoming annotation absent from the
// document counts as new; one present whose text or note differs after
// normalisation counts as modified.
//
// A document whose body cannot be parsed returns an error; such a candidate
// is unanalysable and the caller must not merge into it mechanically.
func (a *Analyzer) Analyze(doc domain.DocumentRecord, incoming []domain.Annotation) (domain.DuplicateMatch, error) {
	existing, err := a.parser.ExtractHighlights(doc.Body)
	if err != nil {
		return domain.DuplicateMatch{}, fmt.Errorf("extract highlights from %s: %w", doc.Path, err)
	}

	byKey := make(map[string]domain.Annotation, len(existing))
	for _, ann := range existing {
		byKey[ann.Key()] = ann
	}

	var newCount, modifiedCount int
	for _, inc := range incoming {
		cur, ok := byKey[inc.Key()]
		if !ok {
			newCount++
			continue
		}
		if domain.NormaliseText(cur.Text) != domain.NormaliseText(inc.Text) ||
			domain.NormaliseText(cur.Note) != domain.NormaliseText(inc.Note) {
			modifiedCount++
		}
	}

	matchType := domain.MatchExact
	switch {
	case modifiedCount > 0:
		matchType = domain.MatchDivergent
	case newCount > 0:
		matchType = domain.MatchUpdated
	}

	return domain.DuplicateMatch{
		Document:      doc,
		Type:          matchType,
		NewCount:      newCount,
		ModifiedCount: modifiedCount,
	}, nil
}
