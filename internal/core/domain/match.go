package domain

import "fmt"

// MatchType classifies the relationship between an incoming device payload
// and an existing document's annotations.
type MatchType string

const (
	// MatchExact means the payload adds nothing: every incoming highlight
	// already exists with identical text and note.
	MatchExact MatchType = "exact"

	// MatchUpdated means the payload only adds: new highlights appear, and
	// every overlapping highlight is unchanged.
	MatchUpdated MatchType = "updated"

	// MatchDivergent means at least one overlapping highlight differs in
	// text or note, so the two sides genuinely disagree.
	MatchDivergent MatchType = "divergent"
)

// IsValid reports whether t is one of the declared match types.
func (t MatchType) IsValid() bool {
	switch t {
	case MatchExact, MatchUpdated, MatchDivergent:
		return true
	}
	return false
}

// MatchConfidence qualifies how the candidate document was found.
type MatchConfidence string

const (
	// ConfidenceFull means the candidate was located through an exhaustive
	// tier: identity, index, or a completed scan.
	ConfidenceFull MatchConfidence = "full"

	// ConfidencePartial means the locating scan was cut short, so other
	// candidates may exist that were never examined.
	ConfidencePartial MatchConfidence = "partial"
)

// DuplicateMatch is a located candidate document together with its analysed
// relationship to the incoming payload.
type DuplicateMatch struct {
	// Document is the existing vault document the payload collides with.
	Document DocumentRecord

	// Type classifies the collision.
	Type MatchType

	// Confidence records whether the locating pass was exhaustive.
	Confidence MatchConfidence

	// NewCount is the number of incoming highlights absent from the document.
	NewCount int

	// ModifiedCount is the number of overlapping highlights whose text or
	// note differs between the two sides.
	ModifiedCount int

	// CanMergeSafely reports whether a trustworthy merge base exists: a
	// snapshot is present, passes its integrity check, and belongs to the
	// document's current UID. Set by the locator from snapshot state, never
	// by the analyzer.
	CanMergeSafely bool
}

// Describe renders the match for logs and prompts, e.g.
// "updated (3 new, 0 modified)".
func (m DuplicateMatch) Describe() string {
	return fmt.Sprintf("%s (%d new, %d modified)", m.Type, m.NewCount, m.ModifiedCount)
}

// LocateResult is the outcome of the candidate search: the matches found,
// in discovery order, and whether the search covered the whole vault.
type LocateResult struct {
	Matches    []DuplicateMatch
	Confidence MatchConfidence
}
