package domain

// OutcomeStatus is the terminal state of one book's import.
type OutcomeStatus string

const (
	// OutcomeCreated means no duplicate existed and a fresh document was written.
	OutcomeCreated OutcomeStatus = "created"

	// OutcomeMerged means an existing document was combined with the payload
	// following an explicit user choice.
	OutcomeMerged OutcomeStatus = "merged"

	// OutcomeAutoMerged means the safe-update fast path merged without
	// prompting.
	OutcomeAutoMerged OutcomeStatus = "auto-merged"

	// OutcomeKeptBoth means the existing document was left alone and the
	// payload was written to a sibling file.
	OutcomeKeptBoth OutcomeStatus = "kept-both"

	// OutcomeSkipped means the payload was dropped and the vault untouched.
	OutcomeSkipped OutcomeStatus = "skipped"
)

// IsValid reports whether s is one of the declared outcome statuses.
func (s OutcomeStatus) IsValid() bool {
	switch s {
	case OutcomeCreated, OutcomeMerged, OutcomeAutoMerged, OutcomeKeptBoth, OutcomeSkipped:
		return true
	}
	return false
}

// MergeOutcome reports what one book's import did to the vault.
type MergeOutcome struct {
	// Status is the terminal state.
	Status OutcomeStatus

	// Path is the vault-relative path written, or inspected for a skip.
	Path string

	// UID is the document identity involved, when one exists.
	UID string

	// Strategy is the merge strategy used for merged and auto-merged
	// outcomes, empty otherwise.
	Strategy MergeStrategy

	// Conflicted reports whether the merge left conflict regions that need
	// manual resolution.
	Conflicted bool

	// AnnotationsWritten is the number of annotations in the written body.
	// Zero for skips.
	AnnotationsWritten int
}
