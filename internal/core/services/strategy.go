package services

import "github.com/t5k6/marginalia/internal/core/domain"

// ResolutionAction is the policy verdict for one analysed duplicate.
type ResolutionAction string

const (
	// ActionAutoMerge applies the safe-update fast path without prompting.
	ActionAutoMerge ResolutionAction = "auto-merge"

	// ActionPrompt defers the decision to the duplicate prompter.
	ActionPrompt ResolutionAction = "prompt"
)

// SelectAction maps a match to a resolution action. Auto-merge is permitted
// only for the provably additive case: auto-merge enabled, the match is
// additions-only, nothing was modified on either side, and a trustworthy
// snapshot baseline exists. Everything else goes to the user.
//
// Pure function; exact matches never reach it because the pipeline skips
// them before strategy selection.
func SelectAction(autoMergeEnabled bool, match domain.DuplicateMatch) ResolutionAction {
	if autoMergeEnabled &&
		match.Type == domain.MatchUpdated &&
		match.ModifiedCount == 0 &&
		match.CanMergeSafely {
		return ActionAutoMerge
	}
	return ActionPrompt
}
