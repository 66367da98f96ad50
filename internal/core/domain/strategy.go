package domain

// MergeStrategy is the mechanical plan for combining an incoming payload
// with an existing document.
type MergeStrategy string

const (
	// StrategyReplace discards the document body and re-renders it from the
	// incoming payload alone. User edits to the body are lost by choice.
	StrategyReplace MergeStrategy = "replace"

	// StrategyTwoWay unions the document's annotations with the incoming
	// ones. Used when no trustworthy merge base exists.
	StrategyTwoWay MergeStrategy = "two-way"

	// StrategyThreeWay merges document and incoming payload against the
	// last-commit snapshot, preserving user edits and marking conflicts.
	StrategyThreeWay MergeStrategy = "three-way"
)

// IsValid reports whether s is one of the declared strategies.
func (s MergeStrategy) IsValid() bool {
	switch s {
	case StrategyReplace, StrategyTwoWay, StrategyThreeWay:
		return true
	}
	return false
}

// DuplicateChoice is the user's (or policy's) decision for one duplicate.
type DuplicateChoice string

const (
	// ChoiceMerge combines the two sides with the selected strategy.
	ChoiceMerge DuplicateChoice = "merge"

	// ChoiceReplace overwrites the document from the payload.
	ChoiceReplace DuplicateChoice = "replace"

	// ChoiceKeepBoth leaves the document alone and creates a sibling file
	// for the incoming payload.
	ChoiceKeepBoth DuplicateChoice = "keep-both"

	// ChoiceSkip leaves the document alone and drops the payload.
	ChoiceSkip DuplicateChoice = "skip"
)

// IsValid reports whether c is one of the declared choices.
func (c DuplicateChoice) IsValid() bool {
	switch c {
	case ChoiceMerge, ChoiceReplace, ChoiceKeepBoth, ChoiceSkip:
		return true
	}
	return false
}

// PromptDecision is a duplicate choice together with the "apply to all"
// flag from the prompt, which promotes the choice to a session default.
type PromptDecision struct {
	Choice     DuplicateChoice
	ApplyToAll bool
}
