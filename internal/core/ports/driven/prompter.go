package driven

import (
	"context"

	"github.com/t5k6/marginalia/internal/core/domain"
)

// DuplicatePrompter asks the user how to resolve one duplicate the policy
// could not settle. Calls are already serialised by the import session's
// prompt queue, so implementations never see two prompts at once.
type DuplicatePrompter interface {
	// ResolveDuplicate presents the match for book and returns the user's
	// decision. Implementations that cannot ask (no terminal, headless
	// server) must return ChoiceSkip rather than guess.
	ResolveDuplicate(ctx context.Context, book domain.BookIdentity, match domain.DuplicateMatch) (domain.PromptDecision, error)
}
