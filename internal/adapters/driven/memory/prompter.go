package memory

import (
	"context"
	"sync"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
)

// Ensure Prompter implements the interface.
var _ driven.DuplicatePrompter = (*Prompter)(nil)

// Prompter replays a scripted sequence of duplicate decisions and records
// what it was asked. When the script runs out it answers skip, the same
// never-guess default a headless prompter uses.
type Prompter struct {
	mu        sync.Mutex
	decisions []domain.PromptDecision
	asked     []domain.DuplicateMatch
}

// NewPrompter creates a prompter that answers with decisions in order.
func NewPrompter(decisions ...domain.PromptDecision) *Prompter {
	return &Prompter{decisions: decisions}
}

// ResolveDuplicate returns the next scripted decision.
func (p *Prompter) ResolveDuplicate(_ context.Context, _ domain.BookIdentity, match domain.DuplicateMatch) (domain.PromptDecision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, match)
	if len(p.decisions) == 0 {
		return domain.PromptDecision{Choice: domain.ChoiceSkip}, nil
	}
	decision := p.decisions[0]
	p.decisions = p.decisions[1:]
	return decision, nil
}

// Asked returns the matches the prompter was shown, in order.
func (p *Prompter) Asked() []domain.DuplicateMatch {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.DuplicateMatch(nil), p.asked...)
}
