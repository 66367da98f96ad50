// Package prompt provides an interactive terminal implementation of the
// duplicate resolution prompt, built on bubbletea.
package prompt

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
)

// Ensure Prompter implements the interface.
var _ driven.DuplicatePrompter = (*Prompter)(nil)

// Prompter asks the user to resolve a duplicate via a terminal UI. When no
// terminal is attached it answers ChoiceSkip without asking, which keeps
// batch imports safe to run from cron jobs and pipelines.
type Prompter struct {
	// isTerminal reports whether an interactive terminal is attached.
	// Overridable in tests.
	isTerminal func() bool

	// run executes the prompt program and returns the final model.
	// Overridable in tests.
	run func(ctx context.Context, m model) (model, error)
}

// NewPrompter creates a terminal-backed duplicate prompter.
func NewPrompter() *Prompter {
	return &Prompter{
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
		run: runProgram,
	}
}

// ResolveDuplicate presents the match and returns the user's decision.
func (p *Prompter) ResolveDuplicate(ctx context.Context, book domain.BookIdentity, match domain.DuplicateMatch) (domain.PromptDecision, error) {
	if !p.isTerminal() {
		return domain.PromptDecision{Choice: domain.ChoiceSkip}, nil
	}

	final, err := p.run(ctx, newModel(book, match))
	if err != nil {
		return domain.PromptDecision{}, fmt.Errorf("duplicate prompt: %w", err)
	}
	return final.decision, nil
}

func runProgram(ctx context.Context, m model) (model, error) {
	program := tea.NewProgram(m, tea.WithContext(ctx))
	out, err := program.Run()
	if err != nil {
		return model{}, err
	}

	final, ok := out.(model)
	if !ok {
		return model{}, fmt.Errorf("unexpected final model %T", out)
	}
	return final, nil
}
