package prompt

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t5k6/marginalia/internal/core/domain"
)

func testBook() domain.BookIdentity {
	return domain.BookIdentity{
		Title:   "Kindred",
		Authors: []string{"Octavia Butler"},
	}
}

func testMatch() domain.DuplicateMatch {
	return domain.DuplicateMatch{
		Document:       domain.DocumentRecord{Path: "Highlights/Kindred.md"},
		Type:           domain.MatchUpdated,
		Confidence:     domain.ConfidenceFull,
		NewCount:       3,
		ModifiedCount:  1,
		CanMergeSafely: true,
	}
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestResolveDuplicate_Headless(t *testing.T) {
	p := NewPrompter()
	p.isTerminal = func() bool { return false }
	p.run = func(context.Context, model) (model, error) {
		t.Fatal("run should not be called without a terminal")
		return model{}, nil
	}

	decision, err := p.ResolveDuplicate(context.Background(), testBook(), testMatch())

	require.NoError(t, err)
	assert.Equal(t, domain.ChoiceSkip, decision.Choice)
	assert.False(t, decision.ApplyToAll)
}

func TestResolveDuplicate_ReturnsFinalDecision(t *testing.T) {
	p := NewPrompter()
	p.isTerminal = func() bool { return true }
	p.run = func(_ context.Context, m model) (model, error) {
		m.decision = domain.PromptDecision{Choice: domain.ChoiceMerge, ApplyToAll: true}
		m.done = true
		return m, nil
	}

	decision, err := p.ResolveDuplicate(context.Background(), testBook(), testMatch())

	require.NoError(t, err)
	assert.Equal(t, domain.ChoiceMerge, decision.Choice)
	assert.True(t, decision.ApplyToAll)
}

func TestResolveDuplicate_RunError(t *testing.T) {
	p := NewPrompter()
	p.isTerminal = func() bool { return true }
	p.run = func(context.Context, model) (model, error) {
		return model{}, errors.New("terminal gone")
	}

	_, err := p.ResolveDuplicate(context.Background(), testBook(), testMatch())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate prompt")
}

func TestModel_NavigateAndSelect(t *testing.T) {
	m := newModel(testBook(), testMatch())
	assert.Equal(t, 0, m.selected)

	// Down twice lands on "keep both".
	next, _ := m.Update(keyRune('j'))
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(model)
	assert.Equal(t, 2, m.selected)

	// Up once back to "replace".
	next, _ = m.Update(keyRune('k'))
	m = next.(model)
	assert.Equal(t, 1, m.selected)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)

	require.NotNil(t, cmd)
	assert.True(t, m.done)
	assert.Equal(t, domain.ChoiceReplace, m.decision.Choice)
	assert.False(t, m.decision.ApplyToAll)
}

func TestModel_SelectionBounds(t *testing.T) {
	m := newModel(testBook(), testMatch())

	// Can't move above the first item.
	next, _ := m.Update(keyRune('k'))
	m = next.(model)
	assert.Equal(t, 0, m.selected)

	// Can't move past the last item.
	for i := 0; i < 10; i++ {
		next, _ = m.Update(keyRune('j'))
		m = next.(model)
	}
	assert.Equal(t, len(m.items)-1, m.selected)
}

func TestModel_ApplyToAllToggle(t *testing.T) {
	m := newModel(testBook(), testMatch())

	next, _ := m.Update(keyRune('a'))
	m = next.(model)
	assert.True(t, m.all)

	next, _ = m.Update(keyRune('a'))
	m = next.(model)
	assert.False(t, m.all)

	next, _ = m.Update(keyRune('a'))
	next, _ = next.(model).Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)

	assert.Equal(t, domain.ChoiceMerge, m.decision.Choice)
	assert.True(t, m.decision.ApplyToAll)
}

func TestModel_CancelSkips(t *testing.T) {
	m := newModel(testBook(), testMatch())

	next, _ := m.Update(keyRune('j'))
	next, cmd := next.(model).Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(model)

	require.NotNil(t, cmd)
	assert.True(t, m.done)
	assert.Equal(t, domain.ChoiceSkip, m.decision.Choice)
}

func TestModel_ViewMentionsMatchState(t *testing.T) {
	match := testMatch()
	match.Confidence = domain.ConfidencePartial
	match.CanMergeSafely = false

	m := newModel(testBook(), match)
	view := m.View()

	assert.Contains(t, view, "Kindred")
	assert.Contains(t, view, "Highlights/Kindred.md")
	assert.Contains(t, view, "3 new, 1 modified")
	assert.Contains(t, view, "cut short")
	assert.Contains(t, view, "two-way")
}

func TestModel_ViewEmptyWhenDone(t *testing.T) {
	m := newModel(testBook(), testMatch())
	m.done = true

	assert.Empty(t, m.View())
}
