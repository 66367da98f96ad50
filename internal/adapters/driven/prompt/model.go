package prompt

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/t5k6/marginalia/internal/core/domain"
)

// keyMap defines the keybindings for the duplicate resolution prompt.
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	All    key.Binding
	Cancel key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		All: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "apply to all"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "q", "ctrl+c"),
			key.WithHelp("esc", "skip"),
		),
	}
}

// choiceItem pairs a selectable choice with its on-screen label.
type choiceItem struct {
	choice domain.DuplicateChoice
	label  string
}

// model is the bubbletea model for a single duplicate prompt. It renders the
// match summary, a choice list and an apply-to-all toggle, and records the
// decision when the user confirms.
type model struct {
	book  domain.BookIdentity
	match domain.DuplicateMatch
	keys  keyMap

	items    []choiceItem
	selected int
	all      bool

	decision domain.PromptDecision
	done     bool
}

func newModel(book domain.BookIdentity, match domain.DuplicateMatch) model {
	items := []choiceItem{
		{choice: domain.ChoiceMerge, label: "Merge into existing note"},
		{choice: domain.ChoiceReplace, label: "Replace existing note"},
		{choice: domain.ChoiceKeepBoth, label: "Keep both (new file)"},
		{choice: domain.ChoiceSkip, label: "Skip this book"},
	}

	return model{
		book:     book,
		match:    match,
		keys:     defaultKeyMap(),
		items:    items,
		decision: domain.PromptDecision{Choice: domain.ChoiceSkip},
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(keyMsg, m.keys.Down):
		if m.selected < len(m.items)-1 {
			m.selected++
		}

	case key.Matches(keyMsg, m.keys.All):
		m.all = !m.all

	case key.Matches(keyMsg, m.keys.Select):
		m.decision = domain.PromptDecision{
			Choice:     m.items[m.selected].choice,
			ApplyToAll: m.all,
		}
		m.done = true
		return m, tea.Quit

	case key.Matches(keyMsg, m.keys.Cancel):
		m.decision = domain.PromptDecision{Choice: domain.ChoiceSkip}
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m model) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder

	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warn := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	b.WriteString(title.Render("Duplicate found: " + m.book.Title))
	b.WriteString("\n")
	if len(m.book.Authors) > 0 {
		b.WriteString(muted.Render(strings.Join(m.book.Authors, ", ")))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Existing note: %s\n", m.match.Document.Path))
	b.WriteString(fmt.Sprintf("Match: %s\n", m.match.Describe()))
	if m.match.Confidence == domain.ConfidencePartial {
		b.WriteString(warn.Render("Scan was cut short; other copies may exist."))
		b.WriteString("\n")
	}
	if !m.match.CanMergeSafely {
		b.WriteString(warn.Render("No merge base; merging falls back to a two-way merge."))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for i, item := range m.items {
		cursor := "  "
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
		if i == m.selected {
			cursor = "> "
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
		}
		b.WriteString(cursor + style.Render(item.label))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	toggle := "[ ]"
	if m.all {
		toggle = "[x]"
	}
	b.WriteString(fmt.Sprintf("%s apply to all remaining duplicates\n\n", toggle))

	b.WriteString(muted.Render("[j/k] Navigate  [a] Apply to all  [Enter] Select  [Esc] Skip"))
	b.WriteString("\n")

	return b.String()
}
