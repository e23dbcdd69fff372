package components

import (
	"fmt"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/studylm/internal/ui/theme"
)

// MultiChoice renders one quiz question with its choices. It holds only the
// cursor; answers and grading live in the quiz engine and are passed in.
type MultiChoice struct {
	Number   int
	Question string
	Options  []string
	Cursor   int
	Focused  bool

	// Chosen is the selected choice text, empty when unanswered.
	Chosen string
	// Graded reveals the correct answer.
	Graded  bool
	Correct string
}

// Update moves the cursor. It returns the choice under the cursor when the
// user selects it.
func (m MultiChoice) Update(msg tea.Msg) (MultiChoice, string, bool) {
	if m.Graded || !m.Focused {
		return m, "", false
	}

	kmsg, ok := msg.(tea.KeyPressMsg)
	if !ok {
		return m, "", false
	}

	switch kmsg.String() {
	case "left", "h":
		if m.Cursor > 0 {
			m.Cursor--
		}
	case "right", "l":
		if m.Cursor < len(m.Options)-1 {
			m.Cursor++
		}
	case "enter", "space", " ":
		if len(m.Options) > 0 {
			return m, m.Options[m.Cursor], true
		}
	default:
		s := kmsg.String()
		if len(s) == 1 && s[0] >= 'a' && int(s[0]-'a') < len(m.Options) {
			m.Cursor = int(s[0] - 'a')
			return m, m.Options[m.Cursor], true
		}
	}
	return m, "", false
}

// View renders the question and its choices.
func (m MultiChoice) View() string {
	qStyle := lipgloss.NewStyle().Foreground(theme.Text).Bold(true)
	if !m.Focused {
		qStyle = qStyle.Foreground(theme.TextDim)
	}
	s := qStyle.Render(fmt.Sprintf("%d. %s", m.Number, m.Question)) + "\n"

	for i, opt := range m.Options {
		prefix := "   "
		if m.Focused && i == m.Cursor && !m.Graded {
			prefix = " ▸ "
		}
		mark := " "
		if opt == m.Chosen {
			mark = "●"
		}
		line := fmt.Sprintf("%s%c) %s %s", prefix, 'a'+i, mark, opt)

		var style lipgloss.Style
		switch {
		case m.Graded && opt == m.Correct:
			style = theme.Correct
			line += "  ✓"
		case m.Graded && opt == m.Chosen:
			style = theme.Incorrect
			line += "  ✗"
		case m.Graded:
			style = lipgloss.NewStyle().Foreground(theme.TextDim)
		case m.Focused && i == m.Cursor:
			style = theme.Selected
		case opt == m.Chosen:
			style = lipgloss.NewStyle().Foreground(theme.Secondary)
		default:
			style = theme.Unselected
		}
		s += style.Render(line) + "\n"
	}
	return s
}
