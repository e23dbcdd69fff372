package components

import (
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/studylm/internal/ui/theme"
)

// TextInput wraps bubbles/textinput with StudyLM styling.
type TextInput struct {
	Model    textinput.Model
	MaxWidth int
	Disabled bool
}

// NewTextInput creates a focused text input. charLimit of zero means no
// limit.
func NewTextInput(placeholder string, charLimit int) TextInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "› "
	ti.CharLimit = charLimit
	ti.Focus()

	return TextInput{Model: ti}
}

// Init returns the initial command.
func (t TextInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages. Input is ignored while disabled.
func (t TextInput) Update(msg tea.Msg) (TextInput, tea.Cmd) {
	if t.Disabled {
		if _, ok := msg.(tea.KeyPressMsg); ok {
			return t, nil
		}
	}
	var cmd tea.Cmd
	t.Model, cmd = t.Model.Update(msg)
	return t, cmd
}

// SetWidth sets the visible input width.
func (t *TextInput) SetWidth(w int) {
	if t.MaxWidth > 0 && w > t.MaxWidth {
		w = t.MaxWidth
	}
	if w < 10 {
		w = 10
	}
	t.Model.SetWidth(w)
}

// View renders the input inside a rounded border.
func (t TextInput) View() string {
	border := theme.Primary
	if t.Disabled {
		border = theme.Border
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Render(t.Model.View())
}

// Value returns the current input value.
func (t TextInput) Value() string {
	return t.Model.Value()
}

// Reset clears the input.
func (t *TextInput) Reset() {
	t.Model.Reset()
}
