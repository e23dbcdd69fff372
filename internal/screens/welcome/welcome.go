// Package welcome is the study client's landing screen: it summarises the
// loaded course and offers the top-level actions.
package welcome

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/studylm/internal/router"
	"github.com/abhisek/studylm/internal/screen"
	"github.com/abhisek/studylm/internal/screens/stats"
	"github.com/abhisek/studylm/internal/screens/study"
	"github.com/abhisek/studylm/internal/screens/upload"
	"github.com/abhisek/studylm/internal/session"
	"github.com/abhisek/studylm/internal/ui/components"
	"github.com/abhisek/studylm/internal/ui/layout"
	"github.com/abhisek/studylm/internal/ui/theme"
)

// WelcomeScreen shows the course summary and the main menu.
type WelcomeScreen struct {
	sess         *session.Session
	menu         components.Menu
	confirmReset bool
	notice       string
	errMsg       string
}

var _ screen.Screen = (*WelcomeScreen)(nil)
var _ screen.KeyHintProvider = (*WelcomeScreen)(nil)

// New creates a WelcomeScreen over sess.
func New(sess *session.Session) *WelcomeScreen {
	w := &WelcomeScreen{sess: sess}
	w.buildMenu()
	return w
}

func (w *WelcomeScreen) buildMenu() {
	noContent := !w.sess.HasContent()

	start := "Start Learning"
	if w.sess.Progress.CompletedCount() > 0 || w.sess.Progress.CurrentUnitIndex() > 0 {
		start = "Continue Learning"
	}

	items := []components.MenuItem{
		{Label: start, Disabled: noContent, Reason: "upload course files first", Action: w.startLearning},
		{Label: "Upload Course Files", Disabled: w.sess.Uploader == nil, Reason: "no proxy configured", Action: func() tea.Cmd {
			return func() tea.Msg {
				return router.PushScreenMsg{Screen: upload.New(w.sess)}
			}
		}},
		{Label: "Quiz Statistics", Disabled: noContent, Reason: "no quizzes yet", Action: func() tea.Cmd {
			return func() tea.Msg {
				return router.PushScreenMsg{Screen: stats.New(w.sess)}
			}
		}},
		{Label: "Reset Progress", Action: func() tea.Cmd {
			w.confirmReset = true
			return nil
		}},
		{Label: "Quit", Action: func() tea.Cmd { return tea.Quit }},
	}

	selected := w.menu.Selected
	w.menu = components.NewMenu(items)
	if selected > 0 && selected < len(items) && !items[selected].Disabled {
		w.menu.Selected = selected
	}
}

func (w *WelcomeScreen) startLearning() tea.Cmd {
	if err := w.sess.Progress.StartLearning(context.Background()); err != nil {
		w.errMsg = err.Error()
	}
	return func() tea.Msg {
		return router.PushScreenMsg{Screen: study.New(w.sess)}
	}
}

func (w *WelcomeScreen) Init() tea.Cmd {
	return nil
}

func (w *WelcomeScreen) Title() string {
	return "Welcome"
}

func (w *WelcomeScreen) KeyHints() []layout.KeyHint {
	if w.confirmReset {
		return []layout.KeyHint{
			{Key: "Y", Description: "Erase progress"},
			{Key: "N", Description: "Cancel"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Select"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (w *WelcomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case router.ScreenActivatedMsg:
		// Back from the study screens: the learner left learning mode.
		if err := w.sess.Progress.GoToWelcome(context.Background()); err != nil {
			w.errMsg = err.Error()
		}
		w.buildMenu()
		return w, nil

	case tea.KeyPressMsg:
		if w.confirmReset {
			return w, w.handleResetConfirm(msg)
		}
		w.notice = ""
		var cmd tea.Cmd
		w.menu, cmd = w.menu.Update(msg)
		return w, cmd
	}
	return w, nil
}

func (w *WelcomeScreen) handleResetConfirm(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y":
		w.confirmReset = false
		if err := w.sess.Progress.ResetProgress(context.Background()); err != nil {
			w.errMsg = err.Error()
			return nil
		}
		w.notice = "Progress erased."
		w.buildMenu()
	case "n", "N", "esc":
		w.confirmReset = false
	}
	return nil
}

func (w *WelcomeScreen) View(width, height int) string {
	cw := components.ContentWidth(width)

	var sections []string
	sections = append(sections, RenderBanner(width))
	sections = append(sections, "")
	sections = append(sections, lipgloss.NewStyle().
		Foreground(theme.Text).
		Bold(true).
		Render("Turn your course files into a guided study plan."))
	sections = append(sections, "")
	sections = append(sections, components.Card(w.summary(cw), cw))
	sections = append(sections, "")

	if w.confirmReset {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true).
			Render("Erase all progress and quiz answers? (y/n)"))
	} else {
		sections = append(sections, w.menu.View())
	}

	if w.notice != "" {
		sections = append(sections, theme.Completed.Render(w.notice))
	}
	if w.errMsg != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(theme.Error).Render(w.errMsg))
	}

	return components.Center(strings.Join(sections, "\n"), width, height)
}

func (w *WelcomeScreen) summary(cw int) string {
	doc := w.sess.Document()
	if len(doc) == 0 {
		return layout.Wrap("No study content yet. Upload your course files (PDF, text or images) "+
			"to generate units, sections and quizzes.", cw-10, theme.TextDim)
	}

	p := w.sess.Progress
	lines := []string{
		lipgloss.NewStyle().Foreground(theme.Text).Bold(true).
			Render(fmt.Sprintf("%d units  ·  %d quiz questions", len(doc), doc.QuestionCount())),
		"",
		components.NewCountBar("Completed", p.CompletedCount(), len(doc), cw-10).View(),
	}
	if u, ok := p.CurrentUnit(doc); ok {
		lines = append(lines, "", theme.Hint.Render("Up next: "+u.Title))
	}
	return strings.Join(lines, "\n")
}
