// Package quiz is the screen for taking a section or unit quiz.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	qz "github.com/abhisek/studylm/internal/quiz"
	"github.com/abhisek/studylm/internal/screen"
	"github.com/abhisek/studylm/internal/session"
	"github.com/abhisek/studylm/internal/ui/components"
	"github.com/abhisek/studylm/internal/ui/layout"
	"github.com/abhisek/studylm/internal/ui/theme"
)

// QuizScreen drives one quiz engine.
type QuizScreen struct {
	engine  *qz.Engine
	title   string
	focus   int
	cursors []int
	vp      viewport.Model
	follow  bool
	errMsg  string
}

var _ screen.Screen = (*QuizScreen)(nil)
var _ screen.KeyHintProvider = (*QuizScreen)(nil)

// New creates the screen for the quiz of section sec in unit u, or of the
// unit itself when unitQuiz is set. It returns nil when there is nothing to
// ask.
func New(sess *session.Session, u, sec int, unitQuiz bool) *QuizScreen {
	e := sess.QuizEngine(context.Background(), u, sec, unitQuiz)
	if e == nil {
		return nil
	}

	doc := sess.Document()
	title := "Unit Quiz: " + doc[u].Title
	if !unitQuiz {
		title = "Quiz: " + doc[u].Sections[sec].Title
	}
	return newScreen(e, title)
}

func newScreen(e *qz.Engine, title string) *QuizScreen {
	return &QuizScreen{
		engine:  e,
		title:   title,
		cursors: make([]int, e.Len()),
		vp:      viewport.New(),
		follow:  true,
	}
}

func (s *QuizScreen) Init() tea.Cmd {
	return nil
}

func (s *QuizScreen) Title() string {
	return s.title
}

func (s *QuizScreen) KeyHints() []layout.KeyHint {
	if s.engine.State() == qz.Graded {
		return []layout.KeyHint{
			{Key: "↑↓", Description: "Scroll"},
			{Key: "r", Description: "Retake"},
			{Key: "Esc", Description: "Back"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Question"},
		{Key: "a-d", Description: "Answer"},
		{Key: "s", Description: "Submit"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *QuizScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyPressMsg)
	if !ok {
		return s, nil
	}
	s.errMsg = ""

	switch kmsg.String() {
	case "up", "k", "shift+tab":
		if s.engine.State() == qz.Graded {
			s.vp.ScrollUp(1)
		} else {
			s.moveFocus(-1)
		}
		return s, nil
	case "down", "j", "tab":
		if s.engine.State() == qz.Graded {
			s.vp.ScrollDown(1)
		} else {
			s.moveFocus(1)
		}
		return s, nil
	case "pgdown":
		s.vp.PageDown()
		s.follow = false
		return s, nil
	case "pgup":
		s.vp.PageUp()
		s.follow = false
		return s, nil
	case "s":
		if s.engine.State() != qz.Graded {
			s.submit()
		}
		return s, nil
	case "r":
		if s.engine.State() == qz.Graded {
			if err := s.engine.Reset(); err != nil {
				s.errMsg = err.Error()
			}
			s.focus = 0
			s.cursors = make([]int, s.engine.Len())
			s.follow = true
			s.vp.GotoTop()
		}
		return s, nil
	}

	if s.engine.State() == qz.Graded {
		return s, nil
	}

	mc := s.choice(s.focus, true)
	mc, picked, ok := mc.Update(kmsg)
	s.cursors[s.focus] = mc.Cursor
	if ok {
		s.engine.SelectAnswer(s.focus, picked)
		if s.focus < s.engine.Len()-1 {
			s.moveFocus(1)
		}
	}
	return s, nil
}

func (s *QuizScreen) moveFocus(delta int) {
	next := s.focus + delta
	if next < 0 || next >= s.engine.Len() {
		return
	}
	s.focus = next
	s.follow = true
}

func (s *QuizScreen) submit() {
	if !s.engine.AllAnswered() {
		s.errMsg = fmt.Sprintf("Answer every question before submitting (%d of %d answered).",
			s.answered(), s.engine.Len())
		return
	}
	if _, err := s.engine.Grade(); err != nil && !errors.Is(err, qz.ErrAlreadyGraded) {
		// Grading stands even when saving the attempt failed.
		s.errMsg = err.Error()
	}
	s.follow = false
	s.vp.GotoTop()
}

func (s *QuizScreen) answered() int {
	n := 0
	for i := range s.engine.Len() {
		if _, ok := s.engine.Selected(i); ok {
			n++
		}
	}
	return n
}

func (s *QuizScreen) choice(i int, focused bool) components.MultiChoice {
	q := s.engine.Question(i)
	chosen, _ := s.engine.Selected(i)
	return components.MultiChoice{
		Number:   i + 1,
		Question: q.Question,
		Options:  s.engine.Choices(i),
		Cursor:   s.cursors[i],
		Focused:  focused,
		Chosen:   chosen,
		Graded:   s.engine.State() == qz.Graded,
		Correct:  q.CorrectAnswer,
	}
}

func (s *QuizScreen) View(width, height int) string {
	footer := s.footer()
	bodyHeight := height - lipgloss.Height(footer) - 1
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	var b strings.Builder
	b.WriteString("\n")
	if sc, err := s.engine.Score(); err == nil {
		b.WriteString(scoreCard(sc, components.ContentWidth(width)) + "\n\n")
	}

	focusStart, focusEnd := 0, 0
	for i := range s.engine.Len() {
		focused := i == s.focus && s.engine.State() != qz.Graded
		if focused {
			focusStart = strings.Count(b.String(), "\n")
		}
		b.WriteString(indent(s.choice(i, focused).View(), "  ") + "\n")
		if focused {
			focusEnd = strings.Count(b.String(), "\n")
		}
	}

	s.vp.SetWidth(width)
	s.vp.SetHeight(bodyHeight)
	s.vp.SetContent(b.String())
	if s.follow {
		top := s.vp.YOffset()
		switch {
		case focusStart < top:
			s.vp.SetYOffset(focusStart)
		case focusEnd > top+bodyHeight:
			s.vp.SetYOffset(focusEnd - bodyHeight)
		}
	}

	return s.vp.View() + "\n" + footer
}

func (s *QuizScreen) footer() string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().Foreground(theme.Error).Render("  " + s.errMsg)
	}
	if s.engine.State() == qz.Graded {
		return theme.Hint.Render("  Press r to retake with reshuffled answers.")
	}
	return theme.Hint.Render(fmt.Sprintf("  %d of %d answered. Press s to submit.", s.answered(), s.engine.Len()))
}

func scoreCard(sc qz.Score, cw int) string {
	style := theme.Correct
	verdict := "Well done!"
	switch {
	case sc.Percentage < 50:
		style = theme.Incorrect
		verdict = "Review the material and try again."
	case sc.Percentage < 80:
		style = lipgloss.NewStyle().Foreground(theme.Accent).Bold(true)
		verdict = "Good effort."
	}
	body := style.Render(fmt.Sprintf("You scored %d/%d (%d%%)", sc.Correct, sc.Total, sc.Percentage)) +
		"\n" + lipgloss.NewStyle().Foreground(theme.TextDim).Render(verdict)
	return indent(components.Card(body, cw), "  ")
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
