// Package stats shows quiz statistics, unit completion and the recent quiz
// history.
package stats

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/studylm/internal/progress"
	"github.com/abhisek/studylm/internal/screen"
	"github.com/abhisek/studylm/internal/session"
	"github.com/abhisek/studylm/internal/store"
	"github.com/abhisek/studylm/internal/ui/components"
	"github.com/abhisek/studylm/internal/ui/layout"
	"github.com/abhisek/studylm/internal/ui/theme"
)

// historyLimit is how many recent attempts are listed.
const historyLimit = 10

type historyLoadedMsg struct {
	Events []store.QuizEvent
	Err    error
}

// StatsScreen displays the learner's quiz performance.
type StatsScreen struct {
	sess    *session.Session
	history []store.QuizEvent
	loaded  bool
	errMsg  string
}

var _ screen.Screen = (*StatsScreen)(nil)
var _ screen.KeyHintProvider = (*StatsScreen)(nil)

// New creates a StatsScreen.
func New(sess *session.Session) *StatsScreen {
	return &StatsScreen{sess: sess}
}

func (s *StatsScreen) Init() tea.Cmd {
	sess := s.sess
	return func() tea.Msg {
		events, err := sess.QuizHistory(context.Background(), historyLimit)
		return historyLoadedMsg{Events: events, Err: err}
	}
}

func (s *StatsScreen) Title() string {
	return "Quiz Statistics"
}

func (s *StatsScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (s *StatsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if msg, ok := msg.(historyLoadedMsg); ok {
		s.loaded = true
		s.history = msg.Events
		if msg.Err != nil {
			s.errMsg = "Could not load quiz history: " + msg.Err.Error()
		}
	}
	return s, nil
}

func (s *StatsScreen) View(width, height int) string {
	cw := components.ContentWidth(width)
	inner := cw - 10
	st := s.sess.Progress.QuizStats()
	doc := s.sess.Document()

	var sections []string
	sections = append(sections, theme.Title.Width(cw).Render("QUIZ STATISTICS"), "")

	var card []string
	if st.Total == 0 {
		card = append(card, theme.Hint.Render("No quizzes taken yet. Finish a section quiz to see your results here."))
	} else {
		card = append(card,
			lipgloss.NewStyle().Foreground(theme.Text).Bold(true).
				Render(fmt.Sprintf("%d of %d answers correct (%d%%)", st.Correct, st.Total, st.Percentage)),
			"",
			tallyBar("Sections", st.Sections, inner),
			tallyBar("Unit quizzes", st.UnitQuizzes, inner),
		)
	}
	card = append(card, "", components.NewCountBar("Units completed", s.sess.Progress.CompletedCount(), len(doc), inner).View())
	sections = append(sections, components.Card(strings.Join(card, "\n"), cw), "")

	sections = append(sections, lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).Render("Recent attempts"))
	switch {
	case s.errMsg != "":
		sections = append(sections, lipgloss.NewStyle().Foreground(theme.Error).Render(s.errMsg))
	case !s.loaded:
		sections = append(sections, theme.Hint.Render("Loading..."))
	case len(s.history) == 0:
		sections = append(sections, theme.Hint.Render("No attempts recorded."))
	default:
		for _, ev := range s.history {
			sections = append(sections, s.historyLine(ev))
		}
	}

	return components.Center(strings.Join(sections, "\n"), width, height)
}

func tallyBar(label string, t progress.Tally, width int) string {
	return components.NewCountBar(label, t.Correct, t.Answered, width).View()
}

func (s *StatsScreen) historyLine(ev store.QuizEvent) string {
	name := s.quizName(ev)
	pct := fmt.Sprintf("%d/%d", ev.Correct, ev.Total)
	style := theme.Correct
	if ev.Correct*2 < ev.Total {
		style = theme.Incorrect
	}
	when := lipgloss.NewStyle().Foreground(theme.TextDim).Render(ev.Timestamp.Local().Format("Jan 02 15:04"))
	return fmt.Sprintf("%s  %s  %s", when, style.Render(pct), lipgloss.NewStyle().Foreground(theme.Text).Render(name))
}

// quizName names the quiz an event belongs to, falling back to indices when
// the event refers to content that has since been replaced.
func (s *StatsScreen) quizName(ev store.QuizEvent) string {
	doc := s.sess.Document()
	if ev.UnitIndex < 0 || ev.UnitIndex >= len(doc) {
		return fmt.Sprintf("Unit %d", ev.UnitIndex+1)
	}
	u := doc[ev.UnitIndex]
	if ev.UnitQuiz {
		return u.Title + " (unit quiz)"
	}
	if ev.SectionIndex >= 0 && ev.SectionIndex < len(u.Sections) {
		return u.Sections[ev.SectionIndex].Title
	}
	return u.Title
}
