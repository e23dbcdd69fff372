// Package study renders the current unit: its overview, expandable
// sections and the entry points to quizzes and chat.
package study

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/studylm/internal/content"
	"github.com/abhisek/studylm/internal/progress"
	"github.com/abhisek/studylm/internal/quiz"
	"github.com/abhisek/studylm/internal/router"
	"github.com/abhisek/studylm/internal/screen"
	chatscreen "github.com/abhisek/studylm/internal/screens/chat"
	quizscreen "github.com/abhisek/studylm/internal/screens/quiz"
	"github.com/abhisek/studylm/internal/session"
	"github.com/abhisek/studylm/internal/ui/layout"
	"github.com/abhisek/studylm/internal/ui/theme"
)

// StudyScreen shows one unit at a time.
type StudyScreen struct {
	sess   *session.Session
	vp     viewport.Model
	cursor int
	follow bool
	chat   *chatscreen.ChatScreen
	notice string
	errMsg string
}

var _ screen.Screen = (*StudyScreen)(nil)
var _ screen.KeyHintProvider = (*StudyScreen)(nil)

// New creates a StudyScreen positioned at the learner's current unit.
func New(sess *session.Session) *StudyScreen {
	return &StudyScreen{
		sess:   sess,
		vp:     viewport.New(),
		follow: true,
	}
}

func (s *StudyScreen) Init() tea.Cmd {
	// Resume in the chat pane when that is where the learner left off.
	if s.sess.Progress.ActiveTab() == progress.TabChat && s.sess.Chat != nil {
		return s.openChat()
	}
	return nil
}

func (s *StudyScreen) Title() string {
	if u, ok := s.currentUnit(); ok {
		return u.Title
	}
	return "Study"
}

func (s *StudyScreen) KeyHints() []layout.KeyHint {
	if _, ok := s.currentUnit(); !ok {
		return []layout.KeyHint{
			{Key: "p", Description: "Previous unit"},
			{Key: "Esc", Description: "Home"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Select"},
		{Key: "Enter", Description: "Expand"},
		{Key: "q", Description: "Quiz"},
		{Key: "c", Description: "Complete & next"},
		{Key: "m", Description: "Mark"},
		{Key: "n/p", Description: "Unit"},
		{Key: "t", Description: "Chat"},
		{Key: "Esc", Description: "Home"},
	}
}

func (s *StudyScreen) currentUnit() (content.Unit, bool) {
	return s.sess.Progress.CurrentUnit(s.sess.Document())
}

// entries are the selectable rows of the current unit: its sections and,
// when present, the unit quiz.
func (s *StudyScreen) entries() []int {
	u, ok := s.currentUnit()
	if !ok {
		return nil
	}
	out := make([]int, 0, len(u.Sections)+1)
	for i := range u.Sections {
		out = append(out, i)
	}
	if len(u.UnitQuiz) > 0 {
		out = append(out, progress.UnitQuizSection)
	}
	return out
}

func (s *StudyScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case router.ScreenActivatedMsg:
		if s.chat != nil {
			s.chat.Stop()
		}
		s.report(s.sess.Progress.ChangeTab(context.Background(), progress.TabLearn))
		return s, nil

	case tea.KeyPressMsg:
		s.notice = ""
		s.errMsg = ""
		return s, s.handleKey(msg)
	}
	return s, nil
}

func (s *StudyScreen) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	ctx := context.Background()
	p := s.sess.Progress
	entries := s.entries()

	switch msg.String() {
	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
			s.follow = true
		}
	case "down", "j":
		if s.cursor < len(entries)-1 {
			s.cursor++
			s.follow = true
		}
	case "enter", "space":
		if s.cursor < len(entries) {
			sec := entries[s.cursor]
			if sec == progress.UnitQuizSection {
				return s.openQuiz(sec)
			}
			s.report(p.ToggleSectionExpanded(ctx, p.CurrentUnitIndex(), sec))
		}
	case "q":
		if s.cursor < len(entries) {
			return s.openQuiz(entries[s.cursor])
		}
	case "m":
		if _, ok := s.currentUnit(); ok {
			s.report(p.ToggleUnitComplete(ctx, p.CurrentUnitIndex()))
		}
	case "c":
		if _, ok := s.currentUnit(); ok {
			total := len(s.sess.Document())
			last := p.CurrentUnitIndex() == total-1
			s.report(p.CompleteUnit(ctx, total))
			if last {
				s.notice = "Course complete! Every unit is behind you."
			}
			s.resetScroll()
		}
	case "n", "right":
		if _, ok := s.currentUnit(); ok {
			s.report(p.GoToNextUnit(ctx))
			s.resetScroll()
		}
	case "p", "left":
		s.report(p.GoToPreviousUnit(ctx))
		s.resetScroll()
	case "t":
		if s.sess.Chat == nil {
			s.errMsg = "Chat is unavailable: no study assistant is configured."
			return nil
		}
		return s.openChat()
	case "pgdown":
		s.vp.PageDown()
		s.follow = false
	case "pgup":
		s.vp.PageUp()
		s.follow = false
	}
	return nil
}

func (s *StudyScreen) resetScroll() {
	s.cursor = 0
	s.follow = true
	s.vp.GotoTop()
}

func (s *StudyScreen) openQuiz(sec int) tea.Cmd {
	p := s.sess.Progress
	unitQuiz := sec == progress.UnitQuizSection
	q := quizscreen.New(s.sess, p.CurrentUnitIndex(), sec, unitQuiz)
	if q == nil {
		s.notice = "This section has no quiz."
		return nil
	}
	return func() tea.Msg { return router.PushScreenMsg{Screen: q} }
}

func (s *StudyScreen) openChat() tea.Cmd {
	s.report(s.sess.Progress.ChangeTab(context.Background(), progress.TabChat))
	if s.chat == nil {
		s.chat = chatscreen.New(s.sess)
	}
	c := s.chat
	return func() tea.Msg { return router.PushScreenMsg{Screen: c} }
}

func (s *StudyScreen) report(err error) {
	if err != nil {
		s.errMsg = err.Error()
	}
}

func (s *StudyScreen) View(width, height int) string {
	status := s.statusLine()
	bodyHeight := height - lipgloss.Height(status)
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	body, cursorLine := s.render(width - 4)
	s.vp.SetWidth(width)
	s.vp.SetHeight(bodyHeight)
	s.vp.SetContent(body)

	if s.follow && cursorLine >= 0 {
		top := s.vp.YOffset()
		switch {
		case cursorLine < top:
			s.vp.SetYOffset(cursorLine)
		case cursorLine >= top+bodyHeight:
			s.vp.SetYOffset(cursorLine - bodyHeight + 1)
		}
	}

	return s.vp.View() + "\n" + status
}

func (s *StudyScreen) statusLine() string {
	switch {
	case s.errMsg != "":
		return lipgloss.NewStyle().Foreground(theme.Error).Render("  " + s.errMsg)
	case s.notice != "":
		return theme.Completed.Render("  " + s.notice)
	}
	return ""
}

// render draws the current unit at width w and returns the line the
// cursor row starts on, or -1.
func (s *StudyScreen) render(w int) (string, int) {
	doc := s.sess.Document()
	p := s.sess.Progress
	u, ok := s.currentUnit()
	if !ok {
		return s.renderFinished(w), -1
	}
	ui := p.CurrentUnitIndex()

	var b strings.Builder
	b.WriteString("\n")
	heading := fmt.Sprintf("  Unit %d of %d", ui+1, len(doc))
	if p.IsUnitComplete(ui) {
		heading += "  " + theme.Completed.Render("✓ Completed")
	}
	b.WriteString(lipgloss.NewStyle().Foreground(theme.TextDim).Render(heading) + "\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render("  "+u.Title) + "\n\n")
	b.WriteString(indent(layout.Wrap(u.Overview, w-2, theme.Text), "  ") + "\n\n")

	cursorLine := -1
	for i, sec := range s.entries() {
		if i == s.cursor {
			cursorLine = strings.Count(b.String(), "\n")
		}
		if sec == progress.UnitQuizSection {
			b.WriteString(s.unitQuizRow(u, ui, i == s.cursor) + "\n")
			continue
		}
		b.WriteString(s.sectionRow(u.Sections[sec], ui, sec, i == s.cursor, w) + "\n")
	}
	return b.String(), cursorLine
}

func (s *StudyScreen) sectionRow(sec content.Section, ui, si int, selected bool, w int) string {
	p := s.sess.Progress
	expanded := p.IsSectionExpanded(ui, si)

	marker := "▸"
	if expanded {
		marker = "▾"
	}
	titleStyle := theme.Unselected
	if selected {
		titleStyle = theme.Selected
	}
	row := "  " + titleStyle.Render(marker+" "+sec.Title)
	if badge := quizBadge(p.QuizResponse(ui, si, false), len(sec.Quizzes)); badge != "" {
		row += "  " + badge
	}
	if !expanded {
		return row
	}

	var b strings.Builder
	b.WriteString(row + "\n\n")
	b.WriteString(indent(layout.Wrap(sec.Narrative, w-6, theme.Text), "      ") + "\n")
	if len(sec.KeyPoints) > 0 {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).Render("      Key points") + "\n")
		for _, kp := range sec.KeyPoints {
			b.WriteString(indent(layout.Wrap("• "+kp, w-8, theme.Text), "      ") + "\n")
		}
	}
	if len(sec.Quizzes) > 0 {
		b.WriteString("\n" + theme.Hint.Render(fmt.Sprintf("      Press q to take the quiz (%d questions)", len(sec.Quizzes))) + "\n")
	}
	return b.String()
}

func (s *StudyScreen) unitQuizRow(u content.Unit, ui int, selected bool) string {
	style := lipgloss.NewStyle().Foreground(theme.Accent)
	if selected {
		style = style.Bold(true)
	}
	marker := " "
	if selected {
		marker = "▸"
	}
	row := "\n  " + style.Render(fmt.Sprintf("%s Unit Quiz (%d questions)", marker, len(u.UnitQuiz)))
	if badge := quizBadge(s.sess.Progress.QuizResponse(ui, progress.UnitQuizSection, true), len(u.UnitQuiz)); badge != "" {
		row += "  " + badge
	}
	return row
}

func (s *StudyScreen) renderFinished(w int) string {
	doc := s.sess.Document()
	stats := s.sess.Progress.QuizStats()
	lines := []string{
		"",
		lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render("  You have reached the end of the course."),
		"",
		lipgloss.NewStyle().Foreground(theme.Text).Render(fmt.Sprintf("  %d of %d units completed", s.sess.Progress.CompletedCount(), len(doc))),
	}
	if stats.Total > 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.Text).
			Render(fmt.Sprintf("  %d/%d quiz answers correct (%d%%)", stats.Correct, stats.Total, stats.Percentage)))
	}
	lines = append(lines, "", theme.Hint.Render("  Press p to go back to the last unit."))
	return strings.Join(lines, "\n")
}

// quizBadge summarises a quiz's saved attempt, or its size when untaken.
func quizBadge(a *quiz.Attempt, questions int) string {
	if questions == 0 {
		return ""
	}
	if answered, correct := a.Tally(); answered > 0 {
		style := theme.Correct
		if correct*2 < answered {
			style = theme.Incorrect
		}
		return style.Render(fmt.Sprintf("[%d/%d]", correct, answered))
	}
	return lipgloss.NewStyle().Foreground(theme.Muted).Render("[quiz]")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
