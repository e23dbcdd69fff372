// Package chat is the study assistant screen: a scrolling transcript with
// streamed replies and an input line.
package chat

import (
	"context"
	"errors"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	ch "github.com/abhisek/studylm/internal/chat"
	"github.com/abhisek/studylm/internal/screen"
	"github.com/abhisek/studylm/internal/session"
	"github.com/abhisek/studylm/internal/ui/components"
	"github.com/abhisek/studylm/internal/ui/layout"
	"github.com/abhisek/studylm/internal/ui/theme"
)

// sender performs one chat exchange against the proxy.
type sender interface {
	Send(ctx context.Context, req ch.Request, onStart func(), onChunk func(string)) error
}

// ChatScreen shows the transcript and streams replies into it.
type ChatScreen struct {
	transcript *ch.Transcript
	client     sender
	input      components.TextInput
	vp         viewport.Model
	spin       spinner.Model

	events chan any
	cancel context.CancelFunc
	gen    int
	errMsg string
}

var _ screen.Screen = (*ChatScreen)(nil)
var _ screen.KeyHintProvider = (*ChatScreen)(nil)

// New creates a ChatScreen over the session's transcript and chat client.
func New(sess *session.Session) *ChatScreen {
	return newScreen(sess.Transcript, sess.Chat)
}

func newScreen(t *ch.Transcript, client sender) *ChatScreen {
	input := components.NewTextInput("Ask a question about your course...", 2000)
	input.MaxWidth = 120
	return &ChatScreen{
		transcript: t,
		client:     client,
		input:      input,
		vp:         viewport.New(),
		spin:       spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.Secondary))),
	}
}

func (s *ChatScreen) Init() tea.Cmd {
	return s.input.Init()
}

func (s *ChatScreen) Title() string {
	return "Study Assistant"
}

func (s *ChatScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Send"},
		{Key: "PgUp/PgDn", Description: "Scroll"},
		{Key: "Ctrl+N", Description: "New chat"},
		{Key: "Esc", Description: "Back"},
	}
}

// Streaming reports whether a reply is being received.
func (s *ChatScreen) Streaming() bool {
	return s.cancel != nil
}

// Stop abandons the reply in flight, keeping the text received so far.
func (s *ChatScreen) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.events = nil
	s.report(s.transcript.Finish(context.Background()))
}

func (s *ChatScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case replyStartedMsg:
		if msg.gen != s.gen || !s.Streaming() {
			return s, nil
		}
		s.transcript.StartReply()
		return s, s.listen()

	case replyChunkMsg:
		if msg.gen != s.gen || !s.Streaming() {
			return s, nil
		}
		s.transcript.Append(msg.text)
		return s, s.listen()

	case replyDoneMsg:
		if msg.gen != s.gen || !s.Streaming() {
			return s, nil
		}
		s.cancel()
		s.cancel = nil
		s.events = nil
		if msg.err != nil {
			s.report(s.transcript.Fail(context.Background()))
		} else {
			s.report(s.transcript.Finish(context.Background()))
		}
		return s, nil

	case spinner.TickMsg:
		if !s.transcript.Pending() {
			return s, nil
		}
		var cmd tea.Cmd
		s.spin, cmd = s.spin.Update(msg)
		return s, cmd

	case tea.KeyPressMsg:
		s.errMsg = ""
		switch msg.String() {
		case "enter":
			return s, s.send()
		case "ctrl+n":
			if s.Streaming() {
				s.errMsg = "Wait for the reply to finish before starting a new chat."
				return s, nil
			}
			s.report(s.transcript.Reset(context.Background()))
			return s, nil
		case "pgup":
			s.vp.PageUp()
			return s, nil
		case "pgdown":
			s.vp.PageDown()
			return s, nil
		case "up":
			s.vp.ScrollUp(1)
			return s, nil
		case "down":
			s.vp.ScrollDown(1)
			return s, nil
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *ChatScreen) send() tea.Cmd {
	if s.Streaming() {
		return nil
	}
	req, err := s.transcript.Begin(context.Background(), s.input.Value())
	if errors.Is(err, ch.ErrEmptyMessage) {
		return nil
	}
	if err != nil {
		s.errMsg = err.Error()
		if !s.transcript.Pending() {
			return nil
		}
	}
	s.input.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.gen++
	gen := s.gen
	events := make(chan any, 16)
	s.events = events

	client := s.client
	go func() {
		defer close(events)
		emit := func(m any) {
			select {
			case events <- m:
			case <-ctx.Done():
			}
		}
		err := client.Send(ctx, req,
			func() { emit(replyStartedMsg{gen: gen}) },
			func(text string) { emit(replyChunkMsg{gen: gen, text: text}) },
		)
		emit(replyDoneMsg{gen: gen, err: err})
	}()

	s.vp.GotoBottom()
	return tea.Batch(s.listen(), s.spin.Tick)
}

// listen waits for the next event of the reply in flight.
func (s *ChatScreen) listen() tea.Cmd {
	events := s.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		m, ok := <-events
		if !ok {
			return nil
		}
		return m
	}
}

func (s *ChatScreen) report(err error) {
	if err != nil {
		s.errMsg = err.Error()
	}
}

func (s *ChatScreen) View(width, height int) string {
	s.input.SetWidth(width - 8)
	inputView := s.input.View()

	status, statusHeight := "", 0
	if s.errMsg != "" {
		status = lipgloss.NewStyle().Foreground(theme.Error).Render("  "+s.errMsg) + "\n"
		statusHeight = 1
	}

	bodyHeight := height - lipgloss.Height(inputView) - statusHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	atBottom := s.vp.AtBottom()
	s.vp.SetWidth(width)
	s.vp.SetHeight(bodyHeight)
	s.vp.SetContent(s.renderMessages(width))
	if atBottom || s.Streaming() {
		s.vp.GotoBottom()
	}

	return s.vp.View() + "\n" + status + "  " + inputView
}

func (s *ChatScreen) renderMessages(width int) string {
	msgs := s.transcript.Messages()
	if len(msgs) == 0 {
		hint := layout.Wrap("Ask the study assistant to explain a concept, quiz you, "+
			"or summarise a unit. It knows the units of your current course.", components.ContentWidth(width), theme.TextDim)
		return components.Center(hint, width, 8)
	}

	bubbleWidth := width * 3 / 4
	var b strings.Builder
	b.WriteString("\n")
	for _, m := range msgs {
		var bubble string
		switch {
		case m.Loading:
			bubble = theme.AssistantBubble.Render(s.spin.View() + " thinking")
		case m.Error:
			bubble = theme.ErrorBubble.Width(min(bubbleWidth, lipgloss.Width(m.Text)+4)).Render(m.Text)
		case m.Sender == ch.SenderUser:
			bubble = theme.UserBubble.Width(min(bubbleWidth, lipgloss.Width(m.Text)+2)).Render(m.Text)
			bubble = lipgloss.PlaceHorizontal(width-2, lipgloss.Right, bubble)
		default:
			text := m.Text
			if text == "" {
				text = " "
			}
			bubble = theme.AssistantBubble.Width(min(bubbleWidth, widest(text)+4)).Render(text)
		}
		b.WriteString("  " + strings.ReplaceAll(bubble, "\n", "\n  ") + "\n\n")
	}
	return b.String()
}

func widest(s string) int {
	w := 0
	for _, l := range strings.Split(s, "\n") {
		w = max(w, lipgloss.Width(l))
	}
	return w
}
