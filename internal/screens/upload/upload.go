// Package upload sends course files to the proxy and installs the study
// guide it generates.
package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/studylm/internal/content"
	"github.com/abhisek/studylm/internal/router"
	"github.com/abhisek/studylm/internal/screen"
	"github.com/abhisek/studylm/internal/screens/study"
	"github.com/abhisek/studylm/internal/session"
	"github.com/abhisek/studylm/internal/studyguide"
	"github.com/abhisek/studylm/internal/ui/components"
	"github.com/abhisek/studylm/internal/ui/layout"
	"github.com/abhisek/studylm/internal/ui/theme"
)

// rawOutputLines caps how much of a rejected model output is shown.
const rawOutputLines = 8

type phase int

const (
	phaseInput phase = iota
	phaseUploading
	phaseDone
)

type uploadDoneMsg struct {
	Doc content.Document
	Err error
}

// UploadScreen collects file paths and uploads them.
type UploadScreen struct {
	sess   *session.Session
	input  components.TextInput
	spin   spinner.Model
	phase  phase
	files  []string
	units  int
	errMsg string
	raw    string
}

var _ screen.Screen = (*UploadScreen)(nil)
var _ screen.KeyHintProvider = (*UploadScreen)(nil)

// New creates an UploadScreen.
func New(sess *session.Session) *UploadScreen {
	input := components.NewTextInput("~/notes/lecture1.pdf, ~/notes/slides.pdf", 0)
	input.MaxWidth = 90
	return &UploadScreen{
		sess:  sess,
		input: input,
		spin:  spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.Primary))),
	}
}

func (s *UploadScreen) Init() tea.Cmd {
	return s.input.Init()
}

func (s *UploadScreen) Title() string {
	return "Upload Course Files"
}

func (s *UploadScreen) KeyHints() []layout.KeyHint {
	switch s.phase {
	case phaseUploading:
		return []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
	case phaseDone:
		return []layout.KeyHint{
			{Key: "Enter", Description: "Start learning"},
			{Key: "Esc", Description: "Home"},
		}
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Upload"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *UploadScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case uploadDoneMsg:
		return s, s.finish(msg)

	case spinner.TickMsg:
		if s.phase != phaseUploading {
			return s, nil
		}
		var cmd tea.Cmd
		s.spin, cmd = s.spin.Update(msg)
		return s, cmd

	case tea.KeyPressMsg:
		switch s.phase {
		case phaseUploading:
			return s, nil
		case phaseDone:
			if msg.String() == "enter" {
				if err := s.sess.Progress.StartLearning(context.Background()); err != nil {
					s.errMsg = err.Error()
					return s, nil
				}
				next := study.New(s.sess)
				return s, func() tea.Msg { return router.ReplaceScreenMsg{Screen: next} }
			}
			return s, nil
		}
		if msg.String() == "enter" {
			return s, s.start()
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *UploadScreen) start() tea.Cmd {
	s.errMsg, s.raw = "", ""
	files := ParsePaths(s.input.Value())
	if len(files) == 0 {
		s.errMsg = "Enter at least one file path."
		return nil
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			s.errMsg = fmt.Sprintf("Cannot read %s: %v", f, errors.Unwrap(err))
			return nil
		}
	}

	s.files = files
	s.phase = phaseUploading
	s.input.Disabled = true

	uploader := s.sess.Uploader
	upload := func() tea.Msg {
		doc, err := uploader.UploadFiles(context.Background(), files)
		return uploadDoneMsg{Doc: doc, Err: err}
	}
	return tea.Batch(upload, s.spin.Tick)
}

func (s *UploadScreen) finish(msg uploadDoneMsg) tea.Cmd {
	s.input.Disabled = false
	if msg.Err == nil {
		msg.Err = s.sess.ReplaceDocument(context.Background(), msg.Doc)
	}
	if msg.Err != nil {
		s.phase = phaseInput
		var uerr *studyguide.UploadError
		if errors.As(msg.Err, &uerr) {
			s.errMsg = uerr.Error()
			s.raw = uerr.RawOutput
		} else {
			s.errMsg = "Upload failed: " + msg.Err.Error()
		}
		return nil
	}
	s.phase = phaseDone
	s.units = len(msg.Doc)
	return nil
}

func (s *UploadScreen) View(width, height int) string {
	cw := components.ContentWidth(width)
	s.input.SetWidth(cw - 4)

	var lines []string
	lines = append(lines, theme.Title.Width(cw).Render("UPLOAD COURSE FILES"), "")

	switch s.phase {
	case phaseUploading:
		lines = append(lines,
			s.spin.View()+" "+lipgloss.NewStyle().Foreground(theme.Text).
				Render(fmt.Sprintf("Generating your study guide from %d file(s)...", len(s.files))),
			"",
			theme.Hint.Render("This can take a minute for large documents."),
		)
	case phaseDone:
		lines = append(lines,
			theme.Completed.Bold(true).Render(fmt.Sprintf("✓ Study guide ready: %d units.", s.units)),
			"",
			theme.Hint.Render("Earlier progress was cleared for the new course. Press Enter to start learning."),
		)
	default:
		lines = append(lines,
			layout.Wrap("Enter the paths of your lecture notes, slides or readings. "+
				"Separate several files with commas.", cw, theme.TextDim),
			"",
			s.input.View(),
		)
	}

	if s.errMsg != "" {
		lines = append(lines, "", layout.Wrap(s.errMsg, cw, theme.Error))
	}
	if s.raw != "" {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(theme.TextDim).Render("Model output:"),
			components.Card(truncateLines(layout.Wrap(s.raw, cw-10, theme.Muted), rawOutputLines), cw))
	}

	return components.Center(strings.Join(lines, "\n"), width, height)
}

// ParsePaths splits the input into file paths. Paths are separated by
// commas, or by whitespace when there is no comma. A leading ~ expands to
// the home directory.
func ParsePaths(in string) []string {
	var parts []string
	if strings.Contains(in, ",") {
		parts = strings.Split(in, ",")
	} else {
		parts = strings.Fields(in)
	}

	home, _ := os.UserHomeDir()
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		if p == "" {
			continue
		}
		if home != "" && (p == "~" || strings.HasPrefix(p, "~/")) {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
		out = append(out, p)
	}
	return out
}

func truncateLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(append(lines[:n], "..."), "\n")
}
