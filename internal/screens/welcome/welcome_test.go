package welcome

import (
	"context"
	"io"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/studylm/internal/content"
	"github.com/abhisek/studylm/internal/progress"
	"github.com/abhisek/studylm/internal/router"
	"github.com/abhisek/studylm/internal/screens/study"
	"github.com/abhisek/studylm/internal/session"
)

type memKV struct{ data map[string][]byte }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) { return m.data[key], nil }

func (m *memKV) Put(_ context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func newTestSession(t *testing.T, doc content.Document) *session.Session {
	t.Helper()
	ctx := context.Background()
	log := logrus.New()
	log.SetOutput(io.Discard)
	sess, err := session.New(ctx, session.Options{
		Progress: progress.Open(ctx, &memKV{data: map[string][]byte{}}, progress.WithLogger(log)),
		Log:      log,
		Document: doc,
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return sess
}

func testDoc() content.Document {
	return content.Document{
		{Title: "Cells", Overview: "Basics.", Sections: []content.Section{{Title: "Membranes"}}},
		{Title: "Tissues", Overview: "Groups.", Sections: []content.Section{{Title: "Epithelium"}}},
	}
}

func TestNoContentDisablesLearning(t *testing.T) {
	w := New(newTestSession(t, nil))

	if !w.menu.Items[0].Disabled {
		t.Error("start learning should be disabled without content")
	}
	if !w.menu.Items[1].Disabled {
		t.Error("upload should be disabled without an uploader")
	}
	if w.menu.Selected != 3 {
		t.Errorf("Selected = %d, want first enabled item 3", w.menu.Selected)
	}

	view := w.View(100, 40)
	if !contains(view, "No study content yet") {
		t.Errorf("view should explain missing content:\n%s", view)
	}
}

func TestStartLearningPushesStudy(t *testing.T) {
	sess := newTestSession(t, testDoc())
	w := New(sess)

	_, cmd := w.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a command from start learning")
	}
	push, ok := cmd().(router.PushScreenMsg)
	if !ok {
		t.Fatalf("expected PushScreenMsg, got %T", cmd())
	}
	if _, ok := push.Screen.(*study.StudyScreen); !ok {
		t.Errorf("pushed %T, want *study.StudyScreen", push.Screen)
	}
	if sess.Progress.Mode() != progress.ModeLearning {
		t.Errorf("Mode() = %q, want learning", sess.Progress.Mode())
	}
}

func TestActivationReturnsToWelcomeMode(t *testing.T) {
	sess := newTestSession(t, testDoc())
	if err := sess.Progress.StartLearning(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := sess.Progress.CompleteUnit(context.Background(), 2); err != nil {
		t.Fatal(err)
	}

	w := New(sess)
	w.Update(router.ScreenActivatedMsg{})

	if sess.Progress.Mode() != progress.ModeWelcome {
		t.Errorf("Mode() = %q, want welcome", sess.Progress.Mode())
	}
	if w.menu.Items[0].Label != "Continue Learning" {
		t.Errorf("first item = %q, want Continue Learning", w.menu.Items[0].Label)
	}
	if !contains(w.View(100, 40), "Up next: Tissues") {
		t.Error("view should name the next unit")
	}
}

func TestResetRequiresConfirmation(t *testing.T) {
	sess := newTestSession(t, testDoc())
	ctx := context.Background()
	if err := sess.Progress.MarkUnitComplete(ctx, 0); err != nil {
		t.Fatal(err)
	}

	w := New(sess)
	w.menu.Selected = 3
	w.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if !w.confirmReset {
		t.Fatal("reset should ask for confirmation")
	}

	w.Update(tea.KeyPressMsg{Code: 'n', Text: "n"})
	if w.confirmReset || sess.Progress.CompletedCount() != 1 {
		t.Fatal("declining should keep progress")
	}

	w.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	w.Update(tea.KeyPressMsg{Code: 'y', Text: "y"})
	if sess.Progress.CompletedCount() != 0 {
		t.Errorf("CompletedCount() = %d, want 0 after reset", sess.Progress.CompletedCount())
	}
	if !contains(w.View(100, 40), "Progress erased.") {
		t.Error("view should confirm the reset")
	}
}

func TestBannerFallsBackWhenNarrow(t *testing.T) {
	if !contains(RenderBanner(40), "S T U D Y L M") {
		t.Error("narrow banner should use the compact form")
	}
	if contains(RenderBanner(100), "S T U D Y L M") {
		t.Error("wide banner should use the full art")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchString(s, substr)
}

func searchString(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
