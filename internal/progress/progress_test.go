package progress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/studylm/internal/content"
	"github.com/abhisek/studylm/internal/quiz"
	"github.com/abhisek/studylm/internal/store"
)

type memKV struct {
	data    map[string][]byte
	puts    int
	failPut error
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	return m.data[key], nil
}

func (m *memKV) Put(_ context.Context, key string, value []byte) error {
	if m.failPut != nil {
		return m.failPut
	}
	m.puts++
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

type memQuizLog struct {
	events []store.QuizEventData
}

func (l *memQuizLog) AppendQuizEvent(_ context.Context, data store.QuizEventData) error {
	l.events = append(l.events, data)
	return nil
}

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func openStore(t *testing.T, kv KV, opts ...Option) *Store {
	t.Helper()
	return Open(context.Background(), kv, append([]Option{WithLogger(quiet())}, opts...)...)
}

func attempt(results ...bool) *quiz.Attempt {
	a := &quiz.Attempt{Graded: true}
	for _, r := range results {
		v := r
		a.Results = append(a.Results, &v)
		resp := "x"
		a.Responses = append(a.Responses, &resp)
		a.PresentedOrder = append(a.PresentedOrder, []string{"x", "y"})
	}
	return a
}

func TestOpenEmptyYieldsDefaults(t *testing.T) {
	s := openStore(t, newMemKV())
	got := s.Snapshot()
	if got.StudyMode != ModeWelcome || got.ActiveTab != TabLearn || got.CurrentUnitIndex != 0 {
		t.Errorf("Snapshot() = %+v, want defaults", got)
	}
	if len(got.CompletedUnits) != 0 || len(got.ExpandedSections) != 0 {
		t.Errorf("Snapshot() collections not empty: %+v", got)
	}
}

func TestOpenCorruptSnapshotYieldsDefaults(t *testing.T) {
	kv := newMemKV()
	kv.data[SnapshotKey] = []byte("{not json")
	s := openStore(t, kv)
	if s.Mode() != ModeWelcome {
		t.Errorf("Mode() = %q, want welcome", s.Mode())
	}
}

func TestModeOverride(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := openStore(t, kv)
	if err := s.StartLearning(ctx); err != nil {
		t.Fatal(err)
	}

	s2 := openStore(t, kv, WithModeOverride(ModeWelcome))
	if s2.Mode() != ModeWelcome {
		t.Errorf("Mode() = %q, want override welcome", s2.Mode())
	}
	s3 := openStore(t, kv)
	if s3.Mode() != ModeLearning {
		t.Errorf("Mode() = %q, want persisted learning", s3.Mode())
	}
}

func TestEveryMutationPersists(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := openStore(t, kv)

	steps := []func() error{
		func() error { return s.StartLearning(ctx) },
		func() error { return s.ChangeTab(ctx, TabChat) },
		func() error { return s.MarkUnitComplete(ctx, 0) },
		func() error { return s.ToggleUnitComplete(ctx, 1) },
		func() error { return s.GoToNextUnit(ctx) },
		func() error { return s.GoToPreviousUnit(ctx) },
		func() error { return s.ToggleSectionExpanded(ctx, 0, 1) },
		func() error { return s.SaveQuizResponse(ctx, 0, 1, attempt(true), false) },
		func() error { return s.GoToWelcome(ctx) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if kv.puts != i+1 {
			t.Fatalf("after step %d puts = %d, want %d", i, kv.puts, i+1)
		}
	}

	reloaded := openStore(t, kv).Snapshot()
	want := s.Snapshot()
	if reloaded.ActiveTab != want.ActiveTab ||
		!slices.Equal(reloaded.CompletedUnits, want.CompletedUnits) ||
		reloaded.ExpandedSections[SectionKey(0, 1)] != true ||
		reloaded.QuizResponses[SectionKey(0, 1)] == nil {
		t.Errorf("reloaded = %+v, want %+v", reloaded, want)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := openStore(t, kv)

	unitQuiz := attempt(true, false, true)
	unitQuiz.Responses[1] = nil
	unitQuiz.Results[1] = nil
	unitQuiz.PresentedOrder[2] = []string{"D", "B", "A", "C"}
	unitQuiz.Timestamp = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	unitQuiz.UnitQuiz = true

	section := attempt(false, true)
	section.Timestamp = time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC)

	steps := []func() error{
		func() error { return s.StartLearning(ctx) },
		func() error { return s.ChangeTab(ctx, TabChat) },
		func() error { return s.GoToNextUnit(ctx) },
		func() error { return s.GoToNextUnit(ctx) },
		func() error { return s.GoToNextUnit(ctx) },
		func() error { return s.MarkUnitComplete(ctx, 0) },
		func() error { return s.MarkUnitComplete(ctx, 2) },
		func() error { return s.ToggleSectionExpanded(ctx, 0, 1) },
		func() error { return s.ToggleSectionExpanded(ctx, 3, UnitQuizSection) },
		func() error { return s.SaveQuizResponse(ctx, 1, 0, section, false) },
		func() error { return s.SaveQuizResponse(ctx, 3, UnitQuizSection, unitQuiz, true) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	want := s.Snapshot()
	if want.CurrentUnitIndex != 3 || want.StudyMode != ModeLearning {
		t.Fatalf("Snapshot() = %+v, want learning at unit 3", want)
	}
	got := openStore(t, kv).Snapshot()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("reloaded snapshot differs\n got: %+v\nwant: %+v", got, want)
	}
	if a := got.UnitQuizResponses[UnitQuizKey(3)]; a == nil || a.Responses[1] != nil || !a.UnitQuiz {
		t.Errorf("unit quiz attempt = %+v, want nil second response and unit flag", a)
	}
}

func TestUnitQuizIgnoresSectionIndex(t *testing.T) {
	ctx := context.Background()
	log := &memQuizLog{}
	s := openStore(t, newMemKV(), WithQuizLog(log))

	if err := s.SaveQuizResponse(ctx, 2, 5, attempt(true), true); err != nil {
		t.Fatal(err)
	}
	if s.QuizResponse(2, UnitQuizSection, true) == nil {
		t.Error("unit quiz saved at section 5 not found under UnitQuizSection")
	}
	if _, ok := s.Snapshot().UnitQuizResponses[UnitQuizKey(2)]; !ok {
		t.Errorf("UnitQuizResponses keys = %v, want %v", s.Snapshot().UnitQuizResponses, UnitQuizKey(2))
	}

	if err := s.Recorder(ctx, 4, 7, true)(attempt(false)); err != nil {
		t.Fatal(err)
	}
	if len(log.events) != 1 || log.events[0].SectionIndex != UnitQuizSection {
		t.Errorf("quiz log = %+v, want one event at section %d", log.events, UnitQuizSection)
	}
}

func TestSnapshotUsesStringKeys(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := openStore(t, kv)
	if err := s.ToggleSectionExpanded(ctx, 2, UnitQuizSection); err != nil {
		t.Fatal(err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(kv.data[SnapshotKey], &raw); err != nil {
		t.Fatal(err)
	}
	var expanded map[string]bool
	if err := json.Unmarshal(raw["expandedSections"], &expanded); err != nil {
		t.Fatal(err)
	}
	if !expanded["2--1"] {
		t.Errorf("expandedSections = %v, want key 2--1", expanded)
	}
}

func TestMarkUnitCompleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemKV())
	for range 3 {
		if err := s.MarkUnitComplete(ctx, 4); err != nil {
			t.Fatal(err)
		}
	}
	if s.CompletedCount() != 1 || !s.IsUnitComplete(4) {
		t.Errorf("completed = %v, want [4]", s.Snapshot().CompletedUnits)
	}
}

func TestToggleUnitCompleteTwiceRestores(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemKV())
	if err := s.MarkUnitComplete(ctx, 1); err != nil {
		t.Fatal(err)
	}
	before := s.Snapshot().CompletedUnits

	for _, u := range []int{1, 3} {
		if err := s.ToggleUnitComplete(ctx, u); err != nil {
			t.Fatal(err)
		}
		if err := s.ToggleUnitComplete(ctx, u); err != nil {
			t.Fatal(err)
		}
		after := slices.Sorted(slices.Values(s.Snapshot().CompletedUnits))
		if !slices.Equal(after, before) {
			t.Errorf("toggle %d twice: completed = %v, want %v", u, after, before)
		}
	}
}

func TestUnitNavigation(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemKV())

	if err := s.GoToPreviousUnit(ctx); err != nil {
		t.Fatal(err)
	}
	if s.CurrentUnitIndex() != 0 {
		t.Errorf("index = %d after previous at 0, want 0", s.CurrentUnitIndex())
	}

	doc := content.Document{{Title: "One"}, {Title: "Two"}}
	for range 3 {
		if err := s.GoToNextUnit(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if s.CurrentUnitIndex() != 3 {
		t.Errorf("index = %d, want 3 (no upper clamp)", s.CurrentUnitIndex())
	}
	if _, ok := s.CurrentUnit(doc); ok {
		t.Error("CurrentUnit() ok past the end")
	}

	if err := s.GoToPreviousUnit(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.GoToPreviousUnit(ctx); err != nil {
		t.Fatal(err)
	}
	u, ok := s.CurrentUnit(doc)
	if !ok || u.Title != "Two" {
		t.Errorf("CurrentUnit() = %q,%v want Two,true", u.Title, ok)
	}
}

func TestCompleteUnitAdvancesUntilLast(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemKV())

	if err := s.CompleteUnit(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if s.CurrentUnitIndex() != 1 || !s.IsUnitComplete(0) {
		t.Errorf("after first: index=%d completed=%v", s.CurrentUnitIndex(), s.Snapshot().CompletedUnits)
	}
	if err := s.CompleteUnit(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if s.CurrentUnitIndex() != 1 || s.CompletedCount() != 2 {
		t.Errorf("after last: index=%d completed=%v", s.CurrentUnitIndex(), s.Snapshot().CompletedUnits)
	}
}

func TestSectionKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemKV())

	if err := s.ToggleSectionExpanded(ctx, 2, UnitQuizSection); err != nil {
		t.Fatal(err)
	}
	if !s.IsSectionExpanded(2, UnitQuizSection) {
		t.Error("unit quiz 2 not expanded")
	}
	if s.IsSectionExpanded(2, 0) {
		t.Error("section (2,0) expanded by unit quiz toggle")
	}
	if err := s.ToggleSectionExpanded(ctx, 2, UnitQuizSection); err != nil {
		t.Fatal(err)
	}
	if s.IsSectionExpanded(2, UnitQuizSection) {
		t.Error("second toggle did not collapse")
	}
}

func TestSaveQuizResponseNilClears(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemKV())

	if err := s.SaveQuizResponse(ctx, 0, 0, attempt(true, false), false); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveQuizResponse(ctx, 0, 0, attempt(true), true); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveQuizResponse(ctx, 0, 0, nil, false); err != nil {
		t.Fatal(err)
	}
	if s.QuizResponse(0, 0, false) != nil {
		t.Error("section attempt survived nil save")
	}
	if s.QuizResponse(0, 0, true) == nil {
		t.Error("unit quiz attempt cleared by section save")
	}
}

func TestQuizResponseIsACopy(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemKV())
	a := attempt(true)
	if err := s.SaveQuizResponse(ctx, 1, 1, a, false); err != nil {
		t.Fatal(err)
	}
	*a.Results[0] = false

	got := s.QuizResponse(1, 1, false)
	if got == nil || !*got.Results[0] {
		t.Error("stored attempt shares memory with the caller")
	}
}

func TestQuizStats(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemKV())

	if got := s.QuizStats(); got.Total != 0 || got.Percentage != 0 {
		t.Errorf("empty QuizStats() = %+v", got)
	}

	if err := s.SaveQuizResponse(ctx, 0, 0, attempt(true, false, true), false); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveQuizResponse(ctx, 0, UnitQuizSection, attempt(true, true), true); err != nil {
		t.Fatal(err)
	}

	got := s.QuizStats()
	want := Stats{
		Total:       5,
		Correct:     4,
		Percentage:  80,
		Sections:    Tally{Answered: 3, Correct: 2},
		UnitQuizzes: Tally{Answered: 2, Correct: 2},
	}
	if got != want {
		t.Errorf("QuizStats() = %+v, want %+v", got, want)
	}
	if got.Sections.Percentage() != 67 {
		t.Errorf("Sections.Percentage() = %d, want 67", got.Sections.Percentage())
	}
}

func TestQuizStatsAcrossSections(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemKV())

	if err := s.SaveQuizResponse(ctx, 0, 0, attempt(true, false, true), false); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveQuizResponse(ctx, 0, 1, attempt(true, true), false); err != nil {
		t.Fatal(err)
	}

	got := s.QuizStats()
	want := Stats{
		Total:      5,
		Correct:    4,
		Percentage: 80,
		Sections:   Tally{Answered: 5, Correct: 4},
	}
	if got != want {
		t.Errorf("QuizStats() = %+v, want %+v", got, want)
	}
}

func TestResetProgress(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := openStore(t, kv)
	if err := s.StartLearning(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkUnitComplete(ctx, 0); err != nil {
		t.Fatal(err)
	}

	if err := s.ResetProgress(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := kv.data[SnapshotKey]; ok {
		t.Error("snapshot still persisted after reset")
	}
	if s.Mode() != ModeWelcome || s.CompletedCount() != 0 {
		t.Errorf("state after reset = %+v", s.Snapshot())
	}
}

func TestEnsureContentResetsWhenLearningWithoutContent(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemKV())
	if err := s.StartLearning(ctx); err != nil {
		t.Fatal(err)
	}

	if err := s.EnsureContent(ctx, content.Document{{Title: "U"}}); err != nil {
		t.Fatal(err)
	}
	if s.Mode() != ModeLearning {
		t.Error("reset with content available")
	}
	if err := s.EnsureContent(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if s.Mode() != ModeWelcome {
		t.Error("no reset without content")
	}
}

func TestChangeTabRejectsUnknown(t *testing.T) {
	s := openStore(t, newMemKV())
	if err := s.ChangeTab(context.Background(), Tab("notes")); err == nil {
		t.Error("ChangeTab(notes) succeeded")
	}
}

func TestPersistFailureIsReported(t *testing.T) {
	kv := newMemKV()
	kv.failPut = errors.New("read-only")
	s := openStore(t, kv)
	err := s.MarkUnitComplete(context.Background(), 0)
	if !errors.Is(err, kv.failPut) {
		t.Errorf("err = %v, want %v", err, kv.failPut)
	}
}

func TestRecorderSavesAndLogs(t *testing.T) {
	ctx := context.Background()
	log := &memQuizLog{}
	s := openStore(t, newMemKV(), WithQuizLog(log))

	qs := []content.Question{
		{Question: "Q1", Choices: []string{"A", "B"}, CorrectAnswer: "A"},
		{Question: "Q2", Choices: []string{"A", "B"}, CorrectAnswer: "B"},
	}
	e := quiz.New(qs, quiz.WithRecorder(s.Recorder(ctx, 1, 0, false)))
	e.SelectAnswer(0, "A")
	e.SelectAnswer(1, "A")
	if _, err := e.Grade(); err != nil {
		t.Fatal(err)
	}

	saved := s.QuizResponse(1, 0, false)
	if saved == nil || !saved.Graded {
		t.Fatalf("QuizResponse() = %+v, want graded attempt", saved)
	}
	if len(log.events) != 1 {
		t.Fatalf("events = %d, want 1", len(log.events))
	}
	if ev := log.events[0]; ev.UnitIndex != 1 || ev.Correct != 1 || ev.Total != 2 {
		t.Errorf("event = %+v", ev)
	}

	if err := e.Reset(); err != nil {
		t.Fatal(err)
	}
	if s.QuizResponse(1, 0, false) != nil {
		t.Error("reset did not clear stored attempt")
	}
	if len(log.events) != 1 {
		t.Errorf("reset appended an event")
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{"0-0", Key{0, 0}, false},
		{"12-3", Key{12, 3}, false},
		{"3--1", Key{3, -1}, false},
		{"", Key{}, true},
		{"7", Key{}, true},
		{"a-b", Key{}, true},
	}
	for _, tt := range tests {
		got, err := ParseKey(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKey(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseKey(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if !tt.wantErr && got.String() != tt.in {
			t.Errorf("String() = %q, want %q", got.String(), tt.in)
		}
	}
}

func TestDecodeStateNormalizes(t *testing.T) {
	data := []byte(`{"currentUnitIndex":-4,"completedUnits":[1,1,2],"studyMode":"bogus","activeTab":"x","quizResponses":{"0-0":null}}`)
	s, err := decodeState(data)
	if err != nil {
		t.Fatal(err)
	}
	if s.CurrentUnitIndex != 0 || s.StudyMode != ModeWelcome || s.ActiveTab != TabLearn {
		t.Errorf("decodeState() = %+v", s)
	}
	if !slices.Equal(s.CompletedUnits, []int{1, 2}) {
		t.Errorf("CompletedUnits = %v, want [1 2]", s.CompletedUnits)
	}
	if len(s.QuizResponses) != 0 || s.UnitQuizResponses == nil || s.ExpandedSections == nil {
		t.Errorf("maps not normalised: %+v", s)
	}
}
