package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/studylm/internal/content"
	"github.com/abhisek/studylm/internal/quiz"
	"github.com/abhisek/studylm/internal/store"
)

// SnapshotKey is the key under which the state snapshot is persisted.
const SnapshotKey = "studyProgress"

// KV is the persistence the store writes its snapshot to.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// QuizLog receives one event per graded quiz.
type QuizLog interface {
	AppendQuizEvent(ctx context.Context, data store.QuizEventData) error
}

// Option configures a Store.
type Option func(*Store)

// WithModeOverride forces the initial study mode regardless of the
// persisted snapshot.
func WithModeOverride(m Mode) Option {
	return func(s *Store) { s.override = m }
}

// WithLogger sets the logger used for recoverable persistence problems.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) { s.log = log }
}

// WithQuizLog appends graded attempts recorded through Recorder to l.
func WithQuizLog(l QuizLog) Option {
	return func(s *Store) { s.quizLog = l }
}

// Store is the authoritative session state. Every mutation persists the
// complete snapshot before returning. It is owned by one controller and is
// not safe for concurrent use.
type Store struct {
	kv       KV
	state    State
	override Mode
	log      logrus.FieldLogger
	quizLog  QuizLog
}

// Open reads the persisted snapshot. A missing or corrupt snapshot yields
// the default state; Open never fails.
func Open(ctx context.Context, kv KV, opts ...Option) *Store {
	s := &Store{
		kv:    kv,
		state: DefaultState(),
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := kv.Get(ctx, SnapshotKey)
	switch {
	case err != nil:
		s.log.WithError(err).Warn("Failed to read study progress, starting fresh")
	case data != nil:
		st, err := decodeState(data)
		if err != nil {
			s.log.WithError(err).Warn("Discarding corrupt study progress")
		}
		s.state = st
	}

	if s.override != "" {
		s.state.StudyMode = s.override
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	return s.state.Clone()
}

func (s *Store) save(ctx context.Context) error {
	data, err := json.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := s.kv.Put(ctx, SnapshotKey, data); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// Mode returns the active study mode.
func (s *Store) Mode() Mode { return s.state.StudyMode }

// ActiveTab returns the pane shown while learning.
func (s *Store) ActiveTab() Tab { return s.state.ActiveTab }

// CurrentUnitIndex returns the navigation position.
func (s *Store) CurrentUnitIndex() int { return s.state.CurrentUnitIndex }

// StartLearning switches to the learning view on the learn tab.
func (s *Store) StartLearning(ctx context.Context) error {
	s.state.StudyMode = ModeLearning
	s.state.ActiveTab = TabLearn
	return s.save(ctx)
}

// GoToWelcome switches to the welcome view.
func (s *Store) GoToWelcome(ctx context.Context) error {
	s.state.StudyMode = ModeWelcome
	return s.save(ctx)
}

// ChangeTab selects the pane shown while learning.
func (s *Store) ChangeTab(ctx context.Context, tab Tab) error {
	if tab != TabLearn && tab != TabChat {
		return fmt.Errorf("unknown tab %q", tab)
	}
	s.state.ActiveTab = tab
	return s.save(ctx)
}

// MarkUnitComplete adds unit i to the completed set. It is idempotent.
func (s *Store) MarkUnitComplete(ctx context.Context, i int) error {
	s.markComplete(i)
	return s.save(ctx)
}

func (s *Store) markComplete(i int) {
	if !slices.Contains(s.state.CompletedUnits, i) {
		s.state.CompletedUnits = append(s.state.CompletedUnits, i)
	}
}

// ToggleUnitComplete flips unit i's membership in the completed set.
func (s *Store) ToggleUnitComplete(ctx context.Context, i int) error {
	if idx := slices.Index(s.state.CompletedUnits, i); idx >= 0 {
		s.state.CompletedUnits = slices.Delete(s.state.CompletedUnits, idx, idx+1)
	} else {
		s.state.CompletedUnits = append(s.state.CompletedUnits, i)
	}
	return s.save(ctx)
}

// IsUnitComplete reports whether unit i is marked complete.
func (s *Store) IsUnitComplete(i int) bool {
	return slices.Contains(s.state.CompletedUnits, i)
}

// CompletedCount returns the number of completed units.
func (s *Store) CompletedCount() int {
	return len(s.state.CompletedUnits)
}

// GoToNextUnit advances the position by one. The store does not know the
// document length; an index past the last unit means "no current unit"
// (see CurrentUnit).
func (s *Store) GoToNextUnit(ctx context.Context) error {
	s.state.CurrentUnitIndex++
	return s.save(ctx)
}

// GoToPreviousUnit moves back one unit, stopping at the first.
func (s *Store) GoToPreviousUnit(ctx context.Context) error {
	s.state.CurrentUnitIndex = max(0, s.state.CurrentUnitIndex-1)
	return s.save(ctx)
}

// CompleteUnit marks the current unit complete and advances to the next one
// unless it is the last of total units.
func (s *Store) CompleteUnit(ctx context.Context, total int) error {
	i := s.state.CurrentUnitIndex
	s.markComplete(i)
	if i < total-1 {
		s.state.CurrentUnitIndex++
	}
	return s.save(ctx)
}

// CurrentUnit returns the unit at the navigation position. ok is false when
// the position is past the end of doc.
func (s *Store) CurrentUnit(doc content.Document) (u content.Unit, ok bool) {
	i := s.state.CurrentUnitIndex
	if i < 0 || i >= len(doc) {
		return content.Unit{}, false
	}
	return doc[i], true
}

// ToggleSectionExpanded flips the expansion flag of section sec in unit u.
// Use UnitQuizSection for the unit quiz.
func (s *Store) ToggleSectionExpanded(ctx context.Context, u, sec int) error {
	k := SectionKey(u, sec)
	s.state.ExpandedSections[k] = !s.state.ExpandedSections[k]
	return s.save(ctx)
}

// IsSectionExpanded reports the expansion flag, false when never toggled.
func (s *Store) IsSectionExpanded(u, sec int) bool {
	return s.state.ExpandedSections[SectionKey(u, sec)]
}

func (s *Store) responses(unitQuiz bool) map[Key]*quiz.Attempt {
	if unitQuiz {
		return s.state.UnitQuizResponses
	}
	return s.state.QuizResponses
}

// quizKey addresses a stored attempt. Unit quizzes always use the
// UnitQuizSection sentinel, whatever sec the caller passed.
func quizKey(u, sec int, unitQuiz bool) Key {
	if unitQuiz {
		return UnitQuizKey(u)
	}
	return SectionKey(u, sec)
}

// SaveQuizResponse stores a for the quiz at (u, sec), or clears it when a
// is nil. unitQuiz selects the unit-quiz map.
func (s *Store) SaveQuizResponse(ctx context.Context, u, sec int, a *quiz.Attempt, unitQuiz bool) error {
	m := s.responses(unitQuiz)
	k := quizKey(u, sec, unitQuiz)
	if a == nil {
		delete(m, k)
	} else {
		m[k] = a.Clone()
	}
	return s.save(ctx)
}

// QuizResponse returns a copy of the stored attempt, or nil.
func (s *Store) QuizResponse(u, sec int, unitQuiz bool) *quiz.Attempt {
	return s.responses(unitQuiz)[quizKey(u, sec, unitQuiz)].Clone()
}

// Recorder adapts the store to a quiz engine's recorder hook for the quiz
// at (u, sec). A failing quiz log is logged but does not fail the save.
func (s *Store) Recorder(ctx context.Context, u, sec int, unitQuiz bool) quiz.Recorder {
	k := quizKey(u, sec, unitQuiz)
	return func(a *quiz.Attempt) error {
		if err := s.SaveQuizResponse(ctx, k.Unit, k.Section, a, unitQuiz); err != nil {
			return err
		}
		if a == nil || s.quizLog == nil {
			return nil
		}
		answered, correct := a.Tally()
		err := s.quizLog.AppendQuizEvent(ctx, store.QuizEventData{
			UnitIndex:    k.Unit,
			SectionIndex: k.Section,
			UnitQuiz:     unitQuiz,
			Correct:      correct,
			Total:        answered,
		})
		if err != nil {
			s.log.WithError(err).Warn("Failed to append quiz event")
		}
		return nil
	}
}

// ResetProgress restores defaults and erases the persisted snapshot.
func (s *Store) ResetProgress(ctx context.Context) error {
	s.state = DefaultState()
	if err := s.kv.Delete(ctx, SnapshotKey); err != nil {
		return fmt.Errorf("erase progress: %w", err)
	}
	return nil
}

// EnsureContent resets progress when the learner is in learning mode but
// no study content is available.
func (s *Store) EnsureContent(ctx context.Context, doc content.Document) error {
	if s.state.StudyMode == ModeLearning && len(doc) == 0 {
		return s.ResetProgress(ctx)
	}
	return nil
}

// Tally is the answered/correct count over one group of attempts.
type Tally struct {
	Answered int
	Correct  int
}

// Percentage returns Correct/Answered*100 rounded half up.
func (t Tally) Percentage() int {
	return quiz.Percentage(t.Correct, t.Answered)
}

// Stats aggregates quiz results over section and unit quizzes.
type Stats struct {
	Total       int
	Correct     int
	Percentage  int
	Sections    Tally
	UnitQuizzes Tally
}

// QuizStats derives answer statistics from the stored attempts. Only
// non-null results count as answered.
func (s *Store) QuizStats() Stats {
	sections := tally(s.state.QuizResponses)
	units := tally(s.state.UnitQuizResponses)
	total := sections.Answered + units.Answered
	correct := sections.Correct + units.Correct
	return Stats{
		Total:       total,
		Correct:     correct,
		Percentage:  quiz.Percentage(correct, total),
		Sections:    sections,
		UnitQuizzes: units,
	}
}

func tally(m map[Key]*quiz.Attempt) Tally {
	var t Tally
	for _, a := range m {
		answered, correct := a.Tally()
		t.Answered += answered
		t.Correct += correct
	}
	return t
}
