// Package quiz runs a single multiple-choice quiz: shuffled presentation,
// answer selection, grading and scoring.
package quiz

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/abhisek/studylm/internal/content"
	"github.com/abhisek/studylm/internal/shuffle"
)

// State is the engine's position in the quiz lifecycle.
type State int

const (
	Unanswered State = iota
	Answering
	Graded
)

func (s State) String() string {
	switch s {
	case Unanswered:
		return "unanswered"
	case Answering:
		return "answering"
	case Graded:
		return "graded"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrUnanswered is returned by Grade when a question has no selection.
	// Callers are expected to check AllAnswered first.
	ErrUnanswered = errors.New("quiz: not every question is answered")

	// ErrAlreadyGraded is returned by Grade on a graded quiz.
	ErrAlreadyGraded = errors.New("quiz: already graded")

	// ErrNotGraded is returned by Score before grading.
	ErrNotGraded = errors.New("quiz: not graded")
)

// Recorder persists attempts for the quiz. It receives the attempt after
// grading and nil after a reset.
type Recorder func(a *Attempt) error

// Score is the outcome of a graded quiz.
type Score struct {
	Correct    int
	Total      int
	Percentage int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used for shuffling.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rnd = r }
}

// WithClock sets the time source used to stamp attempts.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRecorder sets the hook that persists attempts.
func WithRecorder(rec Recorder) Option {
	return func(e *Engine) { e.record = rec }
}

// AsUnitQuiz marks attempts produced by this engine as unit quizzes.
func AsUnitQuiz() Option {
	return func(e *Engine) { e.unitQuiz = true }
}

// Engine holds one quiz instance. It is not safe for concurrent use.
type Engine struct {
	questions []content.Question
	order     [][]string
	selected  []*string
	results   []*bool
	state     State
	gradedAt  time.Time

	rnd      *rand.Rand
	now      func() time.Time
	record   Recorder
	unitQuiz bool
}

// New creates an engine for questions and draws the initial shuffle.
func New(questions []content.Question, opts ...Option) *Engine {
	e := &Engine{
		questions: questions,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.start()
	return e
}

func (e *Engine) start() {
	e.order = make([][]string, len(e.questions))
	for i, q := range e.questions {
		e.order[i] = shuffle.SliceWith(e.rnd, q.Choices)
	}
	e.selected = make([]*string, len(e.questions))
	e.results = make([]*bool, len(e.questions))
	e.state = Unanswered
	e.gradedAt = time.Time{}
}

// State returns the current lifecycle state.
func (e *Engine) State() State { return e.state }

// Len returns the number of questions.
func (e *Engine) Len() int { return len(e.questions) }

// Question returns the i-th question as authored.
func (e *Engine) Question(i int) content.Question { return e.questions[i] }

// Choices returns a copy of question i's choices in presented order.
func (e *Engine) Choices(i int) []string { return slices.Clone(e.order[i]) }

// Selected returns the choice selected for question i, if any.
func (e *Engine) Selected(i int) (string, bool) {
	if i < 0 || i >= len(e.selected) || e.selected[i] == nil {
		return "", false
	}
	return *e.selected[i], true
}

// Result reports whether question i was answered correctly. ok is false
// until the quiz is graded.
func (e *Engine) Result(i int) (correct, ok bool) {
	if i < 0 || i >= len(e.results) || e.results[i] == nil {
		return false, false
	}
	return *e.results[i], true
}

// SelectAnswer records choice for question i, replacing any earlier
// selection. It is a no-op once graded or for an out-of-range index.
func (e *Engine) SelectAnswer(i int, choice string) {
	if e.state == Graded || i < 0 || i >= len(e.questions) {
		return
	}
	c := choice
	e.selected[i] = &c
	e.state = Answering
}

// AllAnswered reports whether every question has a selection.
func (e *Engine) AllAnswered() bool {
	for _, s := range e.selected {
		if s == nil {
			return false
		}
	}
	return true
}

// Grade compares every selection to its correct answer, moves to Graded and
// hands the resulting attempt to the recorder.
func (e *Engine) Grade() (*Attempt, error) {
	if e.state == Graded {
		return nil, ErrAlreadyGraded
	}
	if !e.AllAnswered() {
		return nil, ErrUnanswered
	}

	for i, q := range e.questions {
		ok := *e.selected[i] == q.CorrectAnswer
		e.results[i] = &ok
	}
	e.state = Graded
	e.gradedAt = e.now()

	a := e.Attempt()
	if e.record != nil {
		if err := e.record(a.Clone()); err != nil {
			return a, fmt.Errorf("record attempt: %w", err)
		}
	}
	return a, nil
}

// Reset clears all selections, draws a fresh shuffle and tells the recorder
// to forget the stored attempt.
func (e *Engine) Reset() error {
	e.start()
	if e.record != nil {
		if err := e.record(nil); err != nil {
			return fmt.Errorf("clear attempt: %w", err)
		}
	}
	return nil
}

// Score returns the graded result.
func (e *Engine) Score() (Score, error) {
	if e.state != Graded {
		return Score{}, ErrNotGraded
	}
	var correct int
	for _, r := range e.results {
		if r != nil && *r {
			correct++
		}
	}
	total := len(e.questions)
	return Score{Correct: correct, Total: total, Percentage: Percentage(correct, total)}, nil
}

// Attempt snapshots the current state as an Attempt.
func (e *Engine) Attempt() *Attempt {
	a := &Attempt{
		Responses:      e.selected,
		Results:        e.results,
		Graded:         e.state == Graded,
		Timestamp:      e.gradedAt,
		PresentedOrder: e.order,
		UnitQuiz:       e.unitQuiz,
	}
	return a.Clone()
}

// Restore puts the engine into the graded state recorded by a, including
// its presented order, without drawing a new shuffle. Attempts that do not
// fit this quiz are ignored and Restore returns false.
func (e *Engine) Restore(a *Attempt) bool {
	if !e.fits(a) {
		return false
	}
	c := a.Clone()
	e.selected = c.Responses
	e.results = c.Results
	e.order = c.PresentedOrder
	e.gradedAt = c.Timestamp
	e.state = Graded
	return true
}

func (e *Engine) fits(a *Attempt) bool {
	n := len(e.questions)
	if a == nil || !a.Graded {
		return false
	}
	if len(a.Responses) != n || len(a.Results) != n || len(a.PresentedOrder) != n {
		return false
	}
	for i, q := range e.questions {
		if !sameChoices(a.PresentedOrder[i], q.Choices) {
			return false
		}
	}
	return true
}

func sameChoices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
