// Package progress holds the learner's session state, persists it after
// every mutation and derives quiz statistics from it.
package progress

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/abhisek/studylm/internal/quiz"
)

// Mode selects the top-level view.
type Mode string

const (
	ModeWelcome  Mode = "welcome"
	ModeLearning Mode = "learning"
)

// Tab selects the pane shown while learning.
type Tab string

const (
	TabLearn Tab = "learn"
	TabChat  Tab = "chat"
)

// UnitQuizSection is the section index that addresses a unit's own quiz.
const UnitQuizSection = -1

// Key addresses a section (or, with UnitQuizSection, a unit quiz) inside
// the study document. It is serialised as "<unit>-<section>".
type Key struct {
	Unit    int
	Section int
}

// SectionKey returns the key of section s in unit u.
func SectionKey(u, s int) Key { return Key{Unit: u, Section: s} }

// UnitQuizKey returns the key of unit u's quiz.
func UnitQuizKey(u int) Key { return Key{Unit: u, Section: UnitQuizSection} }

func (k Key) String() string {
	return strconv.Itoa(k.Unit) + "-" + strconv.Itoa(k.Section)
}

// ParseKey parses the "<unit>-<section>" form produced by String.
func ParseKey(s string) (Key, error) {
	// Sections may be negative ("3--1"): split on the first dash past the
	// first byte.
	i := strings.Index(s[min(1, len(s)):], "-")
	if i < 0 {
		return Key{}, fmt.Errorf("invalid key %q", s)
	}
	i++
	u, err := strconv.Atoi(s[:i])
	if err != nil {
		return Key{}, fmt.Errorf("invalid key %q: %w", s, err)
	}
	sec, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return Key{}, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return Key{Unit: u, Section: sec}, nil
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// State is the persisted session record.
type State struct {
	CurrentUnitIndex  int                   `json:"currentUnitIndex"`
	ExpandedSections  map[Key]bool          `json:"expandedSections"`
	CompletedUnits    []int                 `json:"completedUnits"`
	StudyMode         Mode                  `json:"studyMode"`
	ActiveTab         Tab                   `json:"activeTab"`
	QuizResponses     map[Key]*quiz.Attempt `json:"quizResponses"`
	UnitQuizResponses map[Key]*quiz.Attempt `json:"unitQuizResponses"`
}

// DefaultState returns the state of a learner who has never started.
func DefaultState() State {
	return State{
		ExpandedSections:  map[Key]bool{},
		CompletedUnits:    []int{},
		StudyMode:         ModeWelcome,
		ActiveTab:         TabLearn,
		QuizResponses:     map[Key]*quiz.Attempt{},
		UnitQuizResponses: map[Key]*quiz.Attempt{},
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	c.ExpandedSections = maps.Clone(s.ExpandedSections)
	c.CompletedUnits = slices.Clone(s.CompletedUnits)
	c.QuizResponses = cloneAttempts(s.QuizResponses)
	c.UnitQuizResponses = cloneAttempts(s.UnitQuizResponses)
	return c
}

func cloneAttempts(m map[Key]*quiz.Attempt) map[Key]*quiz.Attempt {
	out := make(map[Key]*quiz.Attempt, len(m))
	for k, a := range m {
		out[k] = a.Clone()
	}
	return out
}

// decodeState parses a persisted snapshot. Absent fields take their default
// values and out-of-range values are normalised.
func decodeState(data []byte) (State, error) {
	s := DefaultState()
	if err := json.Unmarshal(data, &s); err != nil {
		return DefaultState(), fmt.Errorf("decode progress: %w", err)
	}
	s.normalize()
	return s, nil
}

func (s *State) normalize() {
	if s.CurrentUnitIndex < 0 {
		s.CurrentUnitIndex = 0
	}
	if s.ExpandedSections == nil {
		s.ExpandedSections = map[Key]bool{}
	}
	if s.QuizResponses == nil {
		s.QuizResponses = map[Key]*quiz.Attempt{}
	}
	if s.UnitQuizResponses == nil {
		s.UnitQuizResponses = map[Key]*quiz.Attempt{}
	}
	maps.DeleteFunc(s.QuizResponses, func(_ Key, a *quiz.Attempt) bool { return a == nil })
	maps.DeleteFunc(s.UnitQuizResponses, func(_ Key, a *quiz.Attempt) bool { return a == nil })

	seen := make(map[int]bool, len(s.CompletedUnits))
	units := make([]int, 0, len(s.CompletedUnits))
	for _, u := range s.CompletedUnits {
		if !seen[u] {
			seen[u] = true
			units = append(units, u)
		}
	}
	s.CompletedUnits = units

	if s.StudyMode != ModeLearning {
		s.StudyMode = ModeWelcome
	}
	if s.ActiveTab != TabChat {
		s.ActiveTab = TabLearn
	}
}
