package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotArray means the document's top-level value is not a JSON array.
	ErrNotArray = errors.New("study content must be a JSON array")

	// ErrEmpty means the document contains no units.
	ErrEmpty = errors.New("study content has no units")
)

// Parse decodes and structurally validates a study document. Only the first
// unit is inspected for required fields; the rest are decoded as-is.
func Parse(data []byte) (Document, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotArray
		}
		return nil, fmt.Errorf("decode study content: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmpty
	}

	first := raw[0]
	for _, field := range []string{"unit", "overview", "sections"} {
		if _, ok := first[field]; !ok {
			return nil, fmt.Errorf("first unit is missing %q", field)
		}
	}
	if !bytes.HasPrefix(bytes.TrimSpace(first["sections"]), []byte("[")) {
		return nil, fmt.Errorf("first unit's \"sections\" must be an array")
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode study content: %w", err)
	}
	return doc, nil
}

// Issue describes a question that can never be graded correct.
type Issue struct {
	Unit     int
	Section  int // -1 for the unit quiz
	Question int
	Text     string
}

func (i Issue) String() string {
	where := fmt.Sprintf("unit %d section %d", i.Unit+1, i.Section+1)
	if i.Section < 0 {
		where = fmt.Sprintf("unit %d quiz", i.Unit+1)
	}
	return fmt.Sprintf("%s question %d: correct answer matches no choice (%q)", where, i.Question+1, i.Text)
}

// Check lints a parsed document and returns every question whose correct
// answer is not one of its choices. Such questions still load.
func Check(doc Document) []Issue {
	var issues []Issue
	for u, unit := range doc {
		for s, sec := range unit.Sections {
			for q, question := range sec.Quizzes {
				if !question.HasCorrectChoice() {
					issues = append(issues, Issue{Unit: u, Section: s, Question: q, Text: question.Question})
				}
			}
		}
		for q, question := range unit.UnitQuiz {
			if !question.HasCorrectChoice() {
				issues = append(issues, Issue{Unit: u, Section: -1, Question: q, Text: question.Question})
			}
		}
	}
	return issues
}
