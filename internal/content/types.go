// Package content defines the study document produced by the generator
// and loads it for the study client.
package content

// Document is an ordered, non-empty list of study units. It is replaced
// wholesale whenever a new set of course files is uploaded.
type Document []Unit

// Unit is one chapter of the study guide.
type Unit struct {
	Title    string     `json:"unit"`
	Overview string     `json:"overview"`
	Sections []Section  `json:"sections"`
	UnitQuiz []Question `json:"unit_quiz,omitempty"`
}

// Section is a titled narrative with key points and an optional quiz.
type Section struct {
	Title     string     `json:"section_title"`
	Narrative string     `json:"narrative"`
	KeyPoints []string   `json:"key_points"`
	Quizzes   []Question `json:"quizzes"`
}

// Question is a multiple-choice question. CorrectAnswer is compared to the
// selected choice by exact string equality.
type Question struct {
	Question      string   `json:"question"`
	Choices       []string `json:"choices"`
	CorrectAnswer string   `json:"correct_answer"`
}

// HasCorrectChoice reports whether CorrectAnswer matches one of Choices.
func (q Question) HasCorrectChoice() bool {
	for _, c := range q.Choices {
		if c == q.CorrectAnswer {
			return true
		}
	}
	return false
}

// QuestionCount returns the total number of questions across all section
// quizzes and unit quizzes.
func (d Document) QuestionCount() int {
	n := 0
	for _, u := range d {
		n += len(u.UnitQuiz)
		for _, s := range u.Sections {
			n += len(s.Quizzes)
		}
	}
	return n
}
