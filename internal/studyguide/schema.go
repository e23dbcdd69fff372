package studyguide

import "github.com/abhisek/studylm/internal/llm"

var questionDefinition = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"question": map[string]any{"type": "string"},
		"choices": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"correct_answer": map[string]any{"type": "string"},
	},
	"required": []any{"question", "choices", "correct_answer"},
}

var sectionDefinition = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"section_title": map[string]any{"type": "string"},
		"narrative":     map[string]any{"type": "string"},
		"key_points": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"quizzes": map[string]any{
			"type":  "array",
			"items": questionDefinition,
		},
	},
	"required": []any{"section_title", "narrative", "key_points", "quizzes"},
}

// Schema is the response schema for study guide generation: an array of
// units, each with sections and a unit quiz. Validation is done by the
// generator so the raw output can be reported when it fails.
var Schema = &llm.Schema{
	Name:        "study-guide",
	Description: "Units of course concepts with narratives, key points and quizzes",
	Definition: map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"unit":     map[string]any{"type": "string"},
				"overview": map[string]any{"type": "string"},
				"sections": map[string]any{
					"type":  "array",
					"items": sectionDefinition,
				},
				"unit_quiz": map[string]any{
					"type":  "array",
					"items": questionDefinition,
				},
			},
			"required": []any{"unit", "overview", "sections", "unit_quiz"},
		},
	},
	SkipValidation: true,
}
