package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func questionSchema() *Schema {
	return &Schema{
		Name:        "quiz-question",
		Description: "A multiple-choice question",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{"type": "string"},
				"choices": map[string]any{
					"type":     "array",
					"items":    map[string]any{"type": "string"},
					"minItems": 2,
				},
				"correct_answer": map[string]any{"type": "string"},
			},
			"required": []any{"question", "choices", "correct_answer"},
		},
	}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"question":"2+2?","choices":["3","4"],"correct_answer":"4"}`, false},
		{"missing required", `{"question":"2+2?","choices":["3","4"]}`, true},
		{"wrong item type", `{"question":"q","choices":[1,2],"correct_answer":"1"}`, true},
		{"too few choices", `{"question":"q","choices":["only"],"correct_answer":"only"}`, true},
		{"not json", `Sure! Here is your question:`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(questionSchema(), json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var inv *ErrInvalidResponse
			if !errors.As(err, &inv) {
				t.Fatalf("expected *ErrInvalidResponse, got %T", err)
			}
			if string(inv.Content) != tt.raw {
				t.Errorf("Content = %q, want raw output preserved", inv.Content)
			}
		})
	}
}

func TestValidateResponse_NilSchema(t *testing.T) {
	if err := validateResponse(nil, json.RawMessage(`plain text`)); err != nil {
		t.Fatalf("expected no error with nil schema, got: %v", err)
	}
}

func TestValidateResponse_SkipValidation(t *testing.T) {
	s := questionSchema()
	s.SkipValidation = true
	if err := validateResponse(s, json.RawMessage("```json\n[]\n```")); err != nil {
		t.Fatalf("expected skipped validation, got: %v", err)
	}
	if err := Validate(s, json.RawMessage(`{}`)); err == nil {
		t.Fatal("Validate ignores SkipValidation and should fail on {}")
	}
}

func TestValidate_ArrayRoot(t *testing.T) {
	schema := &Schema{
		Name: "unit-list",
		Definition: map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"unit":     map[string]any{"type": "string"},
					"sections": map[string]any{"type": "array"},
				},
				"required": []any{"unit", "sections"},
			},
		},
	}

	if err := Validate(schema, json.RawMessage(`[{"unit":"Cells","sections":[]}]`)); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if err := Validate(schema, json.RawMessage(`{"unit":"Cells","sections":[]}`)); err == nil {
		t.Fatal("expected error for object root")
	}
}
