package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func newTestOpenAIProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"
	client := openai.NewClientWithConfig(config)

	return &OpenAIProvider{
		client: client,
		model:  "gpt-4o",
	}
}

func TestOpenAIProvider_HappyPath(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1234567890,
			"model":   "gpt-4o",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]any{
						"role":    "assistant",
						"content": `[{"unit":"Cells","overview":"Basics","sections":[]}]`,
					},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     40,
				"completion_tokens": 25,
				"total_tokens":      65,
			},
		})
	}

	p := newTestOpenAIProvider(t, handler)
	resp, err := p.Generate(context.Background(), Request{
		System:    "You extract concepts from course materials.",
		Messages:  []Message{{Role: RoleUser, Content: "Build a study guide."}},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Usage.InputTokens != 40 || resp.Usage.OutputTokens != 25 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
	if resp.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp.StopReason)
	}
	if !strings.HasPrefix(resp.Text(), `[{"unit":"Cells"`) {
		t.Fatalf("unexpected content: %s", resp.Content)
	}
}

func TestOpenAIProvider_Stream(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["stream"] != true {
			t.Errorf("stream flag not set: %v", req["stream"])
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, piece := range []string{"Photo", "synthesis"} {
			fmt.Fprintf(w, "data: %s\n\n", mustJSON(map[string]any{
				"id": "c1", "object": "chat.completion.chunk", "model": "gpt-4o",
				"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": piece}}},
			}))
		}
		fmt.Fprintf(w, "data: %s\n\n", mustJSON(map[string]any{
			"id": "c1", "object": "chat.completion.chunk", "model": "gpt-4o",
			"choices": []map[string]any{{"index": 0, "delta": map[string]any{}, "finish_reason": "stop"}},
		}))
		fmt.Fprintf(w, "data: %s\n\n", mustJSON(map[string]any{
			"id": "c1", "object": "chat.completion.chunk", "model": "gpt-4o",
			"choices": []map[string]any{},
			"usage":   map[string]any{"prompt_tokens": 9, "completion_tokens": 2, "total_tokens": 11},
		}))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}

	p := newTestOpenAIProvider(t, handler)
	var chunks []string
	resp, err := p.Stream(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "How do plants eat?"}},
	}, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(chunks, "|") != "Photo|synthesis" {
		t.Fatalf("chunks = %q", chunks)
	}
	if resp.Text() != "Photosynthesis" || resp.Usage.TotalTokens != 11 {
		t.Fatalf("resp = %q %+v", resp.Text(), resp.Usage)
	}
}

func TestOpenAIProvider_StreamEmitErrorStops(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, piece := range []string{"a", "b", "c"} {
			fmt.Fprintf(w, "data: %s\n\n", mustJSON(map[string]any{
				"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": piece}}},
			}))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}

	p := newTestOpenAIProvider(t, handler)
	stop := errors.New("client went away")
	calls := 0
	_, err := p.Stream(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}},
		func(string) error {
			calls++
			return stop
		})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err = %v after %d calls, want %v after 1", err, calls, stop)
	}
}

func TestOpenAIProvider_RateLimit(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"type":    "tokens",
				"message": "Rate limit exceeded",
				"code":    "rate_limit_exceeded",
			},
		})
	}

	p := newTestOpenAIProvider(t, handler)
	_, err := p.Generate(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "test"}},
		MaxTokens: 100,
	})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T (%v)", err, err)
	}
}

func TestOpenAIProvider_ServerError(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"type":    "server_error",
				"message": "Internal server error",
			},
		})
	}

	p := newTestOpenAIProvider(t, handler)
	_, err := p.Generate(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "test"}},
		MaxTokens: 100,
	})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T (%v)", err, err)
	}
}

func TestBuildOpenAIMessages_Attachments(t *testing.T) {
	msgs, err := buildOpenAIMessages(Request{
		System: "sys",
		Messages: []Message{{
			Role:    RoleUser,
			Content: "Summarise.",
			Attachments: []Attachment{
				{Name: "notes.md", MIMEType: "text/markdown", Data: []byte("# Cells")},
				{Name: "diagram.png", MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
			},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	parts := msgs[1].MultiContent
	if len(parts) != 3 || msgs[1].Content != "" {
		t.Fatalf("expected 3 parts and no plain content, got %+v", msgs[1])
	}
	if !strings.Contains(parts[0].Text, "# Cells") {
		t.Errorf("text attachment not inlined: %q", parts[0].Text)
	}
	if parts[1].ImageURL == nil || !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("image attachment not a data URL: %+v", parts[1])
	}
	if parts[2].Text != "Summarise." {
		t.Errorf("prompt part = %q", parts[2].Text)
	}

	_, err = buildOpenAIMessages(Request{Messages: []Message{{
		Role:        RoleUser,
		Attachments: []Attachment{{Name: "slides.pdf", MIMEType: "application/pdf"}},
	}}})
	var unsupported *ErrUnsupportedAttachment
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected ErrUnsupportedAttachment, got %v", err)
	}
}

func TestOpenAIProvider_BaseURLOverride(t *testing.T) {
	p, err := NewOpenAIProvider(OpenAIConfig{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: "https://openrouter.ai/api/v1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "gpt-4o-mini" {
		t.Fatalf("expected 'gpt-4o-mini', got %q", p.ModelID())
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
