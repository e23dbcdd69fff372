package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil database handle")
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so we skip journal_mode here. It is tested with file-based DBs.
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestFileDatabaseUsesWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studylm.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studylm.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.KVRepo().Put(ctx, "studyProgress", []byte(`{"currentUnitIndex":2}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	s.Close()

	// Second open re-runs the migration against existing tables.
	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.KVRepo().Get(ctx, "studyProgress")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"currentUnitIndex":2}` {
		t.Errorf("value = %s, want the stored snapshot", got)
	}
}

func TestKVGetMissing(t *testing.T) {
	s := openTestStore(t)

	got, err := s.KVRepo().Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing key, got %q", got)
	}
}

func TestKVPutOverwrites(t *testing.T) {
	s := openTestStore(t)
	repo := s.KVRepo()
	ctx := context.Background()

	if err := repo.Put(ctx, "chatMessages", []byte(`[1]`)); err != nil {
		t.Fatalf("put 1: %v", err)
	}
	if err := repo.Put(ctx, "chatMessages", []byte(`[1,2]`)); err != nil {
		t.Fatalf("put 2: %v", err)
	}

	got, err := repo.Get(ctx, "chatMessages")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `[1,2]` {
		t.Errorf("value = %s, want [1,2]", got)
	}

	var rows int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM kv_entries").Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Errorf("rows = %d, want 1", rows)
	}
}

func TestKVDelete(t *testing.T) {
	s := openTestStore(t)
	repo := s.KVRepo()
	ctx := context.Background()

	if err := repo.Put(ctx, "studyConcepts", []byte(`[]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.Delete(ctx, "studyConcepts"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "studyConcepts"); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	got, err := repo.Get(ctx, "studyConcepts")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %q", got)
	}
}

func TestSequenceIsShared(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	if err := repo.AppendLLMRequest(ctx, LLMRequestEventData{Provider: "gemini", Model: "m", Purpose: "chat", Success: true}); err != nil {
		t.Fatalf("append llm: %v", err)
	}
	if err := repo.AppendQuizEvent(ctx, QuizEventData{UnitIndex: 0, SectionIndex: 1, Correct: 2, Total: 3}); err != nil {
		t.Fatalf("append quiz: %v", err)
	}

	llmEvents, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query llm: %v", err)
	}
	quizEvents, err := repo.QueryQuizEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query quiz: %v", err)
	}
	if len(llmEvents) != 1 || len(quizEvents) != 1 {
		t.Fatalf("got %d llm and %d quiz events, want 1 each", len(llmEvents), len(quizEvents))
	}
	if quizEvents[0].Sequence <= llmEvents[0].Sequence {
		t.Errorf("quiz sequence %d should follow llm sequence %d",
			quizEvents[0].Sequence, llmEvents[0].Sequence)
	}
}

func TestLLMEventsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	data := LLMRequestEventData{
		Provider:     "gemini",
		Model:        "gemini-2.0-flash",
		Purpose:      "study-guide",
		InputTokens:  1200,
		OutputTokens: 800,
		LatencyMs:    950,
		Success:      false,
		ErrorMessage: "rate limited",
		RequestBody:  "[user]\nhello",
		ResponseBody: "",
	}
	if err := repo.AppendLLMRequest(ctx, data); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	got := events[0]
	if got.LLMRequestEventData != data {
		t.Errorf("data = %+v, want %+v", got.LLMRequestEventData, data)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}

	byID, err := repo.GetLLMEvent(ctx, got.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if byID == nil || byID.Sequence != got.Sequence {
		t.Errorf("GetLLMEvent(%d) = %+v, want sequence %d", got.ID, byID, got.Sequence)
	}

	missing, err := repo.GetLLMEvent(ctx, got.ID+100)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown ID, got %+v", missing)
	}
}

func TestQueryLLMEventsOrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := repo.AppendLLMRequest(ctx, LLMRequestEventData{
			Provider: "mock", Model: "mock", Purpose: fmt.Sprintf("p%d", i), Success: true,
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	events, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Purpose != "p4" || events[1].Purpose != "p3" {
		t.Errorf("order = [%s %s], want [p4 p3]", events[0].Purpose, events[1].Purpose)
	}

	after, err := repo.QueryLLMEvents(ctx, QueryOpts{After: events[0].Sequence - 1})
	if err != nil {
		t.Fatalf("query after: %v", err)
	}
	if len(after) != 1 {
		t.Errorf("events after = %d, want 1", len(after))
	}

	recent, err := repo.QueryLLMEvents(ctx, QueryOpts{From: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("query from: %v", err)
	}
	if len(recent) != 5 {
		t.Errorf("events from = %d, want 5", len(recent))
	}
}

func TestLLMUsageAggregates(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "gemini", Model: "gemini-2.0-flash", Purpose: "chat", InputTokens: 10, OutputTokens: 20, LatencyMs: 100, Success: true},
		{Provider: "gemini", Model: "gemini-2.0-flash", Purpose: "chat", InputTokens: 30, OutputTokens: 40, LatencyMs: 300, Success: true},
		{Provider: "openai", Model: "gpt-4o-mini", Purpose: "study-guide", InputTokens: 5, OutputTokens: 6, LatencyMs: 50, Success: true},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("by purpose: %v", err)
	}
	if len(byPurpose) != 2 {
		t.Fatalf("purposes = %d, want 2", len(byPurpose))
	}
	chat := byPurpose[0]
	if chat.Purpose != "chat" || chat.Calls != 2 || chat.InputTokens != 40 || chat.OutputTokens != 60 || chat.AvgLatencyMs != 200 {
		t.Errorf("chat usage = %+v", chat)
	}

	byModel, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatalf("by model: %v", err)
	}
	if len(byModel) != 2 {
		t.Fatalf("models = %d, want 2", len(byModel))
	}
	if byModel[1].Model != "gpt-4o-mini" || byModel[1].Calls != 1 {
		t.Errorf("model usage = %+v", byModel[1])
	}
}

func TestQuizEventsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	data := QuizEventData{UnitIndex: 2, SectionIndex: -1, UnitQuiz: true, Correct: 7, Total: 10}
	if err := repo.AppendQuizEvent(ctx, data); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := repo.QueryQuizEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].QuizEventData != data {
		t.Errorf("data = %+v, want %+v", events[0].QuizEventData, data)
	}
}
