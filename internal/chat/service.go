package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/studylm/internal/content"
	"github.com/abhisek/studylm/internal/llm"
)

const instruction = "You are a study assistant helping a student understand their course materials. " +
	"Answer clearly and concisely. Use Markdown for lists and emphasis. " +
	"If a question is unrelated to the course, answer it briefly and steer back to the material."

// DocumentFunc returns the current study document, or nil when none exists.
type DocumentFunc func(ctx context.Context) content.Document

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDocument grounds replies in the study document returned by fn.
func WithDocument(fn DocumentFunc) ServiceOption {
	return func(s *Service) { s.document = fn }
}

// WithServiceLogger sets the service's logger.
func WithServiceLogger(log logrus.FieldLogger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// WithReplyTimeout bounds each reply. Zero means no bound beyond ctx.
func WithReplyTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.timeout = d }
}

// Service streams assistant replies from an LLM.
type Service struct {
	streamer llm.Streamer
	document DocumentFunc
	timeout  time.Duration
	log      logrus.FieldLogger
}

// NewService creates a chat service backed by streamer.
func NewService(streamer llm.Streamer, opts ...ServiceOption) *Service {
	s := &Service{
		streamer: streamer,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reply streams the assistant's answer to req through emit. Chunks are
// passed on in the order the provider produces them.
func (s *Service) Reply(ctx context.Context, req Request, emit func(string) error) error {
	if err := req.Validate(); err != nil {
		return err
	}

	log := s.log.WithFields(logrus.Fields{
		"chat":    uuid.NewString(),
		"history": len(req.History),
	})

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	ctx = llm.WithPurpose(ctx, llm.PurposeChat)

	start := time.Now()
	chunks := 0
	resp, err := s.streamer.Stream(ctx, s.buildRequest(ctx, req), func(chunk string) error {
		chunks++
		return emit(chunk)
	})
	if err != nil {
		log.WithError(err).WithField("chunks", chunks).Warn("Chat reply failed")
		return fmt.Errorf("chat reply: %w", err)
	}

	log.WithFields(logrus.Fields{
		"chunks":     chunks,
		"tokens":     resp.Usage.TotalTokens,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Info("Chat reply streamed")
	return nil
}

func (s *Service) buildRequest(ctx context.Context, req Request) llm.Request {
	system := instruction
	if s.document != nil {
		if outline := courseOutline(s.document(ctx)); outline != "" {
			system += "\n\nThe student is studying these units:\n" + outline
		}
	}

	msgs := make([]llm.Message, 0, len(req.History)+1)
	for _, t := range req.History {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		role := llm.RoleAssistant
		if t.Sender == SenderUser {
			role = llm.RoleUser
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Text})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: strings.TrimSpace(req.Message)})

	return llm.Request{
		System:      system,
		Messages:    msgs,
		Temperature: 0.7,
	}
}

// courseOutline lists unit titles with their overviews.
func courseOutline(doc content.Document) string {
	var b strings.Builder
	for i, u := range doc {
		fmt.Fprintf(&b, "%d. %s", i+1, u.Title)
		if u.Overview != "" {
			fmt.Fprintf(&b, ": %s", u.Overview)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
