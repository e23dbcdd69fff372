package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TranscriptKey is the key under which the transcript is persisted.
const TranscriptKey = "chatMessages"

// ErrorText replaces a reply that could not be obtained.
const ErrorText = "Sorry, I encountered an error. Please try again."

const loadingText = "..."

// Message is one entry in the transcript.
type Message struct {
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Loading   bool      `json:"isLoading,omitempty"`
	Error     bool      `json:"isError,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// KV is the persistence the transcript is saved to.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// TranscriptOption configures a Transcript.
type TranscriptOption func(*Transcript)

// WithTranscriptLogger sets the logger for recoverable persistence problems.
func WithTranscriptLogger(log logrus.FieldLogger) TranscriptOption {
	return func(t *Transcript) { t.log = log }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) TranscriptOption {
	return func(t *Transcript) { t.now = now }
}

// Transcript is the client's conversation history. One exchange is in
// flight at a time: Begin adds the question and a loading placeholder,
// StartReply swaps the placeholder for an empty reply that Append grows,
// and Finish or Fail ends the exchange.
type Transcript struct {
	kv       KV
	messages []Message
	now      func() time.Time
	log      logrus.FieldLogger
}

// LoadTranscript reads the persisted transcript. A missing or corrupt
// transcript starts empty. Loading placeholders left by an interrupted
// exchange are dropped.
func LoadTranscript(ctx context.Context, kv KV, opts ...TranscriptOption) *Transcript {
	t := &Transcript{
		kv:  kv,
		now: time.Now,
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}

	data, err := kv.Get(ctx, TranscriptKey)
	if err != nil {
		t.log.WithError(err).Warn("Failed to read chat transcript")
		return t
	}
	if data == nil {
		return t
	}
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		t.log.WithError(err).Warn("Discarding corrupt chat transcript")
		return t
	}
	t.messages = slices.DeleteFunc(msgs, func(m Message) bool { return m.Loading })
	return t
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	return slices.Clone(t.messages)
}

// Len returns the number of messages.
func (t *Transcript) Len() int { return len(t.messages) }

// Pending reports whether an exchange is in flight.
func (t *Transcript) Pending() bool {
	return slices.ContainsFunc(t.messages, func(m Message) bool { return m.Loading })
}

// History returns prior messages in request form, excluding placeholders.
func (t *Transcript) History() []Turn {
	turns := make([]Turn, 0, len(t.messages))
	for _, m := range t.messages {
		if m.Loading {
			continue
		}
		turns = append(turns, Turn{Text: m.Text, Sender: m.Sender})
	}
	return turns
}

// Begin records the user's message and a loading placeholder, and returns
// the request to send. The history in the request excludes the new message.
func (t *Transcript) Begin(ctx context.Context, text string) (Request, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Request{}, ErrEmptyMessage
	}
	if t.Pending() {
		return Request{}, fmt.Errorf("a reply is already in progress")
	}

	req := Request{Message: text, History: t.History()}
	t.messages = append(t.messages,
		Message{Text: text, Sender: SenderUser, Timestamp: t.now()},
		Message{Text: loadingText, Sender: SenderAssistant, Loading: true, Timestamp: t.now()},
	)
	return req, t.save(ctx)
}

// StartReply replaces the loading placeholder with an empty assistant
// message that subsequent chunks are appended to.
func (t *Transcript) StartReply() {
	t.dropLoading()
	t.messages = append(t.messages, Message{Sender: SenderAssistant, Timestamp: t.now()})
}

// Append adds a streamed chunk to the last message.
func (t *Transcript) Append(chunk string) {
	if len(t.messages) == 0 {
		return
	}
	t.messages[len(t.messages)-1].Text += chunk
}

// Finish ends the exchange and persists what was received. A cancelled
// stream also ends here so that partial text is kept.
func (t *Transcript) Finish(ctx context.Context) error {
	t.dropLoading()
	return t.save(ctx)
}

// Fail removes the loading placeholder, appends the error message and
// persists the result. Text already streamed stays in place.
func (t *Transcript) Fail(ctx context.Context) error {
	t.dropLoading()
	t.messages = append(t.messages, Message{
		Text:      ErrorText,
		Sender:    SenderAssistant,
		Error:     true,
		Timestamp: t.now(),
	})
	return t.save(ctx)
}

// Reset clears the transcript and its persisted copy.
func (t *Transcript) Reset(ctx context.Context) error {
	t.messages = nil
	if err := t.kv.Delete(ctx, TranscriptKey); err != nil {
		return fmt.Errorf("reset chat: %w", err)
	}
	return nil
}

func (t *Transcript) dropLoading() {
	t.messages = slices.DeleteFunc(t.messages, func(m Message) bool { return m.Loading })
}

func (t *Transcript) save(ctx context.Context) error {
	if len(t.messages) == 0 {
		return nil
	}
	data, err := json.Marshal(t.messages)
	if err != nil {
		return fmt.Errorf("encode chat: %w", err)
	}
	if err := t.kv.Put(ctx, TranscriptKey, data); err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	return nil
}
