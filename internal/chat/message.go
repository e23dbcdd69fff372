// Package chat implements the study assistant conversation: the proxy-side
// service that streams model replies, the client that consumes that stream,
// and the persisted transcript the study client renders.
package chat

import (
	"errors"
	"strings"
)

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ErrEmptyMessage is returned when a message is blank.
var ErrEmptyMessage = errors.New("message is required")

// Turn is one prior message sent as conversation history.
type Turn struct {
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

// Request is the body of a chat request.
type Request struct {
	Message string `json:"message"`
	History []Turn `json:"chat_history"`
}

// Validate reports ErrEmptyMessage when the message is blank.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	return nil
}
