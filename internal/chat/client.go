package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

// StatusError reports a non-2xx reply from the chat endpoint.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat: server returned %d", e.Code)
}

// Client posts chat requests to the proxy and consumes the streamed reply.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the proxy at baseURL. A nil httpClient
// uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Send posts req and calls onStart once the server accepts it, then onChunk
// with each decoded increment in arrival order. Cancelling ctx stops the
// read; the returned error then wraps ctx.Err().
func (c *Client) Send(ctx context.Context, req Request, onStart func(), onChunk func(string)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	if onStart != nil {
		onStart()
	}
	if err := ReadStream(resp.Body, onChunk); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("read chat reply: %w", ctxErr)
		}
		return fmt.Errorf("read chat reply: %w", err)
	}
	return nil
}

// ReadStream reads r until EOF and passes each increment of text to
// onChunk. A multi-byte character split across reads is held back until it
// is complete.
func ReadStream(r io.Reader, onChunk func(string)) error {
	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			cut := completePrefix(pending)
			if cut > 0 {
				onChunk(string(pending[:cut]))
				pending = append(pending[:0], pending[cut:]...)
			}
		}
		if errors.Is(err, io.EOF) {
			if len(pending) > 0 {
				onChunk(string(pending))
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// completePrefix returns the length of the longest prefix of p that does not
// end inside a multi-byte UTF-8 sequence.
func completePrefix(p []byte) int {
	// A UTF-8 sequence is at most 4 bytes, so only the tail needs checking.
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if utf8.FullRune(p[i:]) {
			return len(p)
		}
		return i
	}
	return len(p)
}
