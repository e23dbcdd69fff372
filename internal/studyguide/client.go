package studyguide

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/abhisek/studylm/internal/content"
	"github.com/abhisek/studylm/internal/llm"
)

// UploadError reports a rejected upload. RawOutput carries the model output
// excerpt when the proxy could not parse it.
type UploadError struct {
	Status    int
	Message   string
	RawOutput string
}

func (e *UploadError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upload failed with status %d", e.Status)
	}
	return fmt.Sprintf("upload failed (%d): %s", e.Status, e.Message)
}

// Client uploads course files to the proxy.
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

// UploadFiles reads the files at paths and uploads them.
func (c *Client) UploadFiles(ctx context.Context, paths []string) (content.Document, error) {
	files := make([]llm.Attachment, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, llm.NewAttachment(filepath.Base(p), data))
	}
	return c.Upload(ctx, files)
}

// Upload posts files as multipart field "files" and returns the generated
// document.
func (c *Client) Upload(ctx context.Context, files []llm.Attachment) (content.Document, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		h.Set("Content-Type", f.MIMEType)
		w, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("build upload: %w", err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("build upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error     string `json:"error"`
			RawOutput string `json:"rawOutput"`
		}
		_ = json.Unmarshal(data, &failure)
		return nil, &UploadError{Status: resp.StatusCode, Message: failure.Error, RawOutput: failure.RawOutput}
	}

	var ok struct {
		StudyConcepts json.RawMessage `json:"studyConcepts"`
	}
	if err := json.Unmarshal(data, &ok); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	doc, err := content.Parse(ok.StudyConcepts)
	if err != nil {
		return nil, fmt.Errorf("uploaded study guide: %w", err)
	}
	return doc, nil
}
