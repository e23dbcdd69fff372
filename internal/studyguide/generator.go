// Package studyguide turns uploaded course files into a study document by
// asking an LLM for structured output, then publishes the result to the
// shared location the study client reads from.
package studyguide

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/studylm/internal/content"
	"github.com/abhisek/studylm/internal/llm"
)

// ErrNoFiles is returned when Generate is called without files.
var ErrNoFiles = errors.New("no files uploaded")

// excerptLimit bounds the raw output carried by a ParseError.
const excerptLimit = 500

// ParseError reports model output that is not a usable study document.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("generated content could not be parsed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Excerpt returns the first 500 characters of the raw output, with "..."
// appended when it was cut.
func (e *ParseError) Excerpt() string {
	if utf8.RuneCountInString(e.Raw) <= excerptLimit {
		return e.Raw
	}
	return string([]rune(e.Raw)[:excerptLimit]) + "..."
}

// Result is one generated study guide.
type Result struct {
	ID       string
	Document content.Document

	// JSON is the cleaned model output, as returned to uploaders.
	JSON json.RawMessage

	// Issues lists questions whose correct answer matches no choice.
	Issues []content.Issue
}

// Option configures a Generator.
type Option func(*Generator)

// WithPublishPath makes Generate write every successful document to path.
func WithPublishPath(path string) Option {
	return func(g *Generator) { g.publishPath = path }
}

// WithLogger sets the generator's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(g *Generator) { g.log = log }
}

// WithTimeout bounds each generation. Zero means no bound beyond ctx.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) { g.timeout = d }
}

// Generator produces study guides from course files.
type Generator struct {
	provider    llm.Provider
	publishPath string
	timeout     time.Duration
	log         logrus.FieldLogger
}

// NewGenerator creates a generator backed by provider.
func NewGenerator(provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		provider: provider,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PublishPath returns where documents are written, or "" when they are not.
func (g *Generator) PublishPath() string {
	return g.publishPath
}

// Generate sends files to the model and returns the parsed document. Model
// output that is not a JSON study document yields a *ParseError.
func (g *Generator) Generate(ctx context.Context, files []llm.Attachment) (*Result, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	id := uuid.NewString()
	log := g.log.WithFields(logrus.Fields{"generation": id, "files": len(files)})

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	ctx = llm.WithPurpose(ctx, llm.PurposeStudyGuide)

	req := llm.Request{
		System: systemInstruction,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: studyGuidePrompt, Attachments: files},
		},
		Schema:           Schema,
		Temperature:      0.4,
		PermissiveSafety: true,
	}

	log.Info("Generating study guide")
	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("study guide generation: %w", err)
	}

	raw := resp.Text()
	cleaned := StripFences(raw)

	if !json.Valid([]byte(cleaned)) {
		log.WithField("raw_length", len(raw)).Warn("Model output is not valid JSON")
		return nil, &ParseError{Raw: raw, Err: errors.New("invalid JSON")}
	}

	doc, err := content.Parse([]byte(cleaned))
	if err != nil {
		log.WithError(err).Warn("Model output is not a study document")
		return nil, &ParseError{Raw: raw, Err: err}
	}

	if err := llm.Validate(Schema, json.RawMessage(cleaned)); err != nil {
		log.WithError(err).Warn("Study guide deviates from schema")
	}

	res := &Result{
		ID:       id,
		Document: doc,
		JSON:     json.RawMessage(cleaned),
		Issues:   content.Check(doc),
	}
	for _, issue := range res.Issues {
		log.Warn(issue.String())
	}

	if g.publishPath != "" {
		if err := content.WriteFile(g.publishPath, doc); err != nil {
			return nil, fmt.Errorf("publish study guide: %w", err)
		}
		log.WithField("path", g.publishPath).Info("Published study guide")
	}

	log.WithFields(logrus.Fields{
		"units":     len(doc),
		"questions": doc.QuestionCount(),
	}).Info("Generated study guide")
	return res, nil
}

var (
	jsonFence = regexp.MustCompile("```json\\s?")
	anyFence  = regexp.MustCompile("```\\s?")
)

// StripFences removes Markdown code fences the model sometimes wraps JSON
// output in, then trims surrounding whitespace.
func StripFences(s string) string {
	s = jsonFence.ReplaceAllString(s, "")
	s = anyFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
