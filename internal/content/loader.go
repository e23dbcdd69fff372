package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CacheKey is the key under which the last good document is cached.
const CacheKey = "studyConcepts"

// maxDocumentBytes bounds how much of a remote document is read.
const maxDocumentBytes = 32 << 20

// errUnavailable marks a shared location that could not be reached or has
// no document yet.
var errUnavailable = errors.New("study content unavailable")

// Cache persists the last document seen at the shared location.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Loader fetches the study document from the shared location, falling back
// to the cached copy when the location is unreachable.
type Loader struct {
	source string
	cache  Cache
	client *http.Client
	log    logrus.FieldLogger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) { l.client = c }
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(log logrus.FieldLogger) LoaderOption {
	return func(l *Loader) { l.log = log }
}

// NewLoader creates a Loader. source is a file path or an http(s) URL and
// may be empty, in which case only the cache is consulted.
func NewLoader(source string, cache Cache, opts ...LoaderOption) *Loader {
	l := &Loader{
		source: source,
		cache:  cache,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Source returns the configured shared location.
func (l *Loader) Source() string {
	return l.source
}

// Load returns the validated study document, or nil when none is available.
// It never returns an error: every failure is logged and reported as nil.
//
// A valid document from the shared location refreshes the cache. An invalid
// one clears it. An unreachable location falls back to the cache.
func (l *Loader) Load(ctx context.Context) Document {
	log := l.log.WithField("source", l.source)

	data, err := l.fetch(ctx)
	switch {
	case err == nil:
		doc, perr := Parse(data)
		if perr != nil {
			log.WithError(perr).Warn("Invalid study content at shared location")
			l.clearCache(ctx)
			return nil
		}
		l.report(log, doc)
		if l.cache != nil {
			if err := l.cache.Put(ctx, CacheKey, data); err != nil {
				log.WithError(err).Warn("Failed to cache study content")
			}
		}
		return doc
	case errors.Is(err, context.Canceled):
		return nil
	default:
		log.WithError(err).Debug("Shared location unavailable, using cached study content")
	}

	return l.loadCached(ctx)
}

func (l *Loader) loadCached(ctx context.Context) Document {
	if l.cache == nil {
		return nil
	}
	data, err := l.cache.Get(ctx, CacheKey)
	if err != nil {
		l.log.WithError(err).Warn("Failed to read cached study content")
		return nil
	}
	if data == nil {
		return nil
	}
	doc, err := Parse(data)
	if err != nil {
		l.log.WithError(err).Warn("Discarding invalid cached study content")
		l.clearCache(ctx)
		return nil
	}
	l.report(l.log, doc)
	return doc
}

func (l *Loader) clearCache(ctx context.Context) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(ctx, CacheKey); err != nil {
		l.log.WithError(err).Warn("Failed to clear cached study content")
	}
}

// report logs every question that can never be graded correct.
func (l *Loader) report(log logrus.FieldLogger, doc Document) {
	for _, issue := range Check(doc) {
		log.WithField("issue", issue.String()).Warn("Study content question has no matching choice")
	}
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	if l.source == "" {
		return nil, errUnavailable
	}
	if isURL(l.source) {
		return l.fetchURL(ctx)
	}

	data, err := os.ReadFile(l.source)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", errUnavailable, l.source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnavailable, err)
	}
	return data, nil
}

func (l *Loader) fetchURL(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", errUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", errUnavailable, l.source, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", errUnavailable, err)
	}
	return data, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
