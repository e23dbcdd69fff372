// Package session bundles the services one run of the study client works
// with: the loaded study document, the learner's progress, the chat
// transcript and the proxy clients.
package session

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/studylm/internal/chat"
	"github.com/abhisek/studylm/internal/content"
	"github.com/abhisek/studylm/internal/progress"
	"github.com/abhisek/studylm/internal/quiz"
	"github.com/abhisek/studylm/internal/store"
	"github.com/abhisek/studylm/internal/studyguide"
)

// Options holds the services a Session is built from. Progress is required.
// A nil Chat or Uploader disables the matching screens.
type Options struct {
	Progress   *progress.Store
	Transcript *chat.Transcript
	Chat       *chat.Client
	Uploader   *studyguide.Client
	Loader     *content.Loader
	Cache      content.Cache
	Events     store.EventRepo
	Log        logrus.FieldLogger

	// Document, when set, is used instead of loading through Loader.
	Document content.Document
}

// Session is shared by every screen of the study client. It is not safe for
// concurrent use; screens touch it only from the Bubble Tea update loop.
type Session struct {
	Progress   *progress.Store
	Transcript *chat.Transcript
	Chat       *chat.Client
	Uploader   *studyguide.Client
	Events     store.EventRepo

	loader *content.Loader
	cache  content.Cache
	log    logrus.FieldLogger
	doc    content.Document
}

// New creates a session, loading the study document when none is given and
// resetting progress that points into a document that is not there.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Progress == nil {
		return nil, fmt.Errorf("session: progress store is required")
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Session{
		Progress:   opts.Progress,
		Transcript: opts.Transcript,
		Chat:       opts.Chat,
		Uploader:   opts.Uploader,
		Events:     opts.Events,
		loader:     opts.Loader,
		cache:      opts.Cache,
		log:        log,
		doc:        opts.Document,
	}
	if s.doc == nil && s.loader != nil {
		s.doc = s.loader.Load(ctx)
	}
	if err := s.Progress.EnsureContent(ctx, s.doc); err != nil {
		return nil, err
	}
	return s, nil
}

// Document returns the loaded study document, nil when none is available.
func (s *Session) Document() content.Document { return s.doc }

// HasContent reports whether a study document is loaded.
func (s *Session) HasContent() bool { return len(s.doc) > 0 }

// Reload fetches the document again through the loader.
func (s *Session) Reload(ctx context.Context) content.Document {
	if s.loader == nil {
		return s.doc
	}
	s.doc = s.loader.Load(ctx)
	return s.doc
}

// ReplaceDocument installs a freshly generated document. Earlier progress
// addresses units of the old document, so it is discarded.
func (s *Session) ReplaceDocument(ctx context.Context, doc content.Document) error {
	if len(doc) == 0 {
		return fmt.Errorf("replace document: %w", content.ErrEmpty)
	}
	if s.cache != nil {
		data, err := content.Encode(doc)
		if err != nil {
			return fmt.Errorf("replace document: %w", err)
		}
		if err := s.cache.Put(ctx, content.CacheKey, data); err != nil {
			s.log.WithError(err).Warn("Failed to cache uploaded study content")
		}
	}
	s.doc = doc
	if err := s.Progress.ResetProgress(ctx); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	s.log.WithField("units", len(doc)).Info("Study content replaced")
	return nil
}

// UnitStatus summarises unit completion for the header, e.g. "2/5 units".
func (s *Session) UnitStatus() string {
	if !s.HasContent() {
		return ""
	}
	return fmt.Sprintf("%d/%d units", s.Progress.CompletedCount(), len(s.doc))
}

// Questions returns the questions of section sec in unit u, or of the unit
// quiz when unitQuiz is set.
func (s *Session) Questions(u, sec int, unitQuiz bool) []content.Question {
	if u < 0 || u >= len(s.doc) {
		return nil
	}
	unit := s.doc[u]
	if unitQuiz {
		return unit.UnitQuiz
	}
	if sec < 0 || sec >= len(unit.Sections) {
		return nil
	}
	return unit.Sections[sec].Quizzes
}

// QuizEngine builds the engine for a quiz, wired to persist through the
// progress store and restored from the saved attempt when one fits. It
// returns nil when the quiz has no questions.
func (s *Session) QuizEngine(ctx context.Context, u, sec int, unitQuiz bool, opts ...quiz.Option) *quiz.Engine {
	questions := s.Questions(u, sec, unitQuiz)
	if len(questions) == 0 {
		return nil
	}
	if unitQuiz {
		sec = progress.UnitQuizKey(u).Section
		opts = append(opts, quiz.AsUnitQuiz())
	}
	opts = append(opts, quiz.WithRecorder(s.Progress.Recorder(ctx, u, sec, unitQuiz)))

	e := quiz.New(questions, opts...)
	if saved := s.Progress.QuizResponse(u, sec, unitQuiz); saved != nil {
		if !e.Restore(saved) {
			s.log.WithFields(logrus.Fields{"unit": u, "section": sec}).
				Warn("Saved quiz attempt does not match the current content")
		}
	}
	return e
}

// QuizHistory returns the most recent graded attempts, newest first.
func (s *Session) QuizHistory(ctx context.Context, limit int) ([]store.QuizEvent, error) {
	if s.Events == nil {
		return nil, nil
	}
	return s.Events.QueryQuizEvents(ctx, store.QueryOpts{Limit: limit})
}
