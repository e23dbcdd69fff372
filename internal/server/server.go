// Package server is the HTTP proxy between the study client and the LLM
// provider: it turns uploaded course files into a study document and
// streams chat replies.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/studylm/internal/chat"
	"github.com/abhisek/studylm/internal/config"
	"github.com/abhisek/studylm/internal/llm"
	"github.com/abhisek/studylm/internal/studyguide"
)

// maxPortAttempts bounds how many consecutive ports Listen tries.
const maxPortAttempts = 100

// Generator produces a study guide from uploaded files.
type Generator interface {
	Generate(ctx context.Context, files []llm.Attachment) (*studyguide.Result, error)
}

// Replier streams chat replies.
type Replier interface {
	Reply(ctx context.Context, req chat.Request, emit func(string) error) error
}

// Server serves the proxy API.
type Server struct {
	cfg     *config.Config
	gen     Generator
	replier Replier
	log     logrus.FieldLogger
}

// New creates a server.
func New(cfg *config.Config, gen Generator, replier Replier, log logrus.FieldLogger) *Server {
	if log == nil {
		log = config.Logger()
	}
	return &Server{cfg: cfg, gen: gen, replier: replier, log: log}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{s.cfg.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/"+sharedDocumentName, s.handleStudyConcepts)
	r.Post("/upload", s.handleUpload)
	r.Post("/chat", s.handleChat)
	return r
}

// Listen binds to port, moving to the next port while the current one is in
// use.
func Listen(ctx context.Context, port int, log logrus.FieldLogger) (net.Listener, error) {
	var lc net.ListenConfig
	for range maxPortAttempts {
		ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, nil
		}
		if port == 0 || !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen on port %d: %w", port, err)
		}
		log.WithField("port", port).Warnf("Port %d is in use, trying port %d...", port, port+1)
		port++
	}
	return nil, fmt.Errorf("no free port after %d attempts", maxPortAttempts)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithField("addr", ln.Addr().String()).Info("Server listening")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger logs one line per request through log.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).Round(time.Millisecond).String(),
			}).Info("Request handled")
		})
	}
}
