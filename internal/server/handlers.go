package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/abhisek/studylm/internal/chat"
	"github.com/abhisek/studylm/internal/config"
	"github.com/abhisek/studylm/internal/content"
	"github.com/abhisek/studylm/internal/llm"
	"github.com/abhisek/studylm/internal/studyguide"
)

const sharedDocumentName = content.FileName

// multipartMemory is how much of an upload is held in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	StudyConcepts json.RawMessage `json:"studyConcepts"`
}

// ParseFailure is the body of a 422 upload response.
type ParseFailure struct {
	Error     string `json:"error"`
	RawOutput string `json:"rawOutput"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	config.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStudyConcepts(w http.ResponseWriter, r *http.Request) {
	path := s.cfg.SharedFile(sharedDocumentName)
	if _, err := os.Stat(path); err != nil {
		config.Error(w, http.StatusNotFound, "No study content has been generated yet")
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			config.Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d MB", s.cfg.MaxUploadMB))
			return
		}
		config.Error(w, http.StatusBadRequest, "No files uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		config.Error(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	files, err := readAttachments(headers)
	if err != nil {
		log.WithError(err).Error("Failed to read uploaded files")
		config.Error(w, http.StatusInternalServerError, "Failed to process files")
		return
	}

	res, err := s.gen.Generate(r.Context(), files)
	var parseErr *studyguide.ParseError
	switch {
	case errors.Is(err, studyguide.ErrNoFiles):
		config.Error(w, http.StatusBadRequest, "No files uploaded")
	case errors.As(err, &parseErr):
		log.WithError(err).Error("Failed to parse generated study guide")
		config.JSON(w, http.StatusUnprocessableEntity, ParseFailure{
			Error:     "The generated content could not be parsed as valid JSON",
			RawOutput: parseErr.Excerpt(),
		})
	case err != nil:
		log.WithError(err).Error("Failed to generate study guide")
		config.Error(w, http.StatusInternalServerError, "Failed to process files")
	default:
		config.JSON(w, http.StatusOK, UploadResponse{StudyConcepts: res.JSON})
	}
}

func readAttachments(headers []*multipart.FileHeader) ([]llm.Attachment, error) {
	files := make([]llm.Attachment, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}

		a := llm.NewAttachment(fh.Filename, data)
		if mt, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type")); err == nil && mt != "application/octet-stream" {
			a.MIMEType = mt
		}
		files = append(files, a)
	}
	return files, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		config.Error(w, http.StatusBadRequest, "Message is required")
		return
	}

	rc := http.NewResponseController(w)
	started := false
	err := s.replier.Reply(r.Context(), req, func(chunk string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			return err
		}
		return rc.Flush()
	})

	switch {
	case err == nil && !started:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	case err != nil && !started:
		log.WithError(err).Error("Chat request failed")
		config.Error(w, http.StatusInternalServerError, "Failed to get a reply")
	case err != nil:
		// Headers are gone; the client sees a truncated body.
		log.WithError(err).Warn("Chat stream interrupted")
	}
}
