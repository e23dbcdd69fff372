package llm

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// NewAttachment builds an attachment, deriving the MIME type from the file
// extension and falling back to content sniffing.
func NewAttachment(name string, data []byte) Attachment {
	return Attachment{Name: name, MIMEType: DetectMIMEType(name, data), Data: data}
}

// DetectMIMEType returns the media type of a file without parameters.
func DetectMIMEType(name string, data []byte) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if t == "" {
		t = http.DetectContentType(data)
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return "application/octet-stream"
}

func isTextAttachment(a Attachment) bool {
	switch {
	case strings.HasPrefix(a.MIMEType, "text/"):
		return true
	case a.MIMEType == "application/json", a.MIMEType == "application/xml":
		return true
	}
	return false
}

func isImageAttachment(a Attachment) bool {
	switch a.MIMEType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return true
	}
	return false
}

func isPDFAttachment(a Attachment) bool {
	return a.MIMEType == "application/pdf"
}
