// Package content streams resolved pitch files to viewers.
package content

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	// Scripts may run, but the document gets an opaque origin: no cookies,
	// no storage of the host application, no top-level navigation.
	sandboxPolicy = "sandbox allow-scripts allow-forms allow-popups; " +
		"frame-ancestors 'self'; " +
		"default-src 'self' 'unsafe-inline' 'unsafe-eval' data: blob:"

	fallbackContentType = "application/octet-stream"
)

// ContentType derives a MIME type from the file extension.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return fallbackContentType
}

// Responder writes file bytes with type and framing headers.
type Responder struct {
	logger *zap.Logger
}

func NewResponder(logger *zap.Logger) *Responder {
	return &Responder{logger: logger.With(zap.String("component", "content_responder"))}
}

// Serve streams the file at path, which must already be resolved. The entry
// document, and any HTML or SVG sub-document, is framed: it may only be
// embedded by the application itself and renders sandboxed. Range and
// conditional requests are handled by http.ServeContent.
func (r *Responder) Serve(w http.ResponseWriter, req *http.Request, path string, entry bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open content: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat content: %w", err)
	}

	ct := ContentType(path)
	h := w.Header()
	h.Set("Content-Type", ct)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Cache-Control", "private, no-cache")
	if entry || isDocument(ct) {
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Content-Security-Policy", sandboxPolicy)
	}

	http.ServeContent(w, req, filepath.Base(path), stat.ModTime(), f)

	r.logger.Debug("content served",
		zap.String("file", filepath.Base(path)),
		zap.Int64("size", stat.Size()),
		zap.Bool("entry", entry),
	)
	return nil
}

func isDocument(ct string) bool {
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "image/svg+xml")
}
