package web

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/JonMunkholm/ndjson-import/internal/core"
	"github.com/JonMunkholm/ndjson-import/internal/logging"
)

// ndjsonMediaTypes are the Content-Types accepted for an upload.
var ndjsonMediaTypes = map[string]bool{
	"application/x-ndjson":    true,
	"application/ndjson":      true,
	"application/jsonl":       true,
	"application/x-jsonlines": true,
	"text/plain":              true,
}

// handleUpload imports the request body as one NDJSON stream. The body is
// read once, line by line; it is never buffered whole.
//
// A run that completes answers 200 with the run record, even when lines or
// groups failed. A run that aborts answers with the partial record attached.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !isNDJSON(r.Header.Get("Content-Type")) {
		respondError(w, r, errUnsupportedMediaType, http.StatusUnsupportedMediaType)
		return
	}
	if r.ContentLength == 0 {
		respondError(w, r, errNoBody, http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxBodySize)
	defer r.Body.Close()

	ctx := WithRequestMetadata(r.Context(), r)
	rec, err := s.service.Import(ctx, core.ImportRequest{
		Source:          requestSource(r),
		ContentEncoding: r.Header.Get("Content-Encoding"),
		Body:            r.Body,
	})
	if err != nil {
		if rec != nil {
			respondRunError(w, r, rec, err, runStatus(err))
			return
		}
		if errors.Is(err, core.ErrTooManyImports) {
			w.Header().Set("Retry-After", "5")
		}
		respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Debug("upload imported",
		"run_id", rec.ID,
		"groups", rec.Summary.GroupCount,
	)
	writeJSON(w, http.StatusOK, rec)
}

// isNDJSON reports whether a Content-Type header names an accepted type.
func isNDJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return ndjsonMediaTypes[strings.ToLower(mediaType)]
}

// requestSource names the upload for the run record: the source query
// parameter, then the X-Import-Source header, then "upload".
func requestSource(r *http.Request) string {
	if src := strings.TrimSpace(r.URL.Query().Get("source")); src != "" {
		return src
	}
	if src := strings.TrimSpace(r.Header.Get("X-Import-Source")); src != "" {
		return src
	}
	return "upload"
}

// runStatus picks the HTTP status for a run that started and then aborted.
func runStatus(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
