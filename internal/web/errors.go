package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and the request ID, and
// returned to the client as JSON with a user-friendly message, a suggested
// action and a support code from core.MapError.

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/ndjson-import/internal/core"
	"github.com/go-chi/chi/v5/middleware"
)

var (
	errRateLimited          = errors.New("rate limit exceeded")
	errUnsupportedMediaType = errors.New("unsupported media type")
	errNoBody               = errors.New("no body sent")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	// RunID and Summary are set when a run started and then failed.
	RunID   string           `json:"runId,omitempty"`
	Summary *core.RunSummary `json:"summary,omitempty"`
}

// respondError logs err and writes a JSON error response.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	respondRunError(w, r, nil, err, statusCode)
}

// respondRunError is respondError for an import that produced a run record.
// The technical detail is included so clients see why the stream failed.
func respondRunError(w http.ResponseWriter, r *http.Request, rec *core.RunRecord, err error, statusCode int) {
	userMsg := core.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	if rec != nil {
		resp.Error = err.Error()
		resp.RunID = rec.ID
		resp.Summary = rec.Summary
	}
	writeJSON(w, statusCode, resp)
}

// statusFor picks the HTTP status for a failed import.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrUnsupportedEncoding):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrCorruptBody):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
