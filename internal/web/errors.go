package web

// errors.go turns service errors into HTTP responses.
//
// Every error is logged with the request id and answered with the
// operator-facing message from core.MapError. The status code is derived
// from the error itself, so handlers just call s.fail(w, r, err).

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sievert/ingreso/internal/core"
	"github.com/sievert/ingreso/internal/logging"
	"github.com/sievert/ingreso/internal/spreadsheet"
	"github.com/sievert/ingreso/internal/web/templates"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errNoFile      = errors.New("no file provided")
	errFileTooBig  = errors.New("file too large")
	errBadIndex    = errors.New("roster row not found: invalid index")
	errBadBody     = errors.New("invalid request body")
)

// ErrorResponse is the JSON body of every API error.
// Row and Field locate a validation problem in the roster.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Action  string   `json:"action,omitempty"`
	Code    string   `json:"code"`
	Row     int      `json:"row,omitempty"`
	Field   string   `json:"field,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var (
		issue   *core.ValidationIssue
		header  *core.HeaderError
		gateway *core.GatewayError
	)
	switch {
	case errors.As(err, &issue), errors.As(err, &header):
		return http.StatusUnprocessableEntity
	case errors.As(err, &gateway):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrRowNotFound),
		errors.Is(err, core.ErrFacilityNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrSessionSubmitted),
		errors.Is(err, core.ErrDuplicateDocument),
		errors.Is(err, core.ErrFacilityExists),
		errors.Is(err, core.ErrFacilityInUse):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, spreadsheet.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, errFileTooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case core.IsUserFacing(err), errors.Is(err, errBadBody):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and writes the matching error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, err, statusFor(err))
}

// respondError logs the technical error and answers with the
// operator-facing message, as an HTMX fragment, JSON or plain text.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	log := logging.FromContext(r.Context())
	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	log.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if errors.Is(err, core.ErrTooManyImports) {
		w.Header().Set("Retry-After", "5")
	}

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, statusCode)
	case wantsJSON(r):
		writeErrorJSON(w, errorBody(err, userMsg), statusCode)
	default:
		http.Error(w, userMsg.Message+" ("+userMsg.Code+")", statusCode)
	}
}

// errorBody builds the JSON error, locating validation problems.
func errorBody(err error, msg core.UserMessage) ErrorResponse {
	body := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}

	var issue *core.ValidationIssue
	if errors.As(err, &issue) {
		body.Error = issue.Error()
		body.Message = issue.Message
		body.Row = issue.Row
		body.Field = issue.Field
		if body.Code == "ERR000" {
			body.Code = "VAL001"
			body.Action = "Corrija el dato indicado y envíe de nuevo"
		}
	}
	var header *core.HeaderError
	if errors.As(err, &header) {
		body.Missing = header.Missing
	}
	return body
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	writeErrorJSON(w, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}, statusCode)
}

func writeErrorJSON(w http.ResponseWriter, body ErrorResponse, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		slog.Error("render error partial", "error", err)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
