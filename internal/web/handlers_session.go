package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sievert/ingreso/internal/core"
	"github.com/sievert/ingreso/internal/logging"
)

// maxJSONBody bounds form payloads; snapshots use Upload.MaxFileSize.
const maxJSONBody = 1 << 20

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

// indexParam parses the {index} URL parameter.
func indexParam(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || i < 0 {
		return 0, errBadIndex
	}
	return i, nil
}

// sessionResponse is a session with its completion status.
type sessionResponse struct {
	Session *core.Session      `json:"session"`
	Status  core.SessionStatus `json:"status"`
}

func (s *Server) writeSession(w http.ResponseWriter, status int, sess *core.Session) {
	writeJSON(w, status, sessionResponse{Session: sess, Status: sess.Status()})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.CreateSession(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("session created", "session_id", sess.ID)
	w.Header().Set("Location", "/api/sessions/"+sess.ID)
	s.writeSession(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSetClient(w http.ResponseWriter, r *http.Request) {
	var c core.ClientRecord
	if err := decodeJSON(w, r, &c); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.service.SetClient(r.Context(), chi.URLParam(r, "id"), c)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, sess)
}

func (s *Server) handleAddFacility(w http.ResponseWriter, r *http.Request) {
	var f core.FacilityRecord
	if err := decodeJSON(w, r, &f); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.service.AddFacility(r.Context(), chi.URLParam(r, "id"), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, http.StatusCreated, sess)
}

func (s *Server) handleUpdateFacility(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var f core.FacilityRecord
	if err := decodeJSON(w, r, &f); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.service.UpdateFacility(r.Context(), chi.URLParam(r, "id"), i, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, sess)
}

func (s *Server) handleRemoveFacility(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.service.RemoveFacility(r.Context(), chi.URLParam(r, "id"), i)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, sess)
}

// handleSubmit validates, stores and announces the session.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := withRequestMetadata(r.Context(), r)
	result, err := s.service.Submit(ctx, chi.URLParam(r, "id"))
	if err != nil {
		var issue *core.ValidationIssue
		switch {
		case errors.As(err, &issue):
			submissionsTotal.WithLabelValues("invalid").Inc()
		case errors.Is(err, core.ErrSessionSubmitted):
			submissionsTotal.WithLabelValues("duplicate").Inc()
		default:
			submissionsTotal.WithLabelValues("error").Inc()
		}
		s.fail(w, r, err)
		return
	}
	submissionsTotal.WithLabelValues("stored").Inc()
	writeJSON(w, http.StatusOK, result)
}

// handleRestoreSnapshot replaces the session data with an uploaded draft.
func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			err = errFileTooBig
		}
		s.fail(w, r, err)
		return
	}
	sess, err := s.service.RestoreSnapshot(r.Context(), chi.URLParam(r, "id"), data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, sess)
}
