package web

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sievert/ingreso/internal/core"
	"github.com/sievert/ingreso/internal/logging"
	"github.com/sievert/ingreso/internal/web/templates"
)

// readyTimeout bounds each readiness check.
const readyTimeout = 2 * time.Second

// handleLists returns the master lists that feed the form dropdowns.
func (s *Server) handleLists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.MasterLists())
}

func (s *Server) handleDepartments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.geo.Departments())
}

// handleMunicipalities lists the municipalities of a department; an
// unknown department yields an empty list.
func (s *Server) handleMunicipalities(w http.ResponseWriter, r *http.Request) {
	dept, err := url.PathUnescape(chi.URLParam(r, "department"))
	if err != nil {
		s.fail(w, r, errBadBody)
		return
	}
	list := s.geo.Municipalities(dept)
	if list == nil {
		list = []string{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady runs every readiness check and reports 503 if any fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.ready))
	status := http.StatusOK
	for name, check := range s.ready {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

// handleStatusPage renders the human-readable progress page of a session.
func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	st := sess.Status()
	data := templates.StatusData{
		SessionID:    sess.ID,
		ClientName:   sess.Client.LegalName,
		ClientOK:     st.ClientOK,
		FacilitiesOK: st.FacilitiesOK,
		Facilities:   sess.FacilityNames(),
		Users:        st.Users,
		Submitted:    st.Submitted,
	}
	if !sess.Submitted {
		if issue := core.ValidateSession(sess); issue != nil {
			data.Issue = issue.Error()
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.StatusPage(data).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render status page", "error", err)
	}
}
