package web

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sievert/ingreso/internal/spreadsheet"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleDownloadTemplate returns the roster workbook with dropdowns bound
// to the session's facilities.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := spreadsheet.WriteTemplate(&buf, sess.FacilityNames()); err != nil {
		s.fail(w, r, fmt.Errorf("write template: %w", err))
		return
	}
	sendFile(w, xlsxContentType, "plantilla_usuarios.xlsx", buf.Bytes())
}

// handleExportRoster returns the current roster as a workbook.
func (s *Server) handleExportRoster(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := spreadsheet.WriteRoster(&buf, sess.Roster.Records()); err != nil {
		s.fail(w, r, fmt.Errorf("write roster: %w", err))
		return
	}
	sendFile(w, xlsxContentType, "usuarios_"+sess.ID+".xlsx", buf.Bytes())
}

// handleExportSnapshot downloads the session as a JSON draft.
func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := s.service.ExportSnapshot(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendFile(w, "application/json", "borrador_"+id+".json", data)
}

func sendFile(w http.ResponseWriter, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Warn("send file interrupted", "file", name, "error", err)
	}
}
