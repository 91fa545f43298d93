package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sievert/ingreso/internal/core"
)

// generateRequest asks for n placeholder rows sharing facility,
// technology and periodicity.
type generateRequest struct {
	Count       int    `json:"cantidad"`
	Facility    string `json:"sede"`
	Technology  string `json:"tecnologia"`
	Periodicity string `json:"periodicidad"`
}

// importResponse is the outcome of a roster upload.
type importResponse struct {
	Accepted   int                `json:"accepted"`
	Rejected   int                `json:"rejected"`
	TotalRows  int                `json:"total_rows"`
	Rejections []core.Rejection   `json:"rejections"`
	Messages   []string           `json:"messages"`
	Status     core.SessionStatus `json:"status"`
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var in core.ManualEntry
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.service.AddUser(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, http.StatusCreated, sess)
}

func (s *Server) handleGenerateRows(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.service.GenerateRows(r.Context(), chi.URLParam(r, "id"),
		req.Count, req.Facility, req.Technology, req.Periodicity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, http.StatusCreated, sess)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var rec core.UserRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.service.UpdateUser(r.Context(), chi.URLParam(r, "id"), i, rec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, sess)
}

func (s *Server) handleRemoveUser(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.service.RemoveUser(r.Context(), chi.URLParam(r, "id"), i)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, sess)
}

// handleImport bulk-imports an uploaded .xlsx or .csv roster.
// Row problems come back as rejections with status 200; only file-level
// problems are errors.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if r.ContentLength > s.cfg.Upload.MaxFileSize {
		s.fail(w, r, errFileTooBig)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(s.cfg.Upload.MaxFileSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.fail(w, r, errFileTooBig)
			return
		}
		s.fail(w, r, errNoFile)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, errNoFile)
		return
	}
	defer file.Close()

	result, err := s.service.ImportFile(r.Context(), id, header.Filename, file)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	importRowsTotal.WithLabelValues("accepted").Add(float64(len(result.Accepted)))
	importRowsTotal.WithLabelValues("rejected").Add(float64(len(result.Rejections)))

	status, err := s.service.Status(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := importResponse{
		Accepted:   len(result.Accepted),
		Rejected:   len(result.Rejections),
		TotalRows:  result.TotalRows,
		Rejections: result.Rejections,
		Messages:   make([]string, 0, len(result.Rejections)),
		Status:     status,
	}
	if resp.Rejections == nil {
		resp.Rejections = []core.Rejection{}
	}
	for _, rej := range result.Rejections {
		resp.Messages = append(resp.Messages, rej.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Limiter().Status())
}
