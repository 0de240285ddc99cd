package httpapi

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"landledger/internal/authz"
	"landledger/internal/core"
	"landledger/pkg/domain"
)

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectDocument, authz.ActionRead) {
		return
	}
	docs, err := s.svc.ListDocuments(r.Context(), pid)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleUploadDocument stores the raw request body. The file name and the
// optional survey number travel as query parameters.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectDocument, authz.ActionWrite) {
		return
	}
	q := r.URL.Query()
	name := strings.TrimSpace(q.Get("file_name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "file_name query parameter is required")
		return
	}
	if _, err := s.svc.GetProject(r.Context(), pid); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err != nil || mt == "" {
		contentType = ""
	}
	doc, res, err := s.svc.UploadDocument(r.Context(), domain.Document{
		ProjectID:    pid,
		SurveyNumber: strings.TrimSpace(q.Get("survey_number")),
		FileName:     name,
		ContentType:  contentType,
	}, http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "document", doc, res)
}

func (s *Server) handleOpenDocument(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectDocument, authz.ActionRead) {
		return
	}
	doc, rc, err := s.svc.OpenDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()
	if doc.ProjectID != pid {
		s.writeServiceError(w, r, domain.NotFoundError{Entity: domain.EntityDocument, ID: doc.ID})
		return
	}
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	if doc.ETag != "" {
		w.Header().Set("ETag", strconv.Quote(doc.ETag))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("document download interrupted", "document_id", doc.ID, "error", err)
	}
}

// maxURLExpiry is the longest lifetime S3 accepts for a pre-signed URL.
const maxURLExpiry = 7 * 24 * time.Hour

// handleDocumentURL answers a pre-signed download URL. Drivers that cannot
// sign answer 501.
func (s *Server) handleDocumentURL(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectDocument, authz.ActionRead) {
		return
	}
	expiry := core.DefaultDocumentURLExpiry
	if raw := r.URL.Query().Get("expires_in"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > maxURLExpiry {
			writeError(w, http.StatusBadRequest, "expires_in must be a positive duration of at most 168h")
			return
		}
		expiry = d
	}
	id := r.PathValue("id")
	docs, err := s.svc.ListDocuments(r.Context(), pid)
	if err == nil && !ownedBy(docs, id, func(d domain.Document) string { return d.ID }) {
		err = domain.NotFoundError{Entity: domain.EntityDocument, ID: id}
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_, url, err := s.svc.DocumentURL(r.Context(), id, expiry)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url, "expires_at": s.now().Add(expiry)})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	pid, id := r.PathValue("pid"), r.PathValue("id")
	if !s.allow(w, r, pid, authz.ObjectDocument, authz.ActionWrite) {
		return
	}
	docs, err := s.svc.ListDocuments(r.Context(), pid)
	if err == nil && !ownedBy(docs, id, func(d domain.Document) string { return d.ID }) {
		err = domain.NotFoundError{Entity: domain.EntityDocument, ID: id}
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if _, err := s.svc.DeleteDocument(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
