package httpapi

import (
	"net/http"

	"landledger/internal/authz"
	"landledger/pkg/domain"
)

type projectRequest struct {
	Name     *string `json:"name"`
	SiteID   *string `json:"site_id"`
	Location *string `json:"location"`
}

func (p projectRequest) apply(dst *domain.Project) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.SiteID != nil {
		dst.SiteID = *p.SiteID
	}
	if p.Location != nil {
		dst.Location = *p.Location
	}
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "", authz.ObjectProject, authz.ActionRead) {
		return
	}
	projects, err := s.svc.ListProjects(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	projects = s.authz.VisibleProjects(principalFrom(r.Context()), projects)
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "", authz.ObjectProject, authz.ActionWrite) {
		return
	}
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var project domain.Project
	req.apply(&project)
	created, res, err := s.svc.CreateProject(r.Context(), project)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "project", created, res)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectProject, authz.ActionRead) {
		return
	}
	project, err := s.svc.GetProject(r.Context(), pid)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": project})
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectProject, authz.ActionWrite) {
		return
	}
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	updated, res, err := s.svc.UpdateProject(r.Context(), pid, func(p *domain.Project) error {
		req.apply(p)
		return nil
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "project", updated, res)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectProject, authz.ActionWrite) {
		return
	}
	if _, err := s.svc.DeleteProject(r.Context(), pid); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectSummary, authz.ActionRead) {
		return
	}
	summary, err := s.svc.ProjectSummary(r.Context(), pid)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}
