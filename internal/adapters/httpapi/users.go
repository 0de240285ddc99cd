package httpapi

import (
	"net/http"
	"strings"

	"landledger/internal/authz"
	"landledger/pkg/domain"
)

type userRequest struct {
	Name   *string            `json:"name"`
	Email  *string            `json:"email"`
	Role   *string            `json:"role"`
	Status *domain.UserStatus `json:"status"`
}

// apply copies the set fields. Roles may be given as slug or label.
func (u userRequest) apply(dst *domain.User) error {
	setString(&dst.Name, u.Name)
	setString(&dst.Email, u.Email)
	if u.Role != nil {
		role, ok := domain.ParseRole(*u.Role)
		if !ok {
			return domain.ValidationError{Entity: domain.EntityUser, Field: "role", Reason: "has unknown value " + *u.Role}
		}
		dst.Role = role
	}
	if u.Status != nil {
		dst.Status = *u.Status
	}
	return nil
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "", authz.ObjectUser, authz.ActionRead) {
		return
	}
	if email := strings.TrimSpace(r.URL.Query().Get("email")); email != "" {
		user, err := s.svc.UserByEmail(r.Context(), email)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": []domain.User{user}})
		return
	}
	users, err := s.svc.ListUsers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "", authz.ObjectUser, authz.ActionWrite) {
		return
	}
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	user := domain.User{Status: domain.UserActive}
	if err := req.apply(&user); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	created, res, err := s.svc.CreateUser(r.Context(), user)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "user", created, res)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "", authz.ObjectUser, authz.ActionRead) {
		return
	}
	user, err := s.svc.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "", authz.ObjectUser, authz.ActionWrite) {
		return
	}
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	updated, res, err := s.svc.UpdateUser(r.Context(), r.PathValue("id"), req.apply)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "user", updated, res)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "", authz.ObjectUser, authz.ActionWrite) {
		return
	}
	if _, err := s.svc.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAssignUser(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "", authz.ObjectUser, authz.ActionWrite) {
		return
	}
	updated, res, err := s.svc.AssignUserProject(r.Context(), r.PathValue("id"), r.PathValue("pid"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "user", updated, res)
}

func (s *Server) handleUnassignUser(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "", authz.ObjectUser, authz.ActionWrite) {
		return
	}
	updated, res, err := s.svc.UnassignUserProject(r.Context(), r.PathValue("id"), r.PathValue("pid"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "user", updated, res)
}
