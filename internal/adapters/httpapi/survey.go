package httpapi

import (
	"net/http"
	"strings"
	"time"

	"landledger/internal/authz"
	"landledger/pkg/domain"
)

type noteRequest struct {
	SurveyNumber *string `json:"survey_number"`
	Body         *string `json:"body"`
}

type taskRequest struct {
	SurveyNumber *string    `json:"survey_number"`
	Title        *string    `json:"title"`
	Details      *string    `json:"details"`
	Reminder     *bool      `json:"reminder"`
	DueAt        *time.Time `json:"due_at"`
}

func (t taskRequest) apply(dst *domain.Task) {
	if t.SurveyNumber != nil {
		dst.SurveyNumber = *t.SurveyNumber
	}
	if t.Title != nil {
		dst.Title = *t.Title
	}
	if t.Details != nil {
		dst.Details = *t.Details
	}
	if t.Reminder != nil {
		dst.Reminder = *t.Reminder
	}
	if t.DueAt != nil {
		due := t.DueAt.UTC()
		dst.DueAt = &due
	}
}

type legalNoteRequest struct {
	SurveyNumber *string `json:"survey_number"`
	Author       *string `json:"author"`
	Body         *string `json:"body"`
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// ownedBy reports whether the record with id is among the project's records.
func ownedBy[T any](items []T, id string, idOf func(T) string) bool {
	for _, it := range items {
		if idOf(it) == id {
			return true
		}
	}
	return false
}

// surveyFilter reads the optional ?survey= query parameter.
func surveyFilter(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("survey"))
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectNote, authz.ActionRead) {
		return
	}
	notes, err := s.svc.ListNotes(r.Context(), pid, surveyFilter(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectNote, authz.ActionWrite) {
		return
	}
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	note := domain.Note{ProjectID: pid}
	setString(&note.SurveyNumber, req.SurveyNumber)
	setString(&note.Body, req.Body)
	created, res, err := s.svc.AddNote(r.Context(), note)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "note", created, res)
}

func (s *Server) noteInProject(w http.ResponseWriter, r *http.Request, pid, id string) bool {
	notes, err := s.svc.ListNotes(r.Context(), pid, "")
	if err == nil && !ownedBy(notes, id, func(n domain.Note) string { return n.ID }) {
		err = domain.NotFoundError{Entity: domain.EntityNote, ID: id}
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return false
	}
	return true
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	pid, id := r.PathValue("pid"), r.PathValue("id")
	if !s.allow(w, r, pid, authz.ObjectNote, authz.ActionWrite) {
		return
	}
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !s.noteInProject(w, r, pid, id) {
		return
	}
	updated, res, err := s.svc.UpdateNote(r.Context(), id, func(n *domain.Note) error {
		setString(&n.SurveyNumber, req.SurveyNumber)
		setString(&n.Body, req.Body)
		return nil
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "note", updated, res)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	pid, id := r.PathValue("pid"), r.PathValue("id")
	if !s.allow(w, r, pid, authz.ObjectNote, authz.ActionWrite) {
		return
	}
	if !s.noteInProject(w, r, pid, id) {
		return
	}
	if _, err := s.svc.DeleteNote(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectTask, authz.ActionRead) {
		return
	}
	tasks, err := s.svc.ListTasks(r.Context(), pid, surveyFilter(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectTask, authz.ActionWrite) {
		return
	}
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	task := domain.Task{ProjectID: pid}
	req.apply(&task)
	created, res, err := s.svc.AddTask(r.Context(), task)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "task", created, res)
}

func (s *Server) taskInProject(w http.ResponseWriter, r *http.Request, pid, id string) bool {
	tasks, err := s.svc.ListTasks(r.Context(), pid, "")
	if err == nil && !ownedBy(tasks, id, func(t domain.Task) string { return t.ID }) {
		err = domain.NotFoundError{Entity: domain.EntityTask, ID: id}
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return false
	}
	return true
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	pid, id := r.PathValue("pid"), r.PathValue("id")
	if !s.allow(w, r, pid, authz.ObjectTask, authz.ActionWrite) {
		return
	}
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !s.taskInProject(w, r, pid, id) {
		return
	}
	updated, res, err := s.svc.UpdateTask(r.Context(), id, func(t *domain.Task) error {
		req.apply(t)
		return nil
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "task", updated, res)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	pid, id := r.PathValue("pid"), r.PathValue("id")
	if !s.allow(w, r, pid, authz.ObjectTask, authz.ActionWrite) {
		return
	}
	if !s.taskInProject(w, r, pid, id) {
		return
	}
	updated, res, err := s.svc.CompleteTask(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "task", updated, res)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	pid, id := r.PathValue("pid"), r.PathValue("id")
	if !s.allow(w, r, pid, authz.ObjectTask, authz.ActionWrite) {
		return
	}
	if !s.taskInProject(w, r, pid, id) {
		return
	}
	if _, err := s.svc.DeleteTask(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReminders lists open reminder tasks due by ?at= (RFC 3339), or now.
func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectTask, authz.ActionRead) {
		return
	}
	at := s.now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "at must be an RFC 3339 timestamp")
			return
		}
		at = parsed
	}
	tasks, err := s.svc.DueReminders(r.Context(), pid, at)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": tasks})
}

func (s *Server) handleListLegalNotes(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectLegalNote, authz.ActionRead) {
		return
	}
	notes, err := s.svc.ListLegalNotes(r.Context(), pid, surveyFilter(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"legal_notes": notes})
}

func (s *Server) handleAddLegalNote(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectLegalNote, authz.ActionWrite) {
		return
	}
	var req legalNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	note := domain.LegalNote{ProjectID: pid, Author: principalFrom(r.Context()).Name}
	setString(&note.SurveyNumber, req.SurveyNumber)
	setString(&note.Author, req.Author)
	setString(&note.Body, req.Body)
	created, res, err := s.svc.AddLegalNote(r.Context(), note)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "legal_note", created, res)
}

func (s *Server) legalNoteInProject(w http.ResponseWriter, r *http.Request, pid, id string) bool {
	notes, err := s.svc.ListLegalNotes(r.Context(), pid, "")
	if err == nil && !ownedBy(notes, id, func(n domain.LegalNote) string { return n.ID }) {
		err = domain.NotFoundError{Entity: domain.EntityLegalNote, ID: id}
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return false
	}
	return true
}

func (s *Server) handleUpdateLegalNote(w http.ResponseWriter, r *http.Request) {
	pid, id := r.PathValue("pid"), r.PathValue("id")
	if !s.allow(w, r, pid, authz.ObjectLegalNote, authz.ActionWrite) {
		return
	}
	var req legalNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !s.legalNoteInProject(w, r, pid, id) {
		return
	}
	updated, res, err := s.svc.UpdateLegalNote(r.Context(), id, func(n *domain.LegalNote) error {
		setString(&n.SurveyNumber, req.SurveyNumber)
		setString(&n.Author, req.Author)
		setString(&n.Body, req.Body)
		return nil
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "legal_note", updated, res)
}

func (s *Server) handleDeleteLegalNote(w http.ResponseWriter, r *http.Request) {
	pid, id := r.PathValue("pid"), r.PathValue("id")
	if !s.allow(w, r, pid, authz.ObjectLegalNote, authz.ActionWrite) {
		return
	}
	if !s.legalNoteInProject(w, r, pid, id) {
		return
	}
	if _, err := s.svc.DeleteLegalNote(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
