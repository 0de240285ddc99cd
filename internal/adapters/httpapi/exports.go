package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"landledger/internal/adapters/exports"
	"landledger/internal/authz"
)

type exportRequest struct {
	Report  string   `json:"report"`
	Formats []string `json:"formats"`
}

func (req exportRequest) input(pid, requestedBy string) (exports.Input, error) {
	report, ok := exports.ParseReport(req.Report)
	if !ok {
		return exports.Input{}, badRequest{msg: "unknown report " + strconv.Quote(req.Report)}
	}
	in := exports.Input{ProjectID: pid, Report: report, RequestedBy: requestedBy}
	for _, raw := range req.Formats {
		f, ok := exports.ParseFormat(raw)
		if !ok {
			return exports.Input{}, badRequest{msg: "unsupported format " + strconv.Quote(raw)}
		}
		in.Formats = append(in.Formats, f)
	}
	return in, nil
}

func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectExport, authz.ActionWrite) {
		return
	}
	if s.exports == nil {
		writeError(w, http.StatusNotFound, "exports are not configured")
		return
	}
	var req exportRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	in, err := req.input(pid, principalFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	rec, err := s.exports.EnqueueExport(r.Context(), in)
	if errors.Is(err, exports.ErrQueueFull) {
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": rec})
}

// export loads a record and checks the caller may read exports of its
// project.
func (s *Server) export(w http.ResponseWriter, r *http.Request) (exports.Record, bool) {
	if s.exports == nil {
		writeError(w, http.StatusNotFound, "exports are not configured")
		return exports.Record{}, false
	}
	// Exports outside the caller's projects answer exactly like unknown ids.
	rec, ok := s.exports.GetExport(r.PathValue("id"))
	if ok {
		user := principalFrom(r.Context())
		d, err := s.authz.Check(user, rec.ProjectID, authz.ObjectExport, authz.ActionRead)
		if err != nil {
			s.logger.Error("authorization failed", "error", err)
			writeError(w, http.StatusInternalServerError, "authorization failed")
			return exports.Record{}, false
		}
		if !d.Allowed && !d.Denied() {
			s.logger.Warn("authz shadow deny", "user_id", user.ID, "object", authz.ObjectExport, "action", authz.ActionRead, "project_id", rec.ProjectID, "reason", d.Reason)
		}
		ok = !d.Denied()
	}
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return exports.Record{}, false
	}
	return rec, true
}

func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.export(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": rec})
}

func (s *Server) handleExportArtifact(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.export(w, r)
	if !ok {
		return
	}
	format, ok := exports.ParseFormat(r.PathValue("format"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported format")
		return
	}
	if rec.Status != exports.StatusSucceeded {
		writeError(w, http.StatusConflict, "export is "+string(rec.Status))
		return
	}
	a, ok := rec.Artifact(format)
	if !ok || s.artifacts == nil {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	info, rc, err := s.artifacts.Get(r.Context(), a.Key)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": string(rec.Report) + "." + string(format),
	}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("artifact download interrupted", "export_id", rec.ID, "error", err)
	}
}
