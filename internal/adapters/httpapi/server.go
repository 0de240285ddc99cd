// Package httpapi serves the landledger JSON API under /api/v1.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"landledger/internal/adapters/exports"
	"landledger/internal/authz"
	"landledger/internal/blob"
	"landledger/internal/core"
	"landledger/internal/plotcsv"
	"landledger/pkg/domain"
)

// UserHeader carries the id of the calling user. Authentication happens in
// front of this service.
const UserHeader = "X-User-ID"

// Server routes API requests to the service.
type Server struct {
	svc       *core.Service
	authz     *authz.Authorizer
	importer  *plotcsv.Importer
	exports   exports.Scheduler
	artifacts blob.Store
	metrics   http.Handler
	logger    core.Logger
	maxUpload int64
	now       func() time.Time
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l core.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithExports enables the export endpoints. artifacts is the store the
// scheduler writes to.
func WithExports(sched exports.Scheduler, artifacts blob.Store) Option {
	return func(s *Server) {
		s.exports = sched
		s.artifacts = artifacts
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithMaxUploadBytes bounds document and CSV upload bodies.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// New constructs a server over svc guarded by az.
func New(svc *core.Service, az *authz.Authorizer, opts ...Option) *Server {
	s := &Server{
		svc:       svc,
		authz:     az,
		importer:  plotcsv.NewImporter(svc),
		logger:    nopLogger{},
		maxUpload: 32 << 20,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/me", s.handleMe)

	api.HandleFunc("GET /api/v1/projects", s.handleListProjects)
	api.HandleFunc("POST /api/v1/projects", s.handleCreateProject)
	api.HandleFunc("GET /api/v1/projects/{pid}", s.handleGetProject)
	api.HandleFunc("PATCH /api/v1/projects/{pid}", s.handleUpdateProject)
	api.HandleFunc("DELETE /api/v1/projects/{pid}", s.handleDeleteProject)
	api.HandleFunc("GET /api/v1/projects/{pid}/summary", s.handleSummary)

	api.HandleFunc("GET /api/v1/projects/{pid}/lineage", s.handleLineage)
	api.HandleFunc("POST /api/v1/projects/{pid}/lineage/import", s.handleImportLineage)
	api.HandleFunc("GET /api/v1/projects/{pid}/family-heads", s.handleFamilyHeads)
	api.HandleFunc("POST /api/v1/projects/{pid}/persons", s.handleAddPerson)
	api.HandleFunc("GET /api/v1/projects/{pid}/persons/{personID}", s.handleGetPerson)
	api.HandleFunc("PATCH /api/v1/projects/{pid}/persons/{personID}", s.handleUpdatePerson)
	api.HandleFunc("DELETE /api/v1/projects/{pid}/persons/{personID}", s.handleRemovePerson)
	api.HandleFunc("POST /api/v1/projects/{pid}/persons/{personID}/land-records", s.handleAddLandRecord)
	api.HandleFunc("PATCH /api/v1/projects/{pid}/persons/{personID}/land-records/{recordID}", s.handleUpdateLandRecord)
	api.HandleFunc("DELETE /api/v1/projects/{pid}/persons/{personID}/land-records/{recordID}", s.handleRemoveLandRecord)

	api.HandleFunc("GET /api/v1/projects/{pid}/acquisition", s.handleListAcquisition)
	api.HandleFunc("GET /api/v1/projects/{pid}/acquisition/{survey...}", s.handleGetAcquisition)
	api.HandleFunc("PUT /api/v1/projects/{pid}/acquisition/{survey...}", s.handleSetAcquisition)
	api.HandleFunc("GET /api/v1/projects/{pid}/stages", s.handleStageCounts)
	api.HandleFunc("GET /api/v1/projects/{pid}/chart", s.handleGetChart)
	api.HandleFunc("POST /api/v1/projects/{pid}/chart/import", s.handleImportChart)

	api.HandleFunc("GET /api/v1/projects/{pid}/transactions", s.handleListTransactions)
	api.HandleFunc("POST /api/v1/projects/{pid}/transactions", s.handleRecordTransaction)
	api.HandleFunc("GET /api/v1/projects/{pid}/financial-transactions", s.handleListFinancial)
	api.HandleFunc("POST /api/v1/projects/{pid}/financial-transactions", s.handleRecordFinancial)

	api.HandleFunc("GET /api/v1/projects/{pid}/notes", s.handleListNotes)
	api.HandleFunc("POST /api/v1/projects/{pid}/notes", s.handleAddNote)
	api.HandleFunc("PATCH /api/v1/projects/{pid}/notes/{id}", s.handleUpdateNote)
	api.HandleFunc("DELETE /api/v1/projects/{pid}/notes/{id}", s.handleDeleteNote)
	api.HandleFunc("GET /api/v1/projects/{pid}/tasks", s.handleListTasks)
	api.HandleFunc("POST /api/v1/projects/{pid}/tasks", s.handleAddTask)
	api.HandleFunc("PATCH /api/v1/projects/{pid}/tasks/{id}", s.handleUpdateTask)
	api.HandleFunc("POST /api/v1/projects/{pid}/tasks/{id}/complete", s.handleCompleteTask)
	api.HandleFunc("DELETE /api/v1/projects/{pid}/tasks/{id}", s.handleDeleteTask)
	api.HandleFunc("GET /api/v1/projects/{pid}/reminders", s.handleReminders)
	api.HandleFunc("GET /api/v1/projects/{pid}/legal-notes", s.handleListLegalNotes)
	api.HandleFunc("POST /api/v1/projects/{pid}/legal-notes", s.handleAddLegalNote)
	api.HandleFunc("PATCH /api/v1/projects/{pid}/legal-notes/{id}", s.handleUpdateLegalNote)
	api.HandleFunc("DELETE /api/v1/projects/{pid}/legal-notes/{id}", s.handleDeleteLegalNote)

	api.HandleFunc("GET /api/v1/projects/{pid}/documents", s.handleListDocuments)
	api.HandleFunc("POST /api/v1/projects/{pid}/documents", s.handleUploadDocument)
	api.HandleFunc("GET /api/v1/projects/{pid}/documents/{id}", s.handleOpenDocument)
	api.HandleFunc("GET /api/v1/projects/{pid}/documents/{id}/url", s.handleDocumentURL)
	api.HandleFunc("DELETE /api/v1/projects/{pid}/documents/{id}", s.handleDeleteDocument)

	api.HandleFunc("GET /api/v1/users", s.handleListUsers)
	api.HandleFunc("POST /api/v1/users", s.handleCreateUser)
	api.HandleFunc("GET /api/v1/users/{id}", s.handleGetUser)
	api.HandleFunc("PATCH /api/v1/users/{id}", s.handleUpdateUser)
	api.HandleFunc("DELETE /api/v1/users/{id}", s.handleDeleteUser)
	api.HandleFunc("PUT /api/v1/users/{id}/projects/{pid}", s.handleAssignUser)
	api.HandleFunc("DELETE /api/v1/users/{id}/projects/{pid}", s.handleUnassignUser)

	api.HandleFunc("POST /api/v1/projects/{pid}/exports", s.handleCreateExport)
	api.HandleFunc("GET /api/v1/exports/{id}", s.handleGetExport)
	api.HandleFunc("GET /api/v1/exports/{id}/artifacts/{format}", s.handleExportArtifact)

	mux.Handle("/api/", s.withPrincipal(api))
	return s.logRequests(mux)
}

type principalKey struct{}

func principalFrom(ctx context.Context) domain.User {
	u, _ := ctx.Value(principalKey{}).(domain.User)
	return u
}

// withPrincipal resolves the calling user. Without authorization every
// request runs as an anonymous principal.
func (s *Server) withPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			if s.authz.Mode() == authz.ModeDisabled {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		user, err := s.svc.GetUser(r.Context(), id)
		if err != nil {
			if isNotFound(err) {
				writeError(w, http.StatusUnauthorized, "unknown user")
				return
			}
			s.writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, user)))
	})
}

// allow checks the caller against the role policy and, for project scoped
// requests, the caller's project assignments. It writes the error response
// and returns false when the request must stop.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, projectID, object, action string) bool {
	user := principalFrom(r.Context())
	d, err := s.authz.Check(user, projectID, object, action)
	if err != nil {
		s.logger.Error("authorization failed", "error", err)
		writeError(w, http.StatusInternalServerError, "authorization failed")
		return false
	}
	if d.Denied() {
		writeError(w, http.StatusForbidden, d.Reason)
		return false
	}
	if !d.Allowed {
		s.logger.Warn("authz shadow deny", "user_id", user.ID, "object", object, "action", action, "project_id", projectID, "reason", d.Reason)
	}
	return true
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": principalFrom(r.Context())})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", s.now().Sub(start).Milliseconds(),
		)
	})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
