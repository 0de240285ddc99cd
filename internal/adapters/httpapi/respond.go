package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"landledger/internal/blob"
	"landledger/internal/core"
	"landledger/internal/plotcsv"
	"landledger/pkg/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeResult answers a mutation with the record under key and the
// non-blocking violations the rules reported.
func writeResult(w http.ResponseWriter, status int, key string, value any, res domain.Result) {
	body := map[string]any{key: value}
	if len(res.Violations) > 0 {
		body["warnings"] = res.Violations
	}
	writeJSON(w, status, body)
}

func isNotFound(err error) bool {
	var nf domain.NotFoundError
	return errors.As(err, &nf) || errors.Is(err, blob.ErrNotFound)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		validation domain.ValidationError
		violation  domain.RuleViolationError
		conflict   domain.ConflictError
		row        plotcsv.RowError
		bad        badRequest
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &row), errors.As(err, &bad):
		return http.StatusBadRequest
	case isNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &violation), errors.As(err, &conflict), errors.Is(err, blob.ErrExists):
		return http.StatusConflict
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrNoBlobStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, blob.ErrUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	body := map[string]any{"error": err.Error()}
	var violation domain.RuleViolationError
	if errors.As(err, &violation) {
		body["violations"] = violation.Result.Violations
	}
	writeJSON(w, status, body)
}

type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest{msg: fmt.Sprintf("invalid request body: %v", err)}
	}
	return nil
}
