package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"landledger/internal/authz"
	"landledger/pkg/domain"
)

type transactionRequest struct {
	Owner          string             `json:"owner"`
	Source         string             `json:"source"`
	Mode           domain.PaymentMode `json:"mode"`
	Year           int                `json:"year"`
	DocumentNumber string             `json:"document_number"`
	Amount         decimal.Decimal    `json:"amount"`
	Purpose        string             `json:"purpose"`
}

type financialRequest struct {
	SurveyNumber string             `json:"survey_number"`
	Payee        string             `json:"payee"`
	Mode         domain.PaymentMode `json:"mode"`
	Amount       decimal.Decimal    `json:"amount"`
	Purpose      string             `json:"purpose"`
	PaidOn       string             `json:"paid_on"`
}

// parseDay accepts a calendar date or an RFC 3339 timestamp.
func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, badRequest{msg: "paid_on must be YYYY-MM-DD or RFC 3339"}
	}
	return t.UTC(), nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectLedger, authz.ActionRead) {
		return
	}
	records, err := s.svc.ListTransactions(r.Context(), pid)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": records})
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectLedger, authz.ActionWrite) {
		return
	}
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	created, res, err := s.svc.RecordTransaction(r.Context(), domain.TransactionRecord{
		ProjectID:      pid,
		Owner:          req.Owner,
		Source:         req.Source,
		Mode:           req.Mode,
		Year:           req.Year,
		DocumentNumber: req.DocumentNumber,
		Amount:         req.Amount,
		Purpose:        req.Purpose,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "transaction", created, res)
}

func (s *Server) handleListFinancial(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectLedger, authz.ActionRead) {
		return
	}
	records, err := s.svc.ListFinancialTransactions(r.Context(), pid)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"financial_transactions": records})
}

func (s *Server) handleRecordFinancial(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectLedger, authz.ActionWrite) {
		return
	}
	var req financialRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	rec := domain.FinancialTransaction{
		ProjectID:    pid,
		SurveyNumber: req.SurveyNumber,
		Payee:        req.Payee,
		Mode:         req.Mode,
		Amount:       req.Amount,
		Purpose:      req.Purpose,
	}
	if req.PaidOn != "" {
		paid, err := parseDay(req.PaidOn)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		rec.PaidOn = paid
	}
	created, res, err := s.svc.RecordFinancialTransaction(r.Context(), rec)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "financial_transaction", created, res)
}
