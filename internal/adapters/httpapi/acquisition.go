package httpapi

import (
	"bytes"
	"net/http"
	"time"

	"landledger/internal/authz"
	"landledger/internal/plotcsv"
	"landledger/pkg/domain"
)

// statusRequest patches an acquisition status. Phrase is a chart status
// phrase such as "advance paid" and is applied before the explicit fields.
type statusRequest struct {
	Phrase     string `json:"phrase"`
	Financials *struct {
		AdvancePayment  *domain.AdvancePayment  `json:"advance_payment"`
		AgreementStatus *domain.AgreementStatus `json:"agreement_status"`
	} `json:"financials"`
	Operations *struct {
		MeetingDate        *time.Time                 `json:"meeting_date"`
		DocumentCollection *domain.DocumentCollection `json:"document_collection"`
	} `json:"operations"`
	Legal *struct {
		QueryStatus *domain.QueryStatus `json:"query_status"`
	} `json:"legal"`
}

func (req statusRequest) apply(s *domain.AcquisitionStatus, at time.Time) error {
	if req.Phrase != "" && !plotcsv.ApplyPlotStatus(s, req.Phrase, at) {
		return domain.ValidationError{Entity: domain.EntityAcquisitionStatus, Field: "phrase", Reason: "unknown status phrase " + req.Phrase}
	}
	if f := req.Financials; f != nil {
		if f.AdvancePayment != nil {
			s.Financials.AdvancePayment = *f.AdvancePayment
		}
		if f.AgreementStatus != nil {
			s.Financials.AgreementStatus = *f.AgreementStatus
		}
	}
	if o := req.Operations; o != nil {
		if o.MeetingDate != nil {
			d := o.MeetingDate.UTC()
			s.Operations.MeetingDate = &d
		}
		if o.DocumentCollection != nil {
			s.Operations.DocumentCollection = *o.DocumentCollection
		}
	}
	if l := req.Legal; l != nil && l.QueryStatus != nil {
		s.Legal.QueryStatus = *l.QueryStatus
	}
	return nil
}

type statusView struct {
	domain.AcquisitionStatus
	Stage domain.AcquisitionStage `json:"stage"`
}

func viewStatus(s domain.AcquisitionStatus) statusView {
	return statusView{AcquisitionStatus: s, Stage: s.Stage()}
}

func (s *Server) handleListAcquisition(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectAcquisition, authz.ActionRead) {
		return
	}
	statuses, err := s.svc.ListAcquisitionStatuses(r.Context(), pid)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]statusView, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, viewStatus(st))
	}
	writeJSON(w, http.StatusOK, map[string]any{"statuses": out})
}

func (s *Server) handleGetAcquisition(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectAcquisition, authz.ActionRead) {
		return
	}
	status, err := s.svc.GetAcquisitionStatus(r.Context(), pid, r.PathValue("survey"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": viewStatus(status)})
}

func (s *Server) handleSetAcquisition(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectAcquisition, authz.ActionWrite) {
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if _, err := s.svc.GetProject(r.Context(), pid); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	at := s.now()
	status, res, err := s.svc.SetAcquisitionStatus(r.Context(), pid, r.PathValue("survey"), func(st *domain.AcquisitionStatus) error {
		return req.apply(st, at)
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "status", viewStatus(status), res)
}

func (s *Server) handleStageCounts(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectAcquisition, authz.ActionRead) {
		return
	}
	counts, err := s.svc.StageCounts(r.Context(), pid)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stages": counts})
}

// handleGetChart renders the acquisition chart as CSV.
func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectAcquisition, authz.ActionRead) {
		return
	}
	if _, err := s.svc.GetProject(r.Context(), pid); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	tree, err := s.svc.Lineage(r.Context(), pid)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	statuses, err := s.svc.ListAcquisitionStatuses(r.Context(), pid)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := plotcsv.WriteChart(&buf, plotcsv.BuildChart(tree, statuses)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="acquisition.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImportChart(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectAcquisition, authz.ActionWrite) {
		return
	}
	plots, err := plotcsv.ReadChart(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		s.writeServiceError(w, r, badRequest{msg: err.Error()})
		return
	}
	report, err := s.importer.ImportChart(r.Context(), pid, plots)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"import": report})
}
