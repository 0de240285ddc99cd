package httpapi

import (
	"net/http"

	"landledger/internal/authz"
	"landledger/internal/plotcsv"
	"landledger/pkg/domain"
)

type personRequest struct {
	ParentID       *string               `json:"parent_id"`
	Name           *string               `json:"name"`
	Relation       *string               `json:"relation"`
	Gender         *domain.Gender        `json:"gender"`
	AgeGroup       *domain.AgeGroup      `json:"age_group"`
	MaritalStatus  *domain.MaritalStatus `json:"marital_status"`
	LifeStatus     *domain.LifeStatus    `json:"life_status"`
	SourceOfLand   *string               `json:"source_of_land"`
	HoldingPattern *string               `json:"holding_pattern"`
	LandRecords    []domain.SurveyRecord `json:"land_records"`
}

// apply copies the set fields. Parent and land records are not editable
// through a patch.
func (p personRequest) apply(dst *domain.Person) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&dst.Name, p.Name)
	set(&dst.Relation, p.Relation)
	set(&dst.SourceOfLand, p.SourceOfLand)
	set(&dst.HoldingPattern, p.HoldingPattern)
	if p.Gender != nil {
		dst.Gender = *p.Gender
	}
	if p.AgeGroup != nil {
		dst.AgeGroup = *p.AgeGroup
	}
	if p.MaritalStatus != nil {
		dst.MaritalStatus = *p.MaritalStatus
	}
	if p.LifeStatus != nil {
		dst.LifeStatus = *p.LifeStatus
	}
}

type landRecordRequest struct {
	SurveyNumber   *string                    `json:"survey_number"`
	Acres          *string                    `json:"acres"`
	Cents          *string                    `json:"cents"`
	Classification *domain.LandClassification `json:"classification"`
}

func (l landRecordRequest) apply(dst *domain.SurveyRecord) {
	if l.SurveyNumber != nil {
		dst.SurveyNumber = *l.SurveyNumber
	}
	if l.Acres != nil {
		dst.Acres = *l.Acres
	}
	if l.Cents != nil {
		dst.Cents = *l.Cents
	}
	if l.Classification != nil {
		dst.Classification = *l.Classification
	}
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectLineage, authz.ActionRead) {
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
	writeJSON(w, http.StatusOK, map[string]any{"lineage": tree})
}

func (s *Server) handleFamilyHeads(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectLineage, authz.ActionRead) {
		return
	}
	heads, err := s.svc.FamilyHeads(r.Context(), pid)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"family_heads": heads})
}

func (s *Server) handleImportLineage(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectLineage, authz.ActionWrite) {
		return
	}
	entries, err := plotcsv.ReadLineage(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.importer.ImportLineage(r.Context(), pid, entries)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"import": report})
}

func (s *Server) handleAddPerson(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectLineage, authz.ActionWrite) {
		return
	}
	var req personRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	person := domain.Person{LandRecords: req.LandRecords}
	req.apply(&person)

	var (
		created domain.Person
		res     domain.Result
		err     error
	)
	if req.ParentID == nil || *req.ParentID == "" {
		created, res, err = s.svc.AddFamilyHead(r.Context(), pid, person)
	} else {
		if _, ok := s.personInProject(w, r, pid, *req.ParentID); !ok {
			return
		}
		created, res, err = s.svc.AddHeir(r.Context(), *req.ParentID, person)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "person", created, res)
}

// personInProject loads a person and answers 404 when it belongs to another
// project.
func (s *Server) personInProject(w http.ResponseWriter, r *http.Request, pid, personID string) (domain.Person, bool) {
	person, err := s.svc.GetPerson(r.Context(), personID)
	if err == nil && person.ProjectID != pid {
		err = domain.NotFoundError{Entity: domain.EntityPerson, ID: personID}
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return domain.Person{}, false
	}
	return person, true
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if !s.allow(w, r, pid, authz.ObjectLineage, authz.ActionRead) {
		return
	}
	person, ok := s.personInProject(w, r, pid, r.PathValue("personID"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"person": person})
}

func (s *Server) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	pid, personID := r.PathValue("pid"), r.PathValue("personID")
	if !s.allow(w, r, pid, authz.ObjectLineage, authz.ActionWrite) {
		return
	}
	var req personRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if _, ok := s.personInProject(w, r, pid, personID); !ok {
		return
	}
	updated, res, err := s.svc.UpdatePerson(r.Context(), personID, func(p *domain.Person) error {
		req.apply(p)
		return nil
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "person", updated, res)
}

func (s *Server) handleRemovePerson(w http.ResponseWriter, r *http.Request) {
	pid, personID := r.PathValue("pid"), r.PathValue("personID")
	if !s.allow(w, r, pid, authz.ObjectLineage, authz.ActionWrite) {
		return
	}
	if _, ok := s.personInProject(w, r, pid, personID); !ok {
		return
	}
	if _, err := s.svc.RemovePerson(r.Context(), personID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddLandRecord(w http.ResponseWriter, r *http.Request) {
	pid, personID := r.PathValue("pid"), r.PathValue("personID")
	if !s.allow(w, r, pid, authz.ObjectLineage, authz.ActionWrite) {
		return
	}
	var req landRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if _, ok := s.personInProject(w, r, pid, personID); !ok {
		return
	}
	var rec domain.SurveyRecord
	req.apply(&rec)
	created, res, err := s.svc.AddLandRecord(r.Context(), personID, rec)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "land_record", created, res)
}

func (s *Server) handleUpdateLandRecord(w http.ResponseWriter, r *http.Request) {
	pid, personID := r.PathValue("pid"), r.PathValue("personID")
	if !s.allow(w, r, pid, authz.ObjectLineage, authz.ActionWrite) {
		return
	}
	var req landRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if _, ok := s.personInProject(w, r, pid, personID); !ok {
		return
	}
	updated, res, err := s.svc.UpdateLandRecord(r.Context(), personID, r.PathValue("recordID"), func(rec *domain.SurveyRecord) error {
		req.apply(rec)
		return nil
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "land_record", updated, res)
}

func (s *Server) handleRemoveLandRecord(w http.ResponseWriter, r *http.Request) {
	pid, personID := r.PathValue("pid"), r.PathValue("personID")
	if !s.allow(w, r, pid, authz.ObjectLineage, authz.ActionWrite) {
		return
	}
	if _, ok := s.personInProject(w, r, pid, personID); !ok {
		return
	}
	if _, err := s.svc.RemoveLandRecord(r.Context(), personID, r.PathValue("recordID")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
