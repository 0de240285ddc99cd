package core

import (
	"context"
	"fmt"

	"landledger/pkg/domain"
)

// ProjectScopeRule blocks records that reference a project which does not
// exist once the transaction completes.
func ProjectScopeRule() domain.Rule {
	return projectScopeRule{}
}

type projectScopeRule struct{}

func (projectScopeRule) Name() string { return "project_scope" }

func (projectScopeRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.After == nil {
			continue
		}
		entityID, projectIDs, alive := scopedRecord(view, change.After)
		if !alive {
			continue
		}
		for _, pid := range projectIDs {
			if _, ok := view.FindProject(pid); ok {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "project_scope",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s %s references missing project %q", change.Entity, entityID, pid),
				Entity:   change.Entity,
				EntityID: entityID,
			})
		}
	}
	return res, nil
}

// scopedRecord returns the committed version's project references. Records
// deleted later in the same transaction report alive=false.
func scopedRecord(view domain.TransactionView, after any) (id string, projectIDs []string, alive bool) {
	switch v := after.(type) {
	case domain.Person:
		cur, ok := view.FindPerson(v.ID)
		return v.ID, []string{cur.ProjectID}, ok
	case domain.AcquisitionStatus:
		cur, ok := view.FindAcquisitionStatus(v.ID)
		return v.ID, []string{cur.ProjectID}, ok
	case domain.Note:
		cur, ok := view.FindNote(v.ID)
		return v.ID, []string{cur.ProjectID}, ok
	case domain.Task:
		cur, ok := view.FindTask(v.ID)
		return v.ID, []string{cur.ProjectID}, ok
	case domain.LegalNote:
		cur, ok := view.FindLegalNote(v.ID)
		return v.ID, []string{cur.ProjectID}, ok
	case domain.Document:
		cur, ok := view.FindDocument(v.ID)
		return v.ID, []string{cur.ProjectID}, ok
	case domain.User:
		cur, ok := view.FindUser(v.ID)
		return v.ID, cur.ProjectIDs, ok
	case domain.TransactionRecord:
		return v.ID, []string{v.ProjectID}, ledgerRecordAlive(view.ListTransactionRecords(v.ProjectID), v.ID)
	case domain.FinancialTransaction:
		return v.ID, []string{v.ProjectID}, financialRecordAlive(view.ListFinancialTransactions(v.ProjectID), v.ID)
	}
	return "", nil, false
}

func ledgerRecordAlive(records []domain.TransactionRecord, id string) bool {
	for _, r := range records {
		if r.ID == id {
			return true
		}
	}
	return false
}

func financialRecordAlive(records []domain.FinancialTransaction, id string) bool {
	for _, r := range records {
		if r.ID == id {
			return true
		}
	}
	return false
}
