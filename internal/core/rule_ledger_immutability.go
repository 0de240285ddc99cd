package core

import (
	"context"
	"fmt"

	"landledger/pkg/domain"
)

// LedgerImmutabilityRule blocks edits and deletes of recorded transactions.
// Deletes are allowed only as part of removing the whole project.
func LedgerImmutabilityRule() domain.Rule {
	return ledgerImmutabilityRule{}
}

type ledgerImmutabilityRule struct{}

func (ledgerImmutabilityRule) Name() string { return "ledger_immutability" }

func (ledgerImmutabilityRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		var id, projectID string
		switch v := change.Before.(type) {
		case domain.TransactionRecord:
			id, projectID = v.ID, v.ProjectID
		case domain.FinancialTransaction:
			id, projectID = v.ID, v.ProjectID
		default:
			continue
		}
		switch change.Action {
		case domain.ActionUpdate:
		case domain.ActionDelete:
			if _, ok := view.FindProject(projectID); !ok {
				continue
			}
		default:
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "ledger_immutability",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("%s %s is immutable and cannot be %sd", change.Entity, id, change.Action),
			Entity:   change.Entity,
			EntityID: id,
		})
	}
	return res, nil
}
