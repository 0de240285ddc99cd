package core

import (
	"context"
	"path"
	"time"

	"github.com/shopspring/decimal"

	"landledger/pkg/domain"
)

// CreateProject persists a new project.
func (s *Service) CreateProject(ctx context.Context, project domain.Project) (domain.Project, domain.Result, error) {
	var created domain.Project
	res, err := s.run(ctx, "create_project", func(tx domain.Transaction) (string, error) {
		if err := project.Validate(); err != nil {
			return "", err
		}
		var err error
		created, err = tx.CreateProject(project)
		return created.ID, err
	})
	return created, res, err
}

// UpdateProject applies mutator to an existing project.
func (s *Service) UpdateProject(ctx context.Context, id string, mutator func(*domain.Project) error) (domain.Project, domain.Result, error) {
	var updated domain.Project
	res, err := s.run(ctx, "update_project", func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateProject(id, validated(mutator))
		return id, err
	})
	return updated, res, err
}

// DeleteProject removes the project with every record scoped to it. Blobs of
// the project's documents are removed after the commit.
func (s *Service) DeleteProject(ctx context.Context, id string) (domain.Result, error) {
	var docs []domain.Document
	res, err := s.run(ctx, "delete_project", func(tx domain.Transaction) (string, error) {
		docs = tx.Snapshot().ListDocuments(id)
		return id, tx.DeleteProject(id)
	})
	if err == nil {
		s.purgeBlobs(ctx, docs)
		s.purgePrefix(ctx, path.Join("projects", id)+"/")
		s.purgePrefix(ctx, ExportKeyPrefix(id))
	}
	return res, err
}

// GetProject returns a project by id.
func (s *Service) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var project domain.Project
	err := s.read(ctx, "get_project", func(v domain.TransactionView) error {
		var ok bool
		if project, ok = v.FindProject(id); !ok {
			return notFound(domain.EntityProject, id)
		}
		return nil
	})
	return project, err
}

// ListProjects returns all projects in creation order.
func (s *Service) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var out []domain.Project
	err := s.read(ctx, "list_projects", func(v domain.TransactionView) error {
		out = v.ListProjects()
		return nil
	})
	return out, err
}

// ProjectSummary backs the project dashboard cards.
type ProjectSummary struct {
	Project            domain.Project                  `json:"project"`
	Persons            int                             `json:"persons"`
	FamilyHeads        int                             `json:"family_heads"`
	LandRecords        int                             `json:"land_records"`
	SurveyNumbers      int                             `json:"survey_numbers"`
	TotalExtent        decimal.Decimal                 `json:"total_extent_acres"`
	Stages             map[domain.AcquisitionStage]int `json:"stages"`
	TransactionTotal   decimal.Decimal                 `json:"transaction_total"`
	FinancialTotal     decimal.Decimal                 `json:"financial_total"`
	OpenTasks          int                             `json:"open_tasks"`
	DueReminders       int                             `json:"due_reminders"`
	Documents          int                             `json:"documents"`
	UnparseableExtents int                             `json:"unparseable_extents,omitempty"`
}

// ProjectSummary aggregates the project's records as of now.
func (s *Service) ProjectSummary(ctx context.Context, projectID string) (ProjectSummary, error) {
	now := s.clock.Now()
	var sum ProjectSummary
	err := s.read(ctx, "project_summary", func(v domain.TransactionView) error {
		project, ok := v.FindProject(projectID)
		if !ok {
			return notFound(domain.EntityProject, projectID)
		}
		sum = ProjectSummary{
			Project:          project,
			TotalExtent:      decimal.Zero,
			TransactionTotal: decimal.Zero,
			FinancialTotal:   decimal.Zero,
			Stages:           stageCounts(v.ListAcquisitionStatuses(projectID)),
			Documents:        len(v.ListDocuments(projectID)),
		}
		surveys := make(map[string]struct{})
		for _, p := range v.ListPersons(projectID) {
			sum.Persons++
			if p.IsFamilyHead() {
				sum.FamilyHeads++
			}
			for _, rec := range p.LandRecords {
				sum.LandRecords++
				surveys[rec.SurveyNumber] = struct{}{}
				extent, err := rec.Extent()
				if err != nil {
					sum.UnparseableExtents++
					continue
				}
				sum.TotalExtent = sum.TotalExtent.Add(extent)
			}
		}
		sum.SurveyNumbers = len(surveys)
		for _, t := range v.ListTransactionRecords(projectID) {
			sum.TransactionTotal = sum.TransactionTotal.Add(t.Amount)
		}
		for _, t := range v.ListFinancialTransactions(projectID) {
			sum.FinancialTotal = sum.FinancialTotal.Add(t.Amount)
		}
		for _, t := range v.ListTasks(projectID, "") {
			if t.Completed {
				continue
			}
			sum.OpenTasks++
			if reminderDue(t, now) {
				sum.DueReminders++
			}
		}
		return nil
	})
	return sum, err
}

func reminderDue(t domain.Task, at time.Time) bool {
	return t.Reminder && !t.Completed && t.DueAt != nil && !t.DueAt.After(at)
}

type validator interface{ Validate() error }

// validated runs mutator and then validates the mutated record.
func validated[T any, PT interface {
	*T
	validator
}](mutator func(*T) error) func(*T) error {
	return func(v *T) error {
		if mutator != nil {
			if err := mutator(v); err != nil {
				return err
			}
		}
		return PT(v).Validate()
	}
}
