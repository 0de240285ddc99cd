package core

import (
	"context"

	"landledger/pkg/domain"
)

// SetAcquisitionStatus applies mutator to the status of a survey number,
// creating the status with defaults when the survey has none yet.
func (s *Service) SetAcquisitionStatus(ctx context.Context, projectID, surveyNumber string, mutator func(*domain.AcquisitionStatus) error) (domain.AcquisitionStatus, domain.Result, error) {
	var saved domain.AcquisitionStatus
	res, err := s.run(ctx, "set_acquisition_status", func(tx domain.Transaction) (string, error) {
		if current, ok := tx.Snapshot().FindAcquisitionStatusBySurvey(projectID, surveyNumber); ok {
			var err error
			saved, err = tx.UpdateAcquisitionStatus(current.ID, validated(mutator))
			return current.ID, err
		}
		status := domain.AcquisitionStatus{ProjectID: projectID, SurveyNumber: surveyNumber}
		status.ApplyDefaults()
		if mutator != nil {
			if err := mutator(&status); err != nil {
				return "", err
			}
		}
		status.ProjectID, status.SurveyNumber = projectID, surveyNumber
		if err := status.Validate(); err != nil {
			return "", err
		}
		var err error
		saved, err = tx.CreateAcquisitionStatus(status)
		return saved.ID, err
	})
	return saved, res, err
}

// GetAcquisitionStatus returns the status of a survey number.
func (s *Service) GetAcquisitionStatus(ctx context.Context, projectID, surveyNumber string) (domain.AcquisitionStatus, error) {
	var status domain.AcquisitionStatus
	err := s.read(ctx, "get_acquisition_status", func(v domain.TransactionView) error {
		var ok bool
		if status, ok = v.FindAcquisitionStatusBySurvey(projectID, surveyNumber); !ok {
			return notFound(domain.EntityAcquisitionStatus, projectID+"/"+surveyNumber)
		}
		return nil
	})
	return status, err
}

// ListAcquisitionStatuses returns the project's statuses ordered by survey number.
func (s *Service) ListAcquisitionStatuses(ctx context.Context, projectID string) ([]domain.AcquisitionStatus, error) {
	var out []domain.AcquisitionStatus
	err := s.read(ctx, "list_acquisition_statuses", func(v domain.TransactionView) error {
		out = v.ListAcquisitionStatuses(projectID)
		return nil
	})
	return out, err
}

// StageCounts counts the project's survey numbers per acquisition stage.
// Every stage is present in the result.
func (s *Service) StageCounts(ctx context.Context, projectID string) (map[domain.AcquisitionStage]int, error) {
	var counts map[domain.AcquisitionStage]int
	err := s.read(ctx, "stage_counts", func(v domain.TransactionView) error {
		counts = stageCounts(v.ListAcquisitionStatuses(projectID))
		return nil
	})
	return counts, err
}

func stageCounts(statuses []domain.AcquisitionStatus) map[domain.AcquisitionStage]int {
	counts := make(map[domain.AcquisitionStage]int, len(domain.AcquisitionStages))
	for _, stage := range domain.AcquisitionStages {
		counts[stage] = 0
	}
	for _, st := range statuses {
		counts[st.Stage()]++
	}
	return counts
}
