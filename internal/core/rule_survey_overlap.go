package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"landledger/pkg/domain"
)

// SurveyOverlapRule warns when a survey number touched by the transaction is
// held by more than one person of the project.
func SurveyOverlapRule() domain.Rule {
	return surveyOverlapRule{}
}

type surveyOverlapRule struct{}

func (surveyOverlapRule) Name() string { return "survey_overlap" }

func (surveyOverlapRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	touched := make(map[string]map[string]struct{})
	for _, change := range changes {
		p, ok := change.After.(domain.Person)
		if !ok {
			continue
		}
		for _, rec := range p.LandRecords {
			if touched[p.ProjectID] == nil {
				touched[p.ProjectID] = make(map[string]struct{})
			}
			touched[p.ProjectID][normalizeSurvey(rec.SurveyNumber)] = struct{}{}
		}
	}
	projects := make([]string, 0, len(touched))
	for pid := range touched {
		projects = append(projects, pid)
	}
	sort.Strings(projects)

	for _, pid := range projects {
		holders := make(map[string][]string)
		for _, p := range view.ListPersons(pid) {
			for _, rec := range p.LandRecords {
				survey := normalizeSurvey(rec.SurveyNumber)
				if _, ok := touched[pid][survey]; !ok {
					continue
				}
				if names := holders[survey]; len(names) == 0 || names[len(names)-1] != p.ID {
					holders[survey] = append(names, p.ID)
				}
			}
		}
		surveys := make([]string, 0, len(holders))
		for survey := range holders {
			surveys = append(surveys, survey)
		}
		sort.Strings(surveys)
		for _, survey := range surveys {
			ids := holders[survey]
			if len(ids) < 2 {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "survey_overlap",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("survey %s is held by %d persons: %s", survey, len(ids), strings.Join(ids, ", ")),
				Entity:   domain.EntityPerson,
				EntityID: ids[0],
			})
		}
	}
	return res, nil
}

func normalizeSurvey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
