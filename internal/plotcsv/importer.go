package plotcsv

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"landledger/internal/core"
	"landledger/pkg/domain"
)

// ImportReport summarises an import run.
type ImportReport struct {
	Persons         int                `json:"persons"`
	LandRecords     int                `json:"land_records"`
	Statuses        int                `json:"statuses"`
	LinkedRecords   int                `json:"linked_records"`
	UnknownStatuses []string           `json:"unknown_statuses,omitempty"`
	Warnings        []domain.Violation `json:"warnings,omitempty"`
}

func (r *ImportReport) warn(res domain.Result) {
	r.Warnings = append(r.Warnings, res.Violations...)
}

// Importer applies lineage and chart files to a project through the
// service, one transaction per record.
type Importer struct {
	svc *core.Service
	now func() time.Time
}

// NewImporter returns an importer writing through svc.
func NewImporter(svc *core.Service) *Importer {
	return &Importer{svc: svc, now: func() time.Time { return time.Now().UTC() }}
}

// ImportLineageCSV reads a lineage file and imports it into projectID.
func (im *Importer) ImportLineageCSV(ctx context.Context, projectID string, r io.Reader) (ImportReport, error) {
	entries, err := ReadLineage(r)
	if err != nil {
		return ImportReport{}, err
	}
	return im.ImportLineage(ctx, projectID, entries)
}

// ImportLineage creates the entries' persons in order. Entries must list
// parents before heirs, as ReadLineage returns them. The import stops at the
// first rejected person; persons already created stay.
func (im *Importer) ImportLineage(ctx context.Context, projectID string, entries []LineageEntry) (ImportReport, error) {
	var report ImportReport
	if _, err := im.svc.GetProject(ctx, projectID); err != nil {
		return report, err
	}
	ids := make(map[string]string, len(entries))
	for _, e := range entries {
		var (
			created domain.Person
			res     domain.Result
			err     error
		)
		if e.ParentRef == "" {
			created, res, err = im.svc.AddFamilyHead(ctx, projectID, e.Person)
		} else {
			parentID, ok := ids[e.ParentRef]
			if !ok {
				return report, RowError{Line: e.Line, Err: fmt.Errorf("parent %s of %s not imported", e.ParentRef, e.Ref)}
			}
			created, res, err = im.svc.AddHeir(ctx, parentID, e.Person)
		}
		if err != nil {
			return report, RowError{Line: e.Line, Err: err}
		}
		ids[e.Ref] = created.ID
		report.Persons++
		report.LandRecords += len(created.LandRecords)
		report.warn(res)
	}
	return report, nil
}

// ImportChartCSV reads an acquisition chart and imports it into projectID.
func (im *Importer) ImportChartCSV(ctx context.Context, projectID string, r io.Reader) (ImportReport, error) {
	plots, err := ReadChart(r)
	if err != nil {
		return ImportReport{}, err
	}
	return im.ImportChart(ctx, projectID, plots)
}

// ImportChart records each plot's status on its survey number's acquisition
// record. When the plot names an owner matching exactly one person of the
// project who holds no record for that survey number, the plot is also added
// to that person's land records.
func (im *Importer) ImportChart(ctx context.Context, projectID string, plots []Plot) (ImportReport, error) {
	var report ImportReport
	tree, err := im.svc.Lineage(ctx, projectID)
	if err != nil {
		return report, err
	}
	owners := ownerIndex(tree)
	at := im.now()
	for _, p := range plots {
		if p.Status != "" {
			known := true
			_, res, err := im.svc.SetAcquisitionStatus(ctx, projectID, p.SurveyNumber, func(s *domain.AcquisitionStatus) error {
				known = ApplyPlotStatus(s, p.Status, at)
				return nil
			})
			if err != nil {
				return report, fmt.Errorf("survey %s: %w", p.SurveyNumber, err)
			}
			report.Statuses++
			report.warn(res)
			if !known {
				report.UnknownStatuses = append(report.UnknownStatuses, p.SurveyNumber+": "+p.Status)
			}
		}
		person, ok := owners.match(p.Owner)
		if !ok || holds(person, p.SurveyNumber) {
			continue
		}
		rec, err := p.Record()
		if err != nil {
			return report, fmt.Errorf("survey %s: %w", p.SurveyNumber, err)
		}
		_, res, err := im.svc.AddLandRecord(ctx, person.ID, rec)
		if err != nil {
			return report, fmt.Errorf("survey %s: %w", p.SurveyNumber, err)
		}
		person.LandRecords = append(person.LandRecords, rec)
		owners.byName[normalizeName(p.Owner)][0] = person
		report.LinkedRecords++
		report.warn(res)
	}
	return report, nil
}

type ownerLookup struct {
	byName map[string][]domain.Person
}

func ownerIndex(nodes []core.LineageNode) ownerLookup {
	idx := ownerLookup{byName: make(map[string][]domain.Person)}
	var walk func([]core.LineageNode)
	walk = func(ns []core.LineageNode) {
		for _, n := range ns {
			key := normalizeName(n.Name)
			idx.byName[key] = append(idx.byName[key], n.Person)
			walk(n.Heirs)
		}
	}
	walk(nodes)
	return idx
}

func (o ownerLookup) match(owner string) (domain.Person, bool) {
	if owner == "" {
		return domain.Person{}, false
	}
	people := o.byName[normalizeName(owner)]
	if len(people) != 1 {
		return domain.Person{}, false
	}
	return people[0], true
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func holds(p domain.Person, survey string) bool {
	for _, rec := range p.LandRecords {
		if strings.EqualFold(strings.TrimSpace(rec.SurveyNumber), strings.TrimSpace(survey)) {
			return true
		}
	}
	return false
}
