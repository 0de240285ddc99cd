package plotcsv

import (
	"encoding/csv"
	"io"
	"strings"

	"landledger/internal/core"
	"landledger/pkg/domain"
)

// LineageHeader is the column order written by WriteLineage. ReadLineage
// accepts it back.
var LineageHeader = []string{
	"id", "parent_id", "name", "relation", "gender", "age_group", "marital_status",
	"life_status", "source_of_land", "holding_pattern", "survey_number", "acres",
	"cents", "classification",
}

// FlattenLineage lists a lineage tree depth first, using record IDs as refs.
func FlattenLineage(nodes []core.LineageNode) []LineageEntry {
	var out []LineageEntry
	var walk func([]core.LineageNode)
	walk = func(ns []core.LineageNode) {
		for _, n := range ns {
			e := LineageEntry{Ref: n.ID, Person: n.Person}
			if n.ParentID != nil {
				e.ParentRef = *n.ParentID
			}
			out = append(out, e)
			walk(n.Heirs)
		}
	}
	walk(nodes)
	return out
}

// WriteLineage writes entries under LineageHeader, one row per land record
// and one row for a person without land.
func WriteLineage(w io.Writer, entries []LineageEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LineageHeader); err != nil {
		return err
	}
	for _, e := range entries {
		p := e.Person
		person := []string{
			e.Ref, e.ParentRef, p.Name, p.Relation, string(p.Gender), string(p.AgeGroup),
			string(p.MaritalStatus), string(p.LifeStatus), p.SourceOfLand, p.HoldingPattern,
		}
		if len(p.LandRecords) == 0 {
			if err := cw.Write(append(person, "", "", "", "")); err != nil {
				return err
			}
			continue
		}
		for _, rec := range p.LandRecords {
			row := append(append([]string(nil), person...), rec.SurveyNumber, rec.Acres, rec.Cents, string(rec.Classification))
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// BuildChart assembles the acquisition chart of a project: one plot per
// survey number with a status record, then survey numbers only found in land
// records. Owners are the holders' names joined with "; ".
func BuildChart(tree []core.LineageNode, statuses []domain.AcquisitionStatus) []Plot {
	type holding struct {
		owners []string
		record domain.SurveyRecord
	}
	var order []string
	holdings := make(map[string]*holding)
	for _, e := range FlattenLineage(tree) {
		for _, rec := range e.Person.LandRecords {
			key := surveyKey(rec.SurveyNumber)
			h, ok := holdings[key]
			if !ok {
				h = &holding{record: rec}
				holdings[key] = h
				order = append(order, key)
			}
			h.owners = append(h.owners, e.Person.Name)
		}
	}
	plot := func(survey string, h *holding) Plot {
		p := Plot{SurveyNumber: survey}
		if h != nil {
			p.Owner = strings.Join(h.owners, "; ")
			p.Classification = string(h.record.Classification)
			if ext, err := h.record.Extent(); err == nil {
				p.Extent = ext.String()
			}
		}
		return p
	}

	out := make([]Plot, 0, len(statuses)+len(order))
	seen := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		key := surveyKey(s.SurveyNumber)
		seen[key] = true
		p := plot(s.SurveyNumber, holdings[key])
		p.Status = PhraseFor(s)
		p.KnownStatus = true
		out = append(out, p)
	}
	for _, key := range order {
		if !seen[key] {
			h := holdings[key]
			out = append(out, plot(h.record.SurveyNumber, h))
		}
	}
	return out
}

func surveyKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
