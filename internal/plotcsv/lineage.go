package plotcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"landledger/pkg/domain"
)

// LineageEntry is one person read from a lineage CSV. Ref and ParentRef are
// the file's own identifiers; they are resolved to record IDs on import.
type LineageEntry struct {
	Ref       string
	ParentRef string
	Line      int
	Person    domain.Person
}

var lineageRequired = []string{"id", "name"}

var lineageAliases = map[string]string{
	"id":                  "id",
	"person_id":           "id",
	"parent_id":           "parent_id",
	"parent":              "parent_id",
	"name":                "name",
	"relation":            "relation",
	"gender":              "gender",
	"age_group":           "age_group",
	"age":                 "age_group",
	"marital":             "marital_status",
	"marital_status":      "marital_status",
	"life_status":         "life_status",
	"status":              "life_status",
	"source_of_land":      "source_of_land",
	"holding_pattern":     "holding_pattern",
	"survey_number":       "survey_number",
	"survey_no":           "survey_number",
	"acres":               "acres",
	"cents":               "cents",
	"classification":      "classification",
	"land_classification": "classification",
}

// ReadLineage reads a lineage CSV with a header row. Rows repeating an id add
// further land records to that person. Entries are returned parents first,
// otherwise in file order.
func ReadLineage(r io.Reader) ([]LineageEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("lineage csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read lineage header: %w", err)
	}
	cols := make(map[string]int)
	for i, h := range header {
		if name, ok := lineageAliases[normalizeHeader(h)]; ok {
			if _, dup := cols[name]; !dup {
				cols[name] = i
			}
		}
	}
	for _, req := range lineageRequired {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("lineage csv missing %q column", req)
		}
	}

	var (
		entries []*LineageEntry
		byRef   = make(map[string]*LineageEntry)
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read lineage: %w", err)
		}
		line, _ := cr.FieldPos(0)
		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		if isBlank(record) {
			continue
		}
		ref := get("id")
		if ref == "" {
			return nil, RowError{Line: line, Err: errors.New("id is required")}
		}
		entry, seen := byRef[ref]
		if !seen {
			person, err := lineagePerson(get)
			if err != nil {
				return nil, RowError{Line: line, Err: err}
			}
			entry = &LineageEntry{Ref: ref, ParentRef: get("parent_id"), Line: line, Person: person}
			if entry.ParentRef == ref {
				return nil, RowError{Line: line, Err: fmt.Errorf("person %s is its own parent", ref)}
			}
			byRef[ref] = entry
			entries = append(entries, entry)
		}
		if survey := get("survey_number"); survey != "" {
			rec := domain.SurveyRecord{SurveyNumber: survey, Acres: get("acres"), Cents: get("cents")}
			if label := get("classification"); label != "" {
				c, ok := domain.ParseLandClassification(label)
				if !ok {
					return nil, RowError{Line: line, Err: fmt.Errorf("unknown classification %q", label)}
				}
				rec.Classification = c
			}
			if _, err := rec.Extent(); err != nil {
				return nil, RowError{Line: line, Err: fmt.Errorf("survey %s extent: %w", survey, err)}
			}
			entry.Person.LandRecords = append(entry.Person.LandRecords, rec)
		}
	}
	return parentsFirst(entries, byRef)
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func lineagePerson(get func(string) string) (domain.Person, error) {
	p := domain.Person{
		Name:           get("name"),
		Relation:       get("relation"),
		SourceOfLand:   get("source_of_land"),
		HoldingPattern: get("holding_pattern"),
	}
	if p.Name == "" {
		return p, errors.New("name is required")
	}
	var err error
	if p.Gender, err = lookup("gender", get("gender"), genders); err != nil {
		return p, err
	}
	if p.AgeGroup, err = lookup("age group", get("age_group"), ageGroups); err != nil {
		return p, err
	}
	if p.MaritalStatus, err = lookup("marital status", get("marital_status"), maritalStatuses); err != nil {
		return p, err
	}
	if p.LifeStatus, err = lookup("life status", get("life_status"), lifeStatuses); err != nil {
		return p, err
	}
	return p, nil
}

var (
	genders = map[string]domain.Gender{
		"male":   domain.GenderMale,
		"m":      domain.GenderMale,
		"female": domain.GenderFemale,
		"f":      domain.GenderFemale,
		"other":  domain.GenderOther,
	}
	ageGroups = map[string]domain.AgeGroup{
		"minor":   domain.AgeMinor,
		"child":   domain.AgeMinor,
		"adult":   domain.AgeAdult,
		"senior":  domain.AgeSenior,
		"elderly": domain.AgeSenior,
	}
	maritalStatuses = map[string]domain.MaritalStatus{
		"single":    domain.MaritalSingle,
		"unmarried": domain.MaritalSingle,
		"married":   domain.MaritalMarried,
		"widowed":   domain.MaritalWidowed,
		"widow":     domain.MaritalWidowed,
		"widower":   domain.MaritalWidowed,
		"divorced":  domain.MaritalDivorced,
	}
	lifeStatuses = map[string]domain.LifeStatus{
		"alive":    domain.LifeAlive,
		"living":   domain.LifeAlive,
		"deceased": domain.LifeDeceased,
		"dead":     domain.LifeDeceased,
		"late":     domain.LifeDeceased,
	}
)

func lookup[T ~string](field, raw string, values map[string]T) (T, error) {
	if raw == "" {
		return "", nil
	}
	v, ok := values[strings.ToLower(raw)]
	if !ok {
		return "", fmt.Errorf("unknown %s %q", field, raw)
	}
	return v, nil
}

// parentsFirst orders entries so every parent precedes its heirs, keeping
// file order otherwise.
func parentsFirst(entries []*LineageEntry, byRef map[string]*LineageEntry) ([]LineageEntry, error) {
	for _, e := range entries {
		if e.ParentRef != "" {
			if _, ok := byRef[e.ParentRef]; !ok {
				return nil, RowError{Line: e.Line, Err: fmt.Errorf("person %s references unknown parent %s", e.Ref, e.ParentRef)}
			}
		}
	}
	out := make([]LineageEntry, 0, len(entries))
	placed := make(map[string]bool, len(entries))
	for len(out) < len(entries) {
		progress := false
		for _, e := range entries {
			if placed[e.Ref] || (e.ParentRef != "" && !placed[e.ParentRef]) {
				continue
			}
			placed[e.Ref] = true
			out = append(out, *e)
			progress = true
		}
		if !progress {
			for _, e := range entries {
				if !placed[e.Ref] {
					return nil, RowError{Line: e.Line, Err: fmt.Errorf("person %s is part of a parent cycle", e.Ref)}
				}
			}
		}
	}
	return out, nil
}
