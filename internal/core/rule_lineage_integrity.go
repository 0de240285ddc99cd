package core

import (
	"context"
	"fmt"
	"sort"

	"landledger/pkg/domain"
)

// LineageIntegrityRule keeps every touched project's lineage a forest: each
// parent exists in the same project, lists the person exactly once, and no
// person is its own ancestor.
func LineageIntegrityRule() domain.Rule {
	return lineageIntegrityRule{}
}

type lineageIntegrityRule struct{}

func (lineageIntegrityRule) Name() string { return "lineage_integrity" }

func (lineageIntegrityRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	projects := make(map[string]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityPerson {
			continue
		}
		for _, v := range []any{change.Before, change.After} {
			if p, ok := v.(domain.Person); ok {
				projects[p.ProjectID] = struct{}{}
			}
		}
	}
	ids := make([]string, 0, len(projects))
	for pid := range projects {
		ids = append(ids, pid)
	}
	sort.Strings(ids)

	for _, pid := range ids {
		persons := view.ListPersons(pid)
		index := make(map[string]domain.Person, len(persons))
		for _, p := range persons {
			index[p.ID] = p
		}
		for _, p := range persons {
			checkPerson(&res, view, index, p)
		}
	}
	return res, nil
}

func checkPerson(res *domain.Result, view domain.TransactionView, index map[string]domain.Person, p domain.Person) {
	seen := make(map[string]struct{}, len(p.HeirIDs))
	for _, heirID := range p.HeirIDs {
		if _, dup := seen[heirID]; dup {
			res.Violations = append(res.Violations, lineageViolation(p.ID, fmt.Sprintf("person %s lists heir %s more than once", p.ID, heirID)))
			continue
		}
		seen[heirID] = struct{}{}
		heir, ok := index[heirID]
		if !ok || heir.ParentID == nil || *heir.ParentID != p.ID {
			res.Violations = append(res.Violations, lineageViolation(p.ID, fmt.Sprintf("person %s lists %s which is not its heir", p.ID, heirID)))
		}
	}
	if p.IsFamilyHead() {
		return
	}
	parentID := *p.ParentID
	if parentID == p.ID {
		res.Violations = append(res.Violations, lineageViolation(p.ID, fmt.Sprintf("person %s is its own parent", p.ID)))
		return
	}
	parent, ok := index[parentID]
	if !ok {
		msg := fmt.Sprintf("person %s references missing parent %s", p.ID, parentID)
		if other, exists := view.FindPerson(parentID); exists {
			msg = fmt.Sprintf("person %s has parent %s in project %s", p.ID, parentID, other.ProjectID)
		}
		res.Violations = append(res.Violations, lineageViolation(p.ID, msg))
		return
	}
	var listed int
	for _, id := range parent.HeirIDs {
		if id == p.ID {
			listed++
		}
	}
	if listed == 0 {
		res.Violations = append(res.Violations, lineageViolation(p.ID, fmt.Sprintf("person %s missing from heirs of %s", p.ID, parentID)))
	}
	visited := map[string]struct{}{p.ID: {}}
	for cur := parent; !cur.IsFamilyHead(); {
		if _, loop := visited[cur.ID]; loop {
			res.Violations = append(res.Violations, lineageViolation(p.ID, fmt.Sprintf("person %s has a cycle in its ancestry", p.ID)))
			return
		}
		visited[cur.ID] = struct{}{}
		next, ok := index[*cur.ParentID]
		if !ok {
			return
		}
		cur = next
	}
}

func lineageViolation(personID, message string) domain.Violation {
	return domain.Violation{
		Rule:     "lineage_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityPerson,
		EntityID: personID,
	}
}
