package memory

import (
	"sort"

	"landledger/pkg/domain"
)

type memoryState struct {
	projects     map[string]domain.Project
	persons      map[string]domain.Person
	acquisition  map[string]domain.AcquisitionStatus
	transactions map[string]domain.TransactionRecord
	financials   map[string]domain.FinancialTransaction
	notes        map[string]domain.Note
	tasks        map[string]domain.Task
	legalNotes   map[string]domain.LegalNote
	users        map[string]domain.User
	documents    map[string]domain.Document
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Version      string                                 `json:"version"`
	Projects     map[string]domain.Project              `json:"projects"`
	Persons      map[string]domain.Person               `json:"persons"`
	Acquisition  map[string]domain.AcquisitionStatus    `json:"acquisition"`
	Transactions map[string]domain.TransactionRecord    `json:"transactions"`
	Financials   map[string]domain.FinancialTransaction `json:"financial_transactions"`
	Notes        map[string]domain.Note                 `json:"notes"`
	Tasks        map[string]domain.Task                 `json:"tasks"`
	LegalNotes   map[string]domain.LegalNote            `json:"legal_notes"`
	Users        map[string]domain.User                 `json:"users"`
	Documents    map[string]domain.Document             `json:"documents"`
}

// NewSnapshot returns an empty snapshot tagged with the current schema version.
func NewSnapshot() Snapshot {
	return snapshotFromMemoryState(newMemoryState())
}

func newMemoryState() memoryState {
	return memoryState{
		projects:     make(map[string]domain.Project),
		persons:      make(map[string]domain.Person),
		acquisition:  make(map[string]domain.AcquisitionStatus),
		transactions: make(map[string]domain.TransactionRecord),
		financials:   make(map[string]domain.FinancialTransaction),
		notes:        make(map[string]domain.Note),
		tasks:        make(map[string]domain.Task),
		legalNotes:   make(map[string]domain.LegalNote),
		users:        make(map[string]domain.User),
		documents:    make(map[string]domain.Document),
	}
}

func cloneMap[T any](in map[string]T, clone func(T) T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		out[k] = clone(v)
	}
	return out
}

func identity[T any](v T) T { return v }

func (s memoryState) clone() memoryState {
	return memoryState{
		projects:     cloneMap(s.projects, identity[domain.Project]),
		persons:      cloneMap(s.persons, clonePerson),
		acquisition:  cloneMap(s.acquisition, cloneAcquisition),
		transactions: cloneMap(s.transactions, identity[domain.TransactionRecord]),
		financials:   cloneMap(s.financials, identity[domain.FinancialTransaction]),
		notes:        cloneMap(s.notes, identity[domain.Note]),
		tasks:        cloneMap(s.tasks, cloneTask),
		legalNotes:   cloneMap(s.legalNotes, identity[domain.LegalNote]),
		users:        cloneMap(s.users, cloneUser),
		documents:    cloneMap(s.documents, identity[domain.Document]),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		Version:      domain.SchemaVersion,
		Projects:     c.projects,
		Persons:      c.persons,
		Acquisition:  c.acquisition,
		Transactions: c.transactions,
		Financials:   c.financials,
		Notes:        c.notes,
		Tasks:        c.tasks,
		LegalNotes:   c.legalNotes,
		Users:        c.users,
		Documents:    c.documents,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	return memoryState{
		projects:     cloneMap(s.Projects, identity[domain.Project]),
		persons:      cloneMap(s.Persons, clonePerson),
		acquisition:  cloneMap(s.Acquisition, cloneAcquisition),
		transactions: cloneMap(s.Transactions, identity[domain.TransactionRecord]),
		financials:   cloneMap(s.Financials, identity[domain.FinancialTransaction]),
		notes:        cloneMap(s.Notes, identity[domain.Note]),
		tasks:        cloneMap(s.Tasks, cloneTask),
		legalNotes:   cloneMap(s.LegalNotes, identity[domain.LegalNote]),
		users:        cloneMap(s.Users, cloneUser),
		documents:    cloneMap(s.Documents, identity[domain.Document]),
	}
}

// migrateSnapshot discards snapshots written under another schema version and
// repairs dangling references in the rest.
func migrateSnapshot(snapshot Snapshot) (Snapshot, bool) {
	if snapshot.Version != domain.SchemaVersion {
		return NewSnapshot(), true
	}
	state := memoryStateFromSnapshot(snapshot)

	projectExists := func(id string) bool {
		_, ok := state.projects[id]
		return ok
	}
	for id, p := range state.persons {
		if !projectExists(p.ProjectID) {
			delete(state.persons, id)
		}
	}
	for id, p := range state.persons {
		if p.ParentID != nil {
			parent, ok := state.persons[*p.ParentID]
			if !ok || parent.ProjectID != p.ProjectID || *p.ParentID == id {
				p.ParentID = nil
			}
		}
		p.HeirIDs, _ = filterIDs(p.HeirIDs, func(heirID string) bool {
			heir, ok := state.persons[heirID]
			return ok && heir.ParentID != nil && *heir.ParentID == id
		})
		if p.LandRecords == nil {
			p.LandRecords = []domain.SurveyRecord{}
		}
		state.persons[id] = p
	}
	// heirs missing from their parent's list are appended in creation order
	for _, p := range sortedPersons(state.persons) {
		if p.ParentID == nil {
			continue
		}
		parent := state.persons[*p.ParentID]
		if !containsString(parent.HeirIDs, p.ID) {
			parent.HeirIDs = append(parent.HeirIDs, p.ID)
			state.persons[parent.ID] = parent
		}
	}
	for id, a := range state.acquisition {
		if !projectExists(a.ProjectID) {
			delete(state.acquisition, id)
			continue
		}
		a.ApplyDefaults()
		state.acquisition[id] = a
	}
	dropOrphans(state.transactions, projectExists, func(t domain.TransactionRecord) string { return t.ProjectID })
	dropOrphans(state.financials, projectExists, func(t domain.FinancialTransaction) string { return t.ProjectID })
	dropOrphans(state.notes, projectExists, func(n domain.Note) string { return n.ProjectID })
	dropOrphans(state.tasks, projectExists, func(t domain.Task) string { return t.ProjectID })
	dropOrphans(state.legalNotes, projectExists, func(n domain.LegalNote) string { return n.ProjectID })
	dropOrphans(state.documents, projectExists, func(d domain.Document) string { return d.ProjectID })
	for id, u := range state.users {
		u.ProjectIDs, _ = filterIDs(u.ProjectIDs, projectExists)
		if u.ProjectIDs == nil {
			u.ProjectIDs = []string{}
		}
		if u.Status == "" {
			u.Status = domain.UserActive
		}
		state.users[id] = u
	}
	return snapshotFromMemoryState(state), false
}

func dropOrphans[T any](m map[string]T, exists func(string) bool, projectOf func(T) string) {
	for id, v := range m {
		if !exists(projectOf(v)) {
			delete(m, id)
		}
	}
}

func clonePerson(p domain.Person) domain.Person {
	if p.ParentID != nil {
		parent := *p.ParentID
		p.ParentID = &parent
	}
	p.LandRecords = append([]domain.SurveyRecord{}, p.LandRecords...)
	p.HeirIDs = append([]string{}, p.HeirIDs...)
	return p
}

func cloneAcquisition(a domain.AcquisitionStatus) domain.AcquisitionStatus {
	if a.Operations.MeetingDate != nil {
		t := *a.Operations.MeetingDate
		a.Operations.MeetingDate = &t
	}
	return a
}

func cloneTask(t domain.Task) domain.Task {
	if t.DueAt != nil {
		due := *t.DueAt
		t.DueAt = &due
	}
	return t
}

func cloneUser(u domain.User) domain.User {
	u.ProjectIDs = append([]string{}, u.ProjectIDs...)
	return u
}

func containsString(values []string, id string) bool {
	for _, existing := range values {
		if existing == id {
			return true
		}
	}
	return false
}

func removeString(values []string, id string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func dedupeStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func filterIDs(values []string, exists func(string) bool) ([]string, bool) {
	if len(values) == 0 {
		return []string{}, false
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	changed := false
	for _, v := range values {
		if _, ok := seen[v]; ok {
			changed = true
			continue
		}
		seen[v] = struct{}{}
		if !exists(v) {
			changed = true
			continue
		}
		out = append(out, v)
	}
	return out, changed
}

func sortedPersons(m map[string]domain.Person) []domain.Person {
	out := make([]domain.Person, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sortByCreation(out, func(p domain.Person) domain.Base { return p.Base })
	return out
}

func sortByCreation[T any](items []T, base func(T) domain.Base) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := base(items[i]), base(items[j])
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
