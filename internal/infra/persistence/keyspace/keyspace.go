// Package keyspace maps a store snapshot onto named storage keys, one JSON
// document per key. Per-project collections live under "projects/<id>/";
// notes, tasks and legal notes are further split per survey number.
package keyspace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"landledger/internal/infra/persistence/memory"
	"landledger/pkg/domain"
)

// Fixed keys.
const (
	KeyVersion  = "meta/version"
	KeyProjects = "projects"
	KeyUsers    = "users"
)

// Per-project key suffixes.
const (
	suffixLineage     = "lineage"
	suffixAcquisition = "acquisition"
	suffixLedger      = "transactions"
	suffixFinancials  = "financial-transactions"
	suffixDocuments   = "documents"
	suffixNotes       = "notes"
	suffixTasks       = "tasks"
	suffixLegalNotes  = "legal-notes"
)

// ProjectKey returns the key of a per-project collection.
func ProjectKey(projectID, suffix string) string {
	return "projects/" + url.PathEscape(projectID) + "/" + suffix
}

// SurveyKey returns the key of a per-survey collection.
func SurveyKey(projectID, surveyNumber, suffix string) string {
	return "projects/" + url.PathEscape(projectID) + "/surveys/" + url.PathEscape(surveyNumber) + "/" + suffix
}

// LineageNode is the stored form of a person: the person with its heirs
// nested in order.
type LineageNode struct {
	domain.Person
	Heirs []LineageNode `json:"heirs"`
}

// Encode renders a snapshot as key → JSON document. Output is deterministic
// so unchanged collections encode to identical bytes.
func Encode(s memory.Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte)
	put := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("keyspace: encode %s: %w", key, err)
		}
		out[key] = b
		return nil
	}
	version := s.Version
	if version == "" {
		version = domain.SchemaVersion
	}
	if err := put(KeyVersion, version); err != nil {
		return nil, err
	}
	if err := put(KeyProjects, sortedValues(s.Projects, func(p domain.Project) domain.Base { return p.Base })); err != nil {
		return nil, err
	}
	if err := put(KeyUsers, sortedValues(s.Users, func(u domain.User) domain.Base { return u.Base })); err != nil {
		return nil, err
	}

	for pid, tree := range LineageTrees(s.Persons) {
		if err := put(ProjectKey(pid, suffixLineage), tree); err != nil {
			return nil, err
		}
	}
	acquisition := make(map[string]map[string]domain.AcquisitionStatus)
	for _, a := range s.Acquisition {
		if acquisition[a.ProjectID] == nil {
			acquisition[a.ProjectID] = make(map[string]domain.AcquisitionStatus)
		}
		acquisition[a.ProjectID][a.SurveyNumber] = a
	}
	for pid, bySurvey := range acquisition {
		if err := put(ProjectKey(pid, suffixAcquisition), bySurvey); err != nil {
			return nil, err
		}
	}
	if err := putGrouped(put, s.Transactions, func(t domain.TransactionRecord) (string, domain.Base) { return ProjectKey(t.ProjectID, suffixLedger), t.Base }); err != nil {
		return nil, err
	}
	if err := putGrouped(put, s.Financials, func(t domain.FinancialTransaction) (string, domain.Base) {
		return ProjectKey(t.ProjectID, suffixFinancials), t.Base
	}); err != nil {
		return nil, err
	}
	if err := putGrouped(put, s.Documents, func(d domain.Document) (string, domain.Base) { return ProjectKey(d.ProjectID, suffixDocuments), d.Base }); err != nil {
		return nil, err
	}
	if err := putGrouped(put, s.Notes, func(n domain.Note) (string, domain.Base) {
		return SurveyKey(n.ProjectID, n.SurveyNumber, suffixNotes), n.Base
	}); err != nil {
		return nil, err
	}
	if err := putGrouped(put, s.Tasks, func(t domain.Task) (string, domain.Base) {
		return SurveyKey(t.ProjectID, t.SurveyNumber, suffixTasks), t.Base
	}); err != nil {
		return nil, err
	}
	if err := putGrouped(put, s.LegalNotes, func(n domain.LegalNote) (string, domain.Base) {
		return SurveyKey(n.ProjectID, n.SurveyNumber, suffixLegalNotes), n.Base
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func putGrouped[T any](put func(string, any) error, m map[string]T, keyOf func(T) (string, domain.Base)) error {
	groups := make(map[string]map[string]T)
	for id, v := range m {
		key, _ := keyOf(v)
		if groups[key] == nil {
			groups[key] = make(map[string]T)
		}
		groups[key][id] = v
	}
	for key, group := range groups {
		if err := put(key, sortedValues(group, func(v T) domain.Base { _, b := keyOf(v); return b })); err != nil {
			return err
		}
	}
	return nil
}

func sortedValues[T any](m map[string]T, base func(T) domain.Base) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := base(out[i]), base(out[j])
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// LineageTrees nests persons under their parents, grouped by project. Family
// heads are ordered by creation, heirs by their parent's heir list.
func LineageTrees(persons map[string]domain.Person) map[string][]LineageNode {
	heads := make(map[string][]domain.Person)
	for _, p := range sortedValues(persons, func(p domain.Person) domain.Base { return p.Base }) {
		if p.IsFamilyHead() {
			heads[p.ProjectID] = append(heads[p.ProjectID], p)
		}
	}
	out := make(map[string][]LineageNode, len(heads))
	for pid, roots := range heads {
		nodes := make([]LineageNode, 0, len(roots))
		for _, root := range roots {
			nodes = append(nodes, buildNode(root, persons, map[string]bool{}))
		}
		out[pid] = nodes
	}
	return out
}

func buildNode(p domain.Person, persons map[string]domain.Person, seen map[string]bool) LineageNode {
	seen[p.ID] = true
	node := LineageNode{Person: p, Heirs: []LineageNode{}}
	for _, id := range p.HeirIDs {
		heir, ok := persons[id]
		if !ok || seen[id] {
			continue
		}
		node.Heirs = append(node.Heirs, buildNode(heir, persons, seen))
	}
	return node
}

func flattenNode(node LineageNode, parentID *string, out map[string]domain.Person) {
	p := node.Person
	p.ParentID = parentID
	p.HeirIDs = make([]string, 0, len(node.Heirs))
	for _, heir := range node.Heirs {
		p.HeirIDs = append(p.HeirIDs, heir.ID)
	}
	if p.LandRecords == nil {
		p.LandRecords = []domain.SurveyRecord{}
	}
	out[p.ID] = p
	id := p.ID
	for _, heir := range node.Heirs {
		flattenNode(heir, &id, out)
	}
}

// Decode rebuilds a snapshot from stored documents. An empty key set decodes
// to an empty snapshot at the current schema version; unknown keys are
// ignored.
func Decode(docs map[string][]byte) (memory.Snapshot, error) {
	snap := memory.NewSnapshot()
	if len(docs) == 0 {
		return snap, nil
	}
	snap.Version = ""
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := decodeKey(&snap, key, docs[key]); err != nil {
			return memory.Snapshot{}, fmt.Errorf("keyspace: decode %s: %w", key, err)
		}
	}
	return snap, nil
}

func decodeKey(snap *memory.Snapshot, key string, raw []byte) error {
	switch key {
	case KeyVersion:
		return json.Unmarshal(raw, &snap.Version)
	case KeyProjects:
		return decodeList(raw, snap.Projects, func(p domain.Project) string { return p.ID })
	case KeyUsers:
		return decodeList(raw, snap.Users, func(u domain.User) string { return u.ID })
	}
	parts := strings.Split(key, "/")
	if len(parts) < 3 || parts[0] != "projects" {
		return nil
	}
	if len(parts) == 5 && parts[2] == "surveys" {
		switch parts[4] {
		case suffixNotes:
			return decodeList(raw, snap.Notes, func(n domain.Note) string { return n.ID })
		case suffixTasks:
			return decodeList(raw, snap.Tasks, func(t domain.Task) string { return t.ID })
		case suffixLegalNotes:
			return decodeList(raw, snap.LegalNotes, func(n domain.LegalNote) string { return n.ID })
		}
		return nil
	}
	if len(parts) != 3 {
		return nil
	}
	switch parts[2] {
	case suffixLineage:
		var roots []LineageNode
		if err := json.Unmarshal(raw, &roots); err != nil {
			return err
		}
		for _, root := range roots {
			flattenNode(root, nil, snap.Persons)
		}
	case suffixAcquisition:
		var bySurvey map[string]domain.AcquisitionStatus
		if err := json.Unmarshal(raw, &bySurvey); err != nil {
			return err
		}
		for _, a := range bySurvey {
			snap.Acquisition[a.ID] = a
		}
	case suffixLedger:
		return decodeList(raw, snap.Transactions, func(t domain.TransactionRecord) string { return t.ID })
	case suffixFinancials:
		return decodeList(raw, snap.Financials, func(t domain.FinancialTransaction) string { return t.ID })
	case suffixDocuments:
		return decodeList(raw, snap.Documents, func(d domain.Document) string { return d.ID })
	}
	return nil
}

func decodeList[T any](raw []byte, into map[string]T, id func(T) string) error {
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return err
	}
	for _, item := range items {
		into[id(item)] = item
	}
	return nil
}

// Diff compares two encodings and returns the documents to write and the
// keys to remove.
func Diff(prev, next map[string][]byte) (map[string][]byte, []string) {
	upserts := make(map[string][]byte)
	for k, v := range next {
		if old, ok := prev[k]; !ok || !bytes.Equal(old, v) {
			upserts[k] = v
		}
	}
	var deletes []string
	for k := range prev {
		if _, ok := next[k]; !ok {
			deletes = append(deletes, k)
		}
	}
	sort.Strings(deletes)
	return upserts, deletes
}
