package memory

import (
	"errors"
	"fmt"
	"strings"

	"landledger/pkg/domain"
)

func insert[T any](tx *transaction, m map[string]T, entity domain.EntityType, v *T, base *domain.Base, clone func(T) T) (T, error) {
	if base.ID == "" {
		base.ID = newID()
	}
	if _, exists := m[base.ID]; exists {
		var zero T
		return zero, domain.ConflictError{Entity: entity, Key: base.ID}
	}
	base.CreatedAt = tx.now
	base.UpdatedAt = tx.now
	m[base.ID] = clone(*v)
	tx.recordChange(domain.Change{Entity: entity, Action: domain.ActionCreate, After: clone(*v)})
	return clone(*v), nil
}

// update runs mutator on a copy of the record. fix may enforce immutable
// fields by copying them from before.
func update[T any](tx *transaction, m map[string]T, entity domain.EntityType, id string, mutator func(*T) error,
	base func(*T) *domain.Base, clone func(T) T, fix func(before T, next *T) error) (T, error) {
	var zero T
	current, ok := m[id]
	if !ok {
		return zero, domain.NotFoundError{Entity: entity, ID: id}
	}
	before := clone(current)
	next := clone(current)
	if err := mutator(&next); err != nil {
		return zero, err
	}
	b := base(&next)
	b.ID = id
	b.CreatedAt = base(&current).CreatedAt
	b.UpdatedAt = tx.now
	if fix != nil {
		if err := fix(before, &next); err != nil {
			return zero, err
		}
	}
	m[id] = clone(next)
	tx.recordChange(domain.Change{Entity: entity, Action: domain.ActionUpdate, Before: before, After: clone(next)})
	return clone(next), nil
}

func remove[T any](tx *transaction, m map[string]T, entity domain.EntityType, id string) error {
	current, ok := m[id]
	if !ok {
		return domain.NotFoundError{Entity: entity, ID: id}
	}
	delete(m, id)
	tx.recordChange(domain.Change{Entity: entity, Action: domain.ActionDelete, Before: current})
	return nil
}

func projectFixed[T any](project func(*T) *string) func(before T, next *T) error {
	return func(before T, next *T) error {
		*project(next) = *project(&before)
		return nil
	}
}

// --- projects ---

func (tx *transaction) CreateProject(p domain.Project) (domain.Project, error) {
	return insert(tx, tx.state.projects, domain.EntityProject, &p, &p.Base, identity[domain.Project])
}

func (tx *transaction) UpdateProject(id string, mutator func(*domain.Project) error) (domain.Project, error) {
	return update(tx, tx.state.projects, domain.EntityProject, id, mutator,
		func(p *domain.Project) *domain.Base { return &p.Base }, identity[domain.Project], nil)
}

// DeleteProject removes the project with every record scoped to it and drops
// it from user assignments.
func (tx *transaction) DeleteProject(id string) error {
	if _, ok := tx.state.projects[id]; !ok {
		return domain.NotFoundError{Entity: domain.EntityProject, ID: id}
	}
	for _, p := range sortedPersons(tx.state.persons) {
		if _, live := tx.state.persons[p.ID]; live && p.ProjectID == id && p.IsFamilyHead() {
			if err := tx.DeletePerson(p.ID); err != nil {
				return err
			}
		}
	}
	// persons whose parent link is broken are not reachable from a head
	for pid, p := range tx.state.persons {
		if p.ProjectID == id {
			if err := remove(tx, tx.state.persons, domain.EntityPerson, pid); err != nil {
				return err
			}
		}
	}
	cascade(tx, tx.state.acquisition, domain.EntityAcquisitionStatus, id, func(a domain.AcquisitionStatus) string { return a.ProjectID })
	cascade(tx, tx.state.transactions, domain.EntityTransactionRecord, id, func(t domain.TransactionRecord) string { return t.ProjectID })
	cascade(tx, tx.state.financials, domain.EntityFinancialTransaction, id, func(t domain.FinancialTransaction) string { return t.ProjectID })
	cascade(tx, tx.state.notes, domain.EntityNote, id, func(n domain.Note) string { return n.ProjectID })
	cascade(tx, tx.state.tasks, domain.EntityTask, id, func(t domain.Task) string { return t.ProjectID })
	cascade(tx, tx.state.legalNotes, domain.EntityLegalNote, id, func(n domain.LegalNote) string { return n.ProjectID })
	cascade(tx, tx.state.documents, domain.EntityDocument, id, func(d domain.Document) string { return d.ProjectID })
	for uid, u := range tx.state.users {
		if !containsString(u.ProjectIDs, id) {
			continue
		}
		if _, err := tx.UpdateUser(uid, func(u *domain.User) error {
			u.ProjectIDs = removeString(u.ProjectIDs, id)
			return nil
		}); err != nil {
			return err
		}
	}
	return remove(tx, tx.state.projects, domain.EntityProject, id)
}

func cascade[T any](tx *transaction, m map[string]T, entity domain.EntityType, projectID string, projectOf func(T) string) {
	for id, v := range m {
		if projectOf(v) == projectID {
			delete(m, id)
			tx.recordChange(domain.Change{Entity: entity, Action: domain.ActionDelete, Before: v})
		}
	}
}

// --- lineage ---

func normalizeParent(p *domain.Person) {
	if p.ParentID != nil && strings.TrimSpace(*p.ParentID) == "" {
		p.ParentID = nil
	}
}

func assignLandRecordIDs(records []domain.SurveyRecord) []domain.SurveyRecord {
	out := make([]domain.SurveyRecord, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = newID()
		}
		out = append(out, rec)
	}
	return out
}

func (tx *transaction) checkParent(personID, projectID, parentID string) error {
	if parentID == personID {
		return fmt.Errorf("person %q cannot be its own parent", personID)
	}
	parent, ok := tx.state.persons[parentID]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityPerson, ID: parentID}
	}
	if parent.ProjectID != projectID {
		return fmt.Errorf("parent %q belongs to another project", parentID)
	}
	return nil
}

func (tx *transaction) setHeirs(parentID string, edit func([]string) []string) error {
	_, err := update(tx, tx.state.persons, domain.EntityPerson, parentID, func(p *domain.Person) error {
		p.HeirIDs = edit(p.HeirIDs)
		return nil
	}, func(p *domain.Person) *domain.Base { return &p.Base }, clonePerson, nil)
	return err
}

func (tx *transaction) CreatePerson(p domain.Person) (domain.Person, error) {
	normalizeParent(&p)
	if p.ID == "" {
		p.ID = newID()
	}
	if p.ParentID != nil {
		if err := tx.checkParent(p.ID, p.ProjectID, *p.ParentID); err != nil {
			return domain.Person{}, err
		}
	}
	p.HeirIDs = []string{}
	p.LandRecords = assignLandRecordIDs(p.LandRecords)
	created, err := insert(tx, tx.state.persons, domain.EntityPerson, &p, &p.Base, clonePerson)
	if err != nil {
		return domain.Person{}, err
	}
	if created.ParentID != nil {
		if err := tx.setHeirs(*created.ParentID, func(ids []string) []string { return append(ids, created.ID) }); err != nil {
			return domain.Person{}, err
		}
	}
	return created, nil
}

// UpdatePerson applies mutator. The heir list may be reordered but not
// changed; moving a person under another parent updates both heir lists.
func (tx *transaction) UpdatePerson(id string, mutator func(*domain.Person) error) (domain.Person, error) {
	var oldParent, newParent *string
	updated, err := update(tx, tx.state.persons, domain.EntityPerson, id, mutator,
		func(p *domain.Person) *domain.Base { return &p.Base }, clonePerson,
		func(before domain.Person, next *domain.Person) error {
			next.ProjectID = before.ProjectID
			normalizeParent(next)
			if !sameSet(before.HeirIDs, next.HeirIDs) {
				return errors.New("heir list can only be reordered")
			}
			next.HeirIDs = append([]string{}, next.HeirIDs...)
			next.LandRecords = assignLandRecordIDs(next.LandRecords)
			if parentOf(before) != parentOf(*next) {
				if next.ParentID != nil {
					if err := tx.checkParent(id, next.ProjectID, *next.ParentID); err != nil {
						return err
					}
				}
				oldParent, newParent = before.ParentID, next.ParentID
			}
			return nil
		})
	if err != nil {
		return domain.Person{}, err
	}
	if oldParent != nil {
		if err := tx.setHeirs(*oldParent, func(ids []string) []string { return removeString(ids, id) }); err != nil {
			return domain.Person{}, err
		}
	}
	if newParent != nil {
		if err := tx.setHeirs(*newParent, func(ids []string) []string { return append(ids, id) }); err != nil {
			return domain.Person{}, err
		}
	}
	return updated, nil
}

func parentOf(p domain.Person) string {
	if p.ParentID == nil {
		return ""
	}
	return *p.ParentID
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		if seen[v] == 0 {
			return false
		}
		seen[v]--
	}
	return true
}

// DeletePerson removes the person and every descendant and detaches the
// person from its parent.
func (tx *transaction) DeletePerson(id string) error {
	root, ok := tx.state.persons[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityPerson, ID: id}
	}
	if root.ParentID != nil {
		if _, ok := tx.state.persons[*root.ParentID]; ok {
			if err := tx.setHeirs(*root.ParentID, func(ids []string) []string { return removeString(ids, id) }); err != nil {
				return err
			}
		}
	}
	for _, pid := range tx.subtree(id) {
		if err := remove(tx, tx.state.persons, domain.EntityPerson, pid); err != nil {
			return err
		}
	}
	return nil
}

// subtree lists id and its descendants, parents before children. Both heir
// lists and parent links are followed.
func (tx *transaction) subtree(id string) []string {
	children := make(map[string][]string)
	for _, p := range sortedPersons(tx.state.persons) {
		if p.ParentID != nil {
			children[*p.ParentID] = append(children[*p.ParentID], p.ID)
		}
	}
	var out []string
	seen := map[string]bool{}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		queue = append(queue, tx.state.persons[cur].HeirIDs...)
		queue = append(queue, children[cur]...)
	}
	return out
}

// --- acquisition ---

func (tx *transaction) CreateAcquisitionStatus(a domain.AcquisitionStatus) (domain.AcquisitionStatus, error) {
	for _, existing := range tx.state.acquisition {
		if existing.ProjectID == a.ProjectID && existing.SurveyNumber == a.SurveyNumber {
			return domain.AcquisitionStatus{}, domain.ConflictError{Entity: domain.EntityAcquisitionStatus, Key: a.SurveyNumber}
		}
	}
	a.ApplyDefaults()
	return insert(tx, tx.state.acquisition, domain.EntityAcquisitionStatus, &a, &a.Base, cloneAcquisition)
}

func (tx *transaction) UpdateAcquisitionStatus(id string, mutator func(*domain.AcquisitionStatus) error) (domain.AcquisitionStatus, error) {
	return update(tx, tx.state.acquisition, domain.EntityAcquisitionStatus, id, mutator,
		func(a *domain.AcquisitionStatus) *domain.Base { return &a.Base }, cloneAcquisition,
		func(before domain.AcquisitionStatus, next *domain.AcquisitionStatus) error {
			next.ProjectID = before.ProjectID
			next.SurveyNumber = before.SurveyNumber
			next.ApplyDefaults()
			return nil
		})
}

func (tx *transaction) DeleteAcquisitionStatus(id string) error {
	return remove(tx, tx.state.acquisition, domain.EntityAcquisitionStatus, id)
}

// --- ledger ---

func (tx *transaction) CreateTransactionRecord(t domain.TransactionRecord) (domain.TransactionRecord, error) {
	return insert(tx, tx.state.transactions, domain.EntityTransactionRecord, &t, &t.Base, identity[domain.TransactionRecord])
}

func (tx *transaction) UpdateTransactionRecord(id string, mutator func(*domain.TransactionRecord) error) (domain.TransactionRecord, error) {
	return update(tx, tx.state.transactions, domain.EntityTransactionRecord, id, mutator,
		func(t *domain.TransactionRecord) *domain.Base { return &t.Base }, identity[domain.TransactionRecord], nil)
}

func (tx *transaction) DeleteTransactionRecord(id string) error {
	return remove(tx, tx.state.transactions, domain.EntityTransactionRecord, id)
}

func (tx *transaction) CreateFinancialTransaction(t domain.FinancialTransaction) (domain.FinancialTransaction, error) {
	if t.PaidOn.IsZero() {
		t.PaidOn = tx.now
	}
	return insert(tx, tx.state.financials, domain.EntityFinancialTransaction, &t, &t.Base, identity[domain.FinancialTransaction])
}

func (tx *transaction) UpdateFinancialTransaction(id string, mutator func(*domain.FinancialTransaction) error) (domain.FinancialTransaction, error) {
	return update(tx, tx.state.financials, domain.EntityFinancialTransaction, id, mutator,
		func(t *domain.FinancialTransaction) *domain.Base { return &t.Base }, identity[domain.FinancialTransaction], nil)
}

func (tx *transaction) DeleteFinancialTransaction(id string) error {
	return remove(tx, tx.state.financials, domain.EntityFinancialTransaction, id)
}

// --- notes, tasks, legal notes ---

func (tx *transaction) CreateNote(n domain.Note) (domain.Note, error) {
	return insert(tx, tx.state.notes, domain.EntityNote, &n, &n.Base, identity[domain.Note])
}

func (tx *transaction) UpdateNote(id string, mutator func(*domain.Note) error) (domain.Note, error) {
	return update(tx, tx.state.notes, domain.EntityNote, id, mutator,
		func(n *domain.Note) *domain.Base { return &n.Base }, identity[domain.Note],
		projectFixed(func(n *domain.Note) *string { return &n.ProjectID }))
}

func (tx *transaction) DeleteNote(id string) error {
	return remove(tx, tx.state.notes, domain.EntityNote, id)
}

func (tx *transaction) CreateTask(t domain.Task) (domain.Task, error) {
	return insert(tx, tx.state.tasks, domain.EntityTask, &t, &t.Base, cloneTask)
}

func (tx *transaction) UpdateTask(id string, mutator func(*domain.Task) error) (domain.Task, error) {
	return update(tx, tx.state.tasks, domain.EntityTask, id, mutator,
		func(t *domain.Task) *domain.Base { return &t.Base }, cloneTask,
		projectFixed(func(t *domain.Task) *string { return &t.ProjectID }))
}

func (tx *transaction) DeleteTask(id string) error {
	return remove(tx, tx.state.tasks, domain.EntityTask, id)
}

func (tx *transaction) CreateLegalNote(n domain.LegalNote) (domain.LegalNote, error) {
	return insert(tx, tx.state.legalNotes, domain.EntityLegalNote, &n, &n.Base, identity[domain.LegalNote])
}

func (tx *transaction) UpdateLegalNote(id string, mutator func(*domain.LegalNote) error) (domain.LegalNote, error) {
	return update(tx, tx.state.legalNotes, domain.EntityLegalNote, id, mutator,
		func(n *domain.LegalNote) *domain.Base { return &n.Base }, identity[domain.LegalNote],
		projectFixed(func(n *domain.LegalNote) *string { return &n.ProjectID }))
}

func (tx *transaction) DeleteLegalNote(id string) error {
	return remove(tx, tx.state.legalNotes, domain.EntityLegalNote, id)
}

// --- users ---

func (tx *transaction) checkEmail(id, email string) error {
	for _, u := range tx.state.users {
		if u.ID != id && strings.EqualFold(u.Email, email) {
			return domain.ConflictError{Entity: domain.EntityUser, Key: email}
		}
	}
	return nil
}

func normalizeUser(u *domain.User) {
	u.Email = strings.TrimSpace(u.Email)
	u.ProjectIDs = dedupeStrings(u.ProjectIDs)
	if u.Status == "" {
		u.Status = domain.UserActive
	}
}

func (tx *transaction) CreateUser(u domain.User) (domain.User, error) {
	normalizeUser(&u)
	if err := tx.checkEmail(u.ID, u.Email); err != nil {
		return domain.User{}, err
	}
	return insert(tx, tx.state.users, domain.EntityUser, &u, &u.Base, cloneUser)
}

func (tx *transaction) UpdateUser(id string, mutator func(*domain.User) error) (domain.User, error) {
	return update(tx, tx.state.users, domain.EntityUser, id, mutator,
		func(u *domain.User) *domain.Base { return &u.Base }, cloneUser,
		func(_ domain.User, next *domain.User) error {
			normalizeUser(next)
			return tx.checkEmail(id, next.Email)
		})
}

func (tx *transaction) DeleteUser(id string) error {
	return remove(tx, tx.state.users, domain.EntityUser, id)
}

// --- documents ---

func (tx *transaction) CreateDocument(d domain.Document) (domain.Document, error) {
	return insert(tx, tx.state.documents, domain.EntityDocument, &d, &d.Base, identity[domain.Document])
}

func (tx *transaction) DeleteDocument(id string) error {
	return remove(tx, tx.state.documents, domain.EntityDocument, id)
}
