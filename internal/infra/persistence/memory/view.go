package memory

import (
	"sort"

	"landledger/pkg/domain"
)

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) domain.TransactionView {
	return transactionView{state: state}
}

func listWhere[T any](m map[string]T, keep func(T) bool, clone func(T) T, base func(T) domain.Base) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep(v) {
			out = append(out, clone(v))
		}
	}
	sortByCreation(out, base)
	return out
}

func find[T any](m map[string]T, id string, clone func(T) T) (T, bool) {
	v, ok := m[id]
	if !ok {
		var zero T
		return zero, false
	}
	return clone(v), true
}

func matches(filter, value string) bool {
	return filter == "" || filter == value
}

func (v transactionView) ListProjects() []domain.Project {
	return listWhere(v.state.projects, func(domain.Project) bool { return true }, identity[domain.Project],
		func(p domain.Project) domain.Base { return p.Base })
}

func (v transactionView) FindProject(id string) (domain.Project, bool) {
	return find(v.state.projects, id, identity[domain.Project])
}

func (v transactionView) ListPersons(projectID string) []domain.Person {
	return listWhere(v.state.persons, func(p domain.Person) bool { return matches(projectID, p.ProjectID) }, clonePerson,
		func(p domain.Person) domain.Base { return p.Base })
}

func (v transactionView) FindPerson(id string) (domain.Person, bool) {
	return find(v.state.persons, id, clonePerson)
}

// ListAcquisitionStatuses orders statuses by survey number.
func (v transactionView) ListAcquisitionStatuses(projectID string) []domain.AcquisitionStatus {
	out := listWhere(v.state.acquisition, func(a domain.AcquisitionStatus) bool { return matches(projectID, a.ProjectID) },
		cloneAcquisition, func(a domain.AcquisitionStatus) domain.Base { return a.Base })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProjectID != out[j].ProjectID {
			return out[i].ProjectID < out[j].ProjectID
		}
		return out[i].SurveyNumber < out[j].SurveyNumber
	})
	return out
}

func (v transactionView) FindAcquisitionStatus(id string) (domain.AcquisitionStatus, bool) {
	return find(v.state.acquisition, id, cloneAcquisition)
}

func (v transactionView) FindAcquisitionStatusBySurvey(projectID, surveyNumber string) (domain.AcquisitionStatus, bool) {
	for _, a := range v.state.acquisition {
		if a.ProjectID == projectID && a.SurveyNumber == surveyNumber {
			return cloneAcquisition(a), true
		}
	}
	return domain.AcquisitionStatus{}, false
}

func (v transactionView) ListTransactionRecords(projectID string) []domain.TransactionRecord {
	return listWhere(v.state.transactions, func(t domain.TransactionRecord) bool { return matches(projectID, t.ProjectID) },
		identity[domain.TransactionRecord], func(t domain.TransactionRecord) domain.Base { return t.Base })
}

func (v transactionView) ListFinancialTransactions(projectID string) []domain.FinancialTransaction {
	return listWhere(v.state.financials, func(t domain.FinancialTransaction) bool { return matches(projectID, t.ProjectID) },
		identity[domain.FinancialTransaction], func(t domain.FinancialTransaction) domain.Base { return t.Base })
}

func (v transactionView) ListNotes(projectID, surveyNumber string) []domain.Note {
	return listWhere(v.state.notes, func(n domain.Note) bool {
		return matches(projectID, n.ProjectID) && matches(surveyNumber, n.SurveyNumber)
	}, identity[domain.Note], func(n domain.Note) domain.Base { return n.Base })
}

func (v transactionView) FindNote(id string) (domain.Note, bool) {
	return find(v.state.notes, id, identity[domain.Note])
}

func (v transactionView) ListTasks(projectID, surveyNumber string) []domain.Task {
	return listWhere(v.state.tasks, func(t domain.Task) bool {
		return matches(projectID, t.ProjectID) && matches(surveyNumber, t.SurveyNumber)
	}, cloneTask, func(t domain.Task) domain.Base { return t.Base })
}

func (v transactionView) FindTask(id string) (domain.Task, bool) {
	return find(v.state.tasks, id, cloneTask)
}

func (v transactionView) ListLegalNotes(projectID, surveyNumber string) []domain.LegalNote {
	return listWhere(v.state.legalNotes, func(n domain.LegalNote) bool {
		return matches(projectID, n.ProjectID) && matches(surveyNumber, n.SurveyNumber)
	}, identity[domain.LegalNote], func(n domain.LegalNote) domain.Base { return n.Base })
}

func (v transactionView) FindLegalNote(id string) (domain.LegalNote, bool) {
	return find(v.state.legalNotes, id, identity[domain.LegalNote])
}

func (v transactionView) ListUsers() []domain.User {
	return listWhere(v.state.users, func(domain.User) bool { return true }, cloneUser,
		func(u domain.User) domain.Base { return u.Base })
}

func (v transactionView) FindUser(id string) (domain.User, bool) {
	return find(v.state.users, id, cloneUser)
}

func (v transactionView) ListDocuments(projectID string) []domain.Document {
	return listWhere(v.state.documents, func(d domain.Document) bool { return matches(projectID, d.ProjectID) },
		identity[domain.Document], func(d domain.Document) domain.Base { return d.Base })
}

func (v transactionView) FindDocument(id string) (domain.Document, bool) {
	return find(v.state.documents, id, identity[domain.Document])
}
