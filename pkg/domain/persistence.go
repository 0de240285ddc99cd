package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView

	CreateProject(Project) (Project, error)
	UpdateProject(id string, mutator func(*Project) error) (Project, error)
	// DeleteProject removes the project and every record scoped to it.
	DeleteProject(id string) error

	// CreatePerson appends the person to its parent's heir list when a
	// parent is set.
	CreatePerson(Person) (Person, error)
	UpdatePerson(id string, mutator func(*Person) error) (Person, error)
	// DeletePerson removes the person and its whole subtree.
	DeletePerson(id string) error

	CreateAcquisitionStatus(AcquisitionStatus) (AcquisitionStatus, error)
	UpdateAcquisitionStatus(id string, mutator func(*AcquisitionStatus) error) (AcquisitionStatus, error)
	DeleteAcquisitionStatus(id string) error

	CreateTransactionRecord(TransactionRecord) (TransactionRecord, error)
	UpdateTransactionRecord(id string, mutator func(*TransactionRecord) error) (TransactionRecord, error)
	DeleteTransactionRecord(id string) error

	CreateFinancialTransaction(FinancialTransaction) (FinancialTransaction, error)
	UpdateFinancialTransaction(id string, mutator func(*FinancialTransaction) error) (FinancialTransaction, error)
	DeleteFinancialTransaction(id string) error

	CreateNote(Note) (Note, error)
	UpdateNote(id string, mutator func(*Note) error) (Note, error)
	DeleteNote(id string) error

	CreateTask(Task) (Task, error)
	UpdateTask(id string, mutator func(*Task) error) (Task, error)
	DeleteTask(id string) error

	CreateLegalNote(LegalNote) (LegalNote, error)
	UpdateLegalNote(id string, mutator func(*LegalNote) error) (LegalNote, error)
	DeleteLegalNote(id string) error

	CreateUser(User) (User, error)
	UpdateUser(id string, mutator func(*User) error) (User, error)
	DeleteUser(id string) error

	CreateDocument(Document) (Document, error)
	DeleteDocument(id string) error
}

// TransactionView provides read-only access to state for rules and readers.
// Empty projectID or surveyNumber filters match everything.
type TransactionView interface {
	ListProjects() []Project
	FindProject(id string) (Project, bool)
	ListPersons(projectID string) []Person
	FindPerson(id string) (Person, bool)
	ListAcquisitionStatuses(projectID string) []AcquisitionStatus
	FindAcquisitionStatus(id string) (AcquisitionStatus, bool)
	FindAcquisitionStatusBySurvey(projectID, surveyNumber string) (AcquisitionStatus, bool)
	ListTransactionRecords(projectID string) []TransactionRecord
	ListFinancialTransactions(projectID string) []FinancialTransaction
	ListNotes(projectID, surveyNumber string) []Note
	FindNote(id string) (Note, bool)
	ListTasks(projectID, surveyNumber string) []Task
	FindTask(id string) (Task, bool)
	ListLegalNotes(projectID, surveyNumber string) []LegalNote
	FindLegalNote(id string) (LegalNote, bool)
	ListUsers() []User
	FindUser(id string) (User, bool)
	ListDocuments(projectID string) []Document
	FindDocument(id string) (Document, bool)
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	RulesEngine() *RulesEngine
}
