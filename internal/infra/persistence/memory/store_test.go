package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"landledger/pkg/domain"
)

func mustRun(t *testing.T, store *Store, fn func(tx domain.Transaction) error) {
	t.Helper()
	if _, err := store.RunInTransaction(context.Background(), fn); err != nil {
		t.Fatalf("run transaction: %v", err)
	}
}

func view(t *testing.T, store *Store) domain.TransactionView {
	t.Helper()
	var out domain.TransactionView
	if err := store.View(context.Background(), func(v domain.TransactionView) error {
		out = v
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	return out
}

func seedProject(t *testing.T, store *Store) domain.Project {
	t.Helper()
	var project domain.Project
	mustRun(t, store, func(tx domain.Transaction) error {
		var err error
		project, err = tx.CreateProject(domain.Project{Name: "Ring Road", SiteID: "S-1"})
		return err
	})
	return project
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	project := seedProject(t, store)
	if project.ID == "" || project.CreatedAt.IsZero() {
		t.Fatalf("expected generated id and timestamps, got %+v", project)
	}
	snapshot := store.ExportState()
	if snapshot.Version != domain.SchemaVersion {
		t.Fatalf("expected schema version on export, got %q", snapshot.Version)
	}
	store.ImportState(NewSnapshot())
	if len(view(t, store).ListProjects()) != 0 {
		t.Fatalf("expected cleared state")
	}
	if wiped := store.ImportState(snapshot); wiped {
		t.Fatalf("expected snapshot to be accepted")
	}
	if _, ok := view(t, store).FindProject(project.ID); !ok {
		t.Fatalf("expected restored project")
	}
	if store.RulesEngine() == nil || store.NowFunc() == nil {
		t.Fatalf("expected engine and clock")
	}
}

func TestImportStateWipesOnVersionMismatch(t *testing.T) {
	store := NewStore(nil)
	seedProject(t, store)
	old := store.ExportState()
	old.Version = "1"
	if wiped := store.ImportState(old); !wiped {
		t.Fatalf("expected wipe on version mismatch")
	}
	if len(view(t, store).ListProjects()) != 0 {
		t.Fatalf("expected empty state after wipe")
	}
}

func TestStoreRuleViolationLeavesStateUntouched(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateProject(domain.Project{Name: "Fail"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if len(view(t, store).ListProjects()) != 0 {
		t.Fatalf("expected no committed projects")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.TransactionView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}}, nil
}

func TestLineageHeirOrderingAndSubtreeRemoval(t *testing.T) {
	store := NewStore(nil)
	project := seedProject(t, store)
	var head, son, daughter, grandson domain.Person
	mustRun(t, store, func(tx domain.Transaction) error {
		var err error
		if head, err = tx.CreatePerson(domain.Person{ProjectID: project.ID, Name: "Muthu"}); err != nil {
			return err
		}
		if son, err = tx.CreatePerson(domain.Person{ProjectID: project.ID, Name: "Ravi", ParentID: &head.ID}); err != nil {
			return err
		}
		if daughter, err = tx.CreatePerson(domain.Person{ProjectID: project.ID, Name: "Selvi", ParentID: &head.ID}); err != nil {
			return err
		}
		grandson, err = tx.CreatePerson(domain.Person{ProjectID: project.ID, Name: "Kumar", ParentID: &son.ID,
			LandRecords: []domain.SurveyRecord{{SurveyNumber: "101/2", Acres: "1", Cents: "20"}}})
		return err
	})
	if grandson.LandRecords[0].ID == "" {
		t.Fatalf("expected land record id")
	}
	got, _ := view(t, store).FindPerson(head.ID)
	if len(got.HeirIDs) != 2 || got.HeirIDs[0] != son.ID || got.HeirIDs[1] != daughter.ID {
		t.Fatalf("unexpected heir order %v", got.HeirIDs)
	}

	mustRun(t, store, func(tx domain.Transaction) error {
		_, err := tx.UpdatePerson(head.ID, func(p *domain.Person) error {
			p.HeirIDs = []string{daughter.ID, son.ID}
			return nil
		})
		return err
	})
	got, _ = view(t, store).FindPerson(head.ID)
	if got.HeirIDs[0] != daughter.ID {
		t.Fatalf("expected reordered heirs, got %v", got.HeirIDs)
	}

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdatePerson(head.ID, func(p *domain.Person) error {
			p.HeirIDs = []string{daughter.ID}
			return nil
		})
		return err
	})
	if err == nil {
		t.Fatalf("expected heir list edit to be rejected")
	}

	mustRun(t, store, func(tx domain.Transaction) error { return tx.DeletePerson(son.ID) })
	v := view(t, store)
	if _, ok := v.FindPerson(grandson.ID); ok {
		t.Fatalf("expected descendant removed with subtree")
	}
	if _, ok := v.FindPerson(daughter.ID); !ok {
		t.Fatalf("expected sibling to survive")
	}
	got, _ = v.FindPerson(head.ID)
	if len(got.HeirIDs) != 1 || got.HeirIDs[0] != daughter.ID {
		t.Fatalf("expected parent detached from removed heir, got %v", got.HeirIDs)
	}
}

func TestUpdatePersonMovesBetweenParents(t *testing.T) {
	store := NewStore(nil)
	project := seedProject(t, store)
	var a, b, child domain.Person
	mustRun(t, store, func(tx domain.Transaction) error {
		a, _ = tx.CreatePerson(domain.Person{ProjectID: project.ID, Name: "A"})
		b, _ = tx.CreatePerson(domain.Person{ProjectID: project.ID, Name: "B"})
		var err error
		child, err = tx.CreatePerson(domain.Person{ProjectID: project.ID, Name: "C", ParentID: &a.ID})
		return err
	})
	mustRun(t, store, func(tx domain.Transaction) error {
		_, err := tx.UpdatePerson(child.ID, func(p *domain.Person) error {
			p.ParentID = &b.ID
			return nil
		})
		return err
	})
	v := view(t, store)
	gotA, _ := v.FindPerson(a.ID)
	gotB, _ := v.FindPerson(b.ID)
	if len(gotA.HeirIDs) != 0 || len(gotB.HeirIDs) != 1 {
		t.Fatalf("expected heir moved, got a=%v b=%v", gotA.HeirIDs, gotB.HeirIDs)
	}
}

func TestCreatePersonRejectsUnknownParent(t *testing.T) {
	store := NewStore(nil)
	project := seedProject(t, store)
	missing := "missing"
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreatePerson(domain.Person{ProjectID: project.ID, Name: "Orphan", ParentID: &missing})
		return err
	})
	var nf domain.NotFoundError
	if !errors.As(err, &nf) || nf.ID != missing {
		t.Fatalf("expected not found for parent, got %v", err)
	}
}

func TestAcquisitionStatusUniquePerSurvey(t *testing.T) {
	store := NewStore(nil)
	project := seedProject(t, store)
	var status domain.AcquisitionStatus
	mustRun(t, store, func(tx domain.Transaction) error {
		var err error
		status, err = tx.CreateAcquisitionStatus(domain.AcquisitionStatus{ProjectID: project.ID, SurveyNumber: "12"})
		return err
	})
	if status.Financials.AdvancePayment != domain.AdvancePending || status.Legal.QueryStatus != domain.QueryOpen {
		t.Fatalf("expected defaults applied, got %+v", status)
	}
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateAcquisitionStatus(domain.AcquisitionStatus{ProjectID: project.ID, SurveyNumber: "12"})
		return err
	})
	var conflict domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	mustRun(t, store, func(tx domain.Transaction) error {
		_, err := tx.UpdateAcquisitionStatus(status.ID, func(a *domain.AcquisitionStatus) error {
			a.SurveyNumber = "changed"
			a.Financials.AdvancePayment = domain.AdvancePaid
			return nil
		})
		return err
	})
	got, ok := view(t, store).FindAcquisitionStatusBySurvey(project.ID, "12")
	if !ok || got.Financials.AdvancePayment != domain.AdvancePaid {
		t.Fatalf("expected survey number kept and payment updated, got %+v", got)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	store := NewStore(nil)
	project := seedProject(t, store)
	other := seedProject(t, store)
	var user domain.User
	mustRun(t, store, func(tx domain.Transaction) error {
		head, err := tx.CreatePerson(domain.Person{ProjectID: project.ID, Name: "Head"})
		if err != nil {
			return err
		}
		if _, err := tx.CreatePerson(domain.Person{ProjectID: project.ID, Name: "Heir", ParentID: &head.ID}); err != nil {
			return err
		}
		if _, err := tx.CreateNote(domain.Note{ProjectID: project.ID, SurveyNumber: "5", Body: "visit"}); err != nil {
			return err
		}
		if _, err := tx.CreateTransactionRecord(domain.TransactionRecord{ProjectID: project.ID, Owner: "X", Amount: decimal.NewFromInt(10)}); err != nil {
			return err
		}
		if _, err := tx.CreateNote(domain.Note{ProjectID: other.ID, SurveyNumber: "5", Body: "keep"}); err != nil {
			return err
		}
		user, err = tx.CreateUser(domain.User{Name: "U", Email: "u@example.com", Role: domain.RoleClient, ProjectIDs: []string{project.ID, other.ID}})
		return err
	})
	mustRun(t, store, func(tx domain.Transaction) error { return tx.DeleteProject(project.ID) })
	v := view(t, store)
	if len(v.ListPersons(project.ID)) != 0 || len(v.ListNotes(project.ID, "")) != 0 || len(v.ListTransactionRecords(project.ID)) != 0 {
		t.Fatalf("expected per-project records removed")
	}
	if len(v.ListNotes(other.ID, "")) != 1 {
		t.Fatalf("expected other project untouched")
	}
	got, _ := v.FindUser(user.ID)
	if len(got.ProjectIDs) != 1 || got.ProjectIDs[0] != other.ID {
		t.Fatalf("expected assignment removed, got %v", got.ProjectIDs)
	}
}

func TestUserEmailUnique(t *testing.T) {
	store := NewStore(nil)
	mustRun(t, store, func(tx domain.Transaction) error {
		_, err := tx.CreateUser(domain.User{Name: "A", Email: "a@example.com", Role: domain.RoleLawyer})
		return err
	})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateUser(domain.User{Name: "B", Email: "A@Example.com", Role: domain.RoleLawyer})
		return err
	})
	if err == nil {
		t.Fatalf("expected duplicate email conflict")
	}
}

func TestNotesFilteredBySurveyAndClock(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })
	project := seedProject(t, store)
	mustRun(t, store, func(tx domain.Transaction) error {
		for _, survey := range []string{"1", "1", "2"} {
			if _, err := tx.CreateTask(domain.Task{ProjectID: project.ID, SurveyNumber: survey, Title: "collect"}); err != nil {
				return err
			}
		}
		return nil
	})
	tasks := view(t, store).ListTasks(project.ID, "1")
	if len(tasks) != 2 {
		t.Fatalf("expected two tasks for survey 1, got %d", len(tasks))
	}
	if !tasks[0].CreatedAt.Equal(fixed) {
		t.Fatalf("expected clock timestamp, got %v", tasks[0].CreatedAt)
	}
	if len(view(t, store).ListTasks(project.ID, "")) != 3 {
		t.Fatalf("expected all tasks with empty survey filter")
	}
}

func TestMigrateSnapshotRepairsReferences(t *testing.T) {
	snap := NewSnapshot()
	snap.Projects["p"] = domain.Project{Base: domain.Base{ID: "p"}, Name: "P"}
	ghost := "ghost"
	snap.Persons["a"] = domain.Person{Base: domain.Base{ID: "a"}, ProjectID: "p", Name: "A", HeirIDs: []string{"zz"}}
	snap.Persons["b"] = domain.Person{Base: domain.Base{ID: "b"}, ProjectID: "p", Name: "B", ParentID: &ghost}
	snap.Persons["c"] = domain.Person{Base: domain.Base{ID: "c"}, ProjectID: "p", Name: "C", ParentID: strPtr("a")}
	snap.Persons["x"] = domain.Person{Base: domain.Base{ID: "x"}, ProjectID: "missing", Name: "X"}
	snap.Notes["n"] = domain.Note{Base: domain.Base{ID: "n"}, ProjectID: "missing", SurveyNumber: "1", Body: "b"}
	snap.Users["u"] = domain.User{Base: domain.Base{ID: "u"}, Email: "u@example.com", ProjectIDs: []string{"p", "missing"}}

	migrated, wiped := migrateSnapshot(snap)
	if wiped {
		t.Fatalf("unexpected wipe")
	}
	if _, ok := migrated.Persons["x"]; ok {
		t.Fatalf("expected orphan person dropped")
	}
	if migrated.Persons["b"].ParentID != nil {
		t.Fatalf("expected dangling parent cleared")
	}
	if heirs := migrated.Persons["a"].HeirIDs; len(heirs) != 1 || heirs[0] != "c" {
		t.Fatalf("expected heir list repaired, got %v", heirs)
	}
	if len(migrated.Notes) != 0 {
		t.Fatalf("expected orphan note dropped")
	}
	if u := migrated.Users["u"]; len(u.ProjectIDs) != 1 || u.Status != domain.UserActive {
		t.Fatalf("expected user normalised, got %+v", u)
	}
}

func strPtr(s string) *string { return &s }
