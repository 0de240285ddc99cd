package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"landledger/internal/infra/persistence/keyspace"
	"landledger/internal/infra/persistence/postgres/testutil"
	"landledger/pkg/domain"
)

func openStub(t *testing.T, db *sql.DB) *Store {
	t.Helper()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	store, err := NewStore(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestStorePersistsChangedKeys(t *testing.T) {
	db, conn := testutil.NewStubDB()
	store := openStub(t, db)
	if !strings.Contains(conn.Execs[0], "CREATE TABLE IF NOT EXISTS state") {
		t.Fatalf("expected state table ddl, got %v", conn.Execs)
	}
	var project domain.Project
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		project, err = tx.CreateProject(domain.Project{Name: "Port"})
		return err
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := conn.Bucket(keyspace.KeyProjects); !ok {
		t.Fatalf("expected projects bucket")
	}
	if payload, ok := conn.Bucket(keyspace.KeyVersion); !ok || string(payload) != `"`+domain.SchemaVersion+`"` {
		t.Fatalf("expected version bucket, got %s", payload)
	}

	execsBefore := len(conn.Execs)
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateTask(domain.Task{ProjectID: project.ID, SurveyNumber: "3", Title: "meet owner"})
		return err
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
	var upserts int
	for _, q := range conn.Execs[execsBefore:] {
		if strings.HasPrefix(q, "INSERT INTO state") {
			upserts++
		}
	}
	if upserts != 1 {
		t.Fatalf("expected only the tasks key rewritten, got %d upserts", upserts)
	}

	reopened := openStub(t, db)
	var tasks []domain.Task
	_ = reopened.View(context.Background(), func(v domain.TransactionView) error {
		tasks = v.ListTasks(project.ID, "3")
		return nil
	})
	if len(tasks) != 1 || tasks[0].Title != "meet owner" {
		t.Fatalf("expected task restored, got %+v", tasks)
	}
}

func TestStoreRestoresMemoryOnCommitFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	store := openStub(t, db)
	conn.FailCommit = true
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateProject(domain.Project{Name: "Lost"})
		return err
	})
	if err == nil {
		t.Fatalf("expected commit failure")
	}
	var projects []domain.Project
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		projects = v.ListProjects()
		return nil
	})
	if len(projects) != 0 {
		t.Fatalf("expected in-memory state rolled back, got %d projects", len(projects))
	}
	if _, ok := conn.Bucket(keyspace.KeyProjects); ok {
		t.Fatalf("expected nothing committed")
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example", nil); err == nil {
		t.Fatalf("expected ping error")
	}
}
