// Package sqlite persists the in-memory store to a SQLite file, one row per
// storage key.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"landledger/internal/infra/persistence/keyspace"
	"landledger/internal/infra/persistence/memory"
	"landledger/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// Store keeps the working set in memory and rewrites changed storage keys
// after every successful transaction.
type Store struct {
	*memory.Store
	db    *sql.DB
	mu    sync.Mutex
	path  string
	last  map[string][]byte
	wiped bool
}

// NewStore opens (or creates) the database at path and hydrates the store.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "landledger.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps writes serialised on the file
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path}
	if err := s.load(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	docs := make(map[string][]byte)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		docs[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	snapshot, err := keyspace.Decode(docs)
	if err != nil {
		return err
	}
	s.wiped = s.ImportState(snapshot)
	// the next write diffs against what the database holds
	s.last = docs
	return nil
}

func (s *Store) persist(ctx context.Context) (retErr error) {
	next, err := keyspace.Encode(s.ExportState())
	if err != nil {
		return err
	}
	upserts, deletes := keyspace.Diff(s.last, next)
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for bucket, data := range upserts {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	for _, bucket := range deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM state WHERE bucket = ?`, bucket); err != nil {
			return fmt.Errorf("delete %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.last = next
	return nil
}

// RunInTransaction applies fn in memory and writes the changed keys. When the
// write fails the in-memory state is restored.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.ExportState()
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		s.ImportState(before)
		return res, err
	}
	return res, nil
}

// Wiped reports whether the stored state was discarded on open because it
// was written under another schema version.
func (s *Store) Wiped() bool { return s.wiped }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
