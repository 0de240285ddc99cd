// Package testutil provides a stub database/sql driver that emulates the
// postgres state table for store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// StubConn records statements and keeps state rows keyed by bucket.
type StubConn struct {
	mu         sync.Mutex
	Execs      []string
	Rows       map[string][]byte
	FailPing   bool
	FailBegin  bool
	FailCommit bool
	FailExec   string
	pending    map[string]*[]byte
}

var stubSeq atomic.Int64

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Rows: make(map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Bucket returns the committed payload of a bucket.
func (c *StubConn) Bucket(name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.Rows[name]
	return b, ok
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	c.mu.Lock()
	c.pending = make(map[string]*[]byte)
	c.mu.Unlock()
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext. Writes inside a transaction
// are staged until commit.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	upper := strings.ToUpper(strings.TrimSpace(query))
	if c.FailExec != "" && strings.HasPrefix(upper, c.FailExec) {
		return nil, fmt.Errorf("exec fail")
	}
	switch {
	case strings.HasPrefix(upper, "INSERT INTO STATE"):
		if len(args) != 2 {
			return nil, fmt.Errorf("insert expects 2 args, got %d", len(args))
		}
		bucket, _ := args[0].Value.(string)
		payload, _ := args[1].Value.([]byte)
		c.stage(bucket, append([]byte(nil), payload...))
	case strings.HasPrefix(upper, "DELETE FROM STATE"):
		if len(args) != 1 {
			return nil, fmt.Errorf("delete expects 1 arg")
		}
		bucket, _ := args[0].Value.(string)
		c.stage(bucket, nil)
	}
	return driver.RowsAffected(1), nil
}

func (c *StubConn) stage(bucket string, payload []byte) {
	if c.pending == nil {
		if payload == nil {
			delete(c.Rows, bucket)
		} else {
			c.Rows[bucket] = payload
		}
		return
	}
	if payload == nil {
		c.pending[bucket] = nil
		return
	}
	c.pending[bucket] = &payload
}

// QueryContext implements driver.QueryerContext for SELECT bucket, payload FROM state.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !strings.Contains(strings.ToUpper(query), "FROM STATE") {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	keys := make([]string, 0, len(c.Rows))
	for k := range c.Rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([][]driver.Value, 0, len(keys))
	for _, k := range keys {
		values = append(values, []driver.Value{k, append([]byte(nil), c.Rows[k]...)})
	}
	return &stubRows{cols: []string{"bucket", "payload"}, rows: values}, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.pending
	c.pending = nil
	if c.FailCommit {
		return fmt.Errorf("commit fail")
	}
	for k, v := range pending {
		if v == nil {
			delete(c.Rows, k)
			continue
		}
		c.Rows[k] = *v
	}
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.mu.Lock()
	t.conn.pending = nil
	t.conn.mu.Unlock()
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
