package mysql

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
)

// countingDriver tracks prepared statement lifecycles so the tests can
// assert every Prepare is matched by a Close.
type countingDriver struct {
	mu       sync.Mutex
	prepared int
	closed   int
}

func (d *countingDriver) Open(string) (driver.Conn, error) {
	return &countingConn{drv: d}, nil
}

func (d *countingDriver) counts() (prepared, closed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prepared, d.closed
}

type countingConn struct {
	drv *countingDriver
}

func (c *countingConn) Prepare(string) (driver.Stmt, error) {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	c.drv.prepared++
	return &countingStmt{drv: c.drv}, nil
}

func (c *countingConn) Close() error { return nil }

func (c *countingConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

type countingStmt struct {
	drv *countingDriver
}

func (s *countingStmt) Close() error {
	s.drv.mu.Lock()
	defer s.drv.mu.Unlock()
	s.drv.closed++
	return nil
}

func (s *countingStmt) NumInput() int { return -1 }

func (s *countingStmt) Exec([]driver.Value) (driver.Result, error) {
	return driver.RowsAffected(1), nil
}

func (s *countingStmt) Query([]driver.Value) (driver.Rows, error) {
	return &singleRow{}, nil
}

type singleRow struct {
	done bool
}

func (r *singleRow) Columns() []string { return []string{"value"} }

func (r *singleRow) Close() error { return nil }

func (r *singleRow) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = "ok"
	return nil
}

var testDriver = &countingDriver{}

func init() {
	sql.Register("stmtcount", testDriver)
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	db, err := sql.Open("stmtcount", "")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	db.SetMaxOpenConns(1)

	return New(db)
}

func TestPrepareAndQueryRowClosesStatement(t *testing.T) {
	handler := newTestHandler(t)

	preparedBefore, closedBefore := testDriver.counts()

	row, err := handler.PrepareAndQueryRow("SELECT value")
	if err != nil {
		t.Fatalf("PrepareAndQueryRow: %v", err)
	}

	var value string
	if err = row.Scan(&value); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if value != "ok" {
		t.Errorf("got %q, want ok", value)
	}

	prepared, closed := testDriver.counts()
	if prepared-preparedBefore != 1 {
		t.Fatalf("got %d statements prepared, want 1", prepared-preparedBefore)
	}
	if closed-closedBefore != prepared-preparedBefore {
		t.Errorf("statement leaked: %d prepared, %d closed", prepared-preparedBefore, closed-closedBefore)
	}
}

func TestPrepareAndExecuteClosesStatement(t *testing.T) {
	handler := newTestHandler(t)

	preparedBefore, closedBefore := testDriver.counts()

	if _, err := handler.PrepareAndExecute("UPDATE t SET v = 1"); err != nil {
		t.Fatalf("PrepareAndExecute: %v", err)
	}

	prepared, closed := testDriver.counts()
	if prepared-preparedBefore != 1 || closed-closedBefore != 1 {
		t.Errorf("statement leaked: %d prepared, %d closed", prepared-preparedBefore, closed-closedBefore)
	}
}

func TestPrepareAndQueryClosesStatementAfterRows(t *testing.T) {
	handler := newTestHandler(t)

	preparedBefore, closedBefore := testDriver.counts()

	rows, err := handler.PrepareAndQuery("SELECT value")
	if err != nil {
		t.Fatalf("PrepareAndQuery: %v", err)
	}

	for rows.Next() {
		var value string
		if err = rows.Scan(&value); err != nil {
			t.Fatalf("Scan: %v", err)
		}
	}
	if err = rows.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	prepared, closed := testDriver.counts()
	if prepared-preparedBefore != 1 || closed-closedBefore != 1 {
		t.Errorf("statement leaked: %d prepared, %d closed", prepared-preparedBefore, closed-closedBefore)
	}
}
