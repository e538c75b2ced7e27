package provisioning

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-logr/logr"
	"github.com/lib/pq"

	"github.com/wafflehacks/external-postgres/internal/apierrors"
	"github.com/wafflehacks/external-postgres/internal/dbconn"
)

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	tmpl := dbconn.Template{Username: "admin", DefaultDatabase: "postgres"}
	pool := dbconn.NewTestPool(db, "postgres")
	// "alpha" shares the same mocked connection as the default pool so a
	// single sqlmock expectation queue can cover both the administrative
	// steps (user/database upsert) and the database-scoped auth plumbing.
	conns := dbconn.NewTestManager(tmpl, map[string]*dbconn.Pool{
		"postgres": pool,
		"alpha":    dbconn.NewTestPool(db, "alpha"),
	})

	return New(conns, logr.Discard()), mock
}

func TestEnsure_RejectsDefaultDatabase(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.Ensure(context.Background(), "postgres", "pw")
	if err == nil {
		t.Fatal("expected ErrDefaultDatabase")
	}
}

func TestEnsure_RejectsInvalidIdentifier(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.Ensure(context.Background(), "bad-name", "pw")
	if err == nil {
		t.Fatal("expected ErrInvalidName")
	}
}

func TestEnsure_RejectsEmptyPassword(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.Ensure(context.Background(), "alpha", ""); err == nil {
		t.Fatal("expected ErrNoPassword")
	}
}

func TestEnsure_CreatesNewRoleAndDatabase(t *testing.T) {
	e, mock := newTestEngine(t)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM pg_roles`).
		WithArgs("alpha").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`CREATE USER "alpha" WITH LOGIN`).WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM pg_database`).
		WithArgs("alpha").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`CREATE DATABASE "alpha" WITH OWNER "alpha"`).WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS pgbouncer`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`GRANT USAGE ON SCHEMA pgbouncer`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT EXISTS \(\s*SELECT 1 FROM pg_proc`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`REVOKE ALL ON FUNCTION pgbouncer.user_lookup`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`GRANT EXECUTE ON FUNCTION pgbouncer.user_lookup`).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := e.Ensure(context.Background(), "alpha", "s3cret"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRemove_RejectsDefaultDatabase(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.Remove(context.Background(), "postgres", false); err == nil {
		t.Fatal("expected ErrDefaultDatabase")
	}
}

// withoutSharedAlphaPool drops the fixture's "alpha" pool from the
// registry: Remove releases (and closes) that pool, and since it shares the
// default pool's *sql.DB, closing it would close the default pool too.
func withoutSharedAlphaPool(t *testing.T, e *Engine) {
	t.Helper()
	def, err := e.conns.GetDefault()
	if err != nil {
		t.Fatalf("GetDefault: %v", err)
	}
	e.conns = dbconn.NewTestManager(e.conns.Template(), map[string]*dbconn.Pool{"postgres": def})
}

func TestRemove_TreatsNotFoundAsSuccess(t *testing.T) {
	e, mock := newTestEngine(t)
	withoutSharedAlphaPool(t, e)

	pqNotFound := &pq.Error{Code: "42704"}

	mock.ExpectExec(`DROP DATABASE "alpha"`).WillReturnError(pqNotFound)
	mock.ExpectExec(`DROP USER "alpha"`).WillReturnError(pqNotFound)

	if err := e.Remove(context.Background(), "alpha", false); err != nil {
		t.Fatalf("expected does-not-exist to be masked as success, got: %v", err)
	}
}

func TestRemove_PropagatesOtherErrors(t *testing.T) {
	e, mock := newTestEngine(t)
	withoutSharedAlphaPool(t, e)

	mock.ExpectExec(`DROP DATABASE "alpha"`).WillReturnError(&pq.Error{Code: "55006"})

	err := e.Remove(context.Background(), "alpha", false)
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if !errors.Is(err, apierrors.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
}
