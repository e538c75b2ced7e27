package dbconn

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-logr/logr"
)

func newMockPool(t *testing.T) (*Pool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &Pool{Database: "postgres", db: db}, mock
}

func TestEnsureConfiguration_CreatesPgbouncerRole(t *testing.T) {
	pool, mock := newMockPool(t)

	rolesRows := sqlmock.NewRows([]string{"rolcreaterole", "rolcreatedb"}).AddRow(true, true)
	mock.ExpectQuery(`SELECT rolcreaterole, rolcreatedb FROM pg_roles`).
		WithArgs("admin").WillReturnRows(rolesRows)

	mock.ExpectQuery(`SELECT rolcanlogin FROM pg_roles`).
		WithArgs("pgbouncer").WillReturnRows(sqlmock.NewRows([]string{"rolcanlogin"}))

	mock.ExpectExec(`CREATE USER pgbouncer`).WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS pgbouncer`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`GRANT USAGE ON SCHEMA pgbouncer`).WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(
		sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`CREATE FUNCTION pgbouncer.user_lookup`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`REVOKE ALL ON FUNCTION pgbouncer.user_lookup`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`GRANT EXECUTE ON FUNCTION pgbouncer.user_lookup`).WillReturnResult(sqlmock.NewResult(0, 1))

	tmpl := Template{Username: "admin", DefaultDatabase: "postgres"}
	if err := ensureConfiguration(context.Background(), pool, tmpl, logr.Discard()); err != nil {
		t.Fatalf("ensureConfiguration: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEnsureConfiguration_RejectsMissingPermissions(t *testing.T) {
	pool, mock := newMockPool(t)

	rolesRows := sqlmock.NewRows([]string{"rolcreaterole", "rolcreatedb"}).AddRow(false, true)
	mock.ExpectQuery(`SELECT rolcreaterole, rolcreatedb FROM pg_roles`).
		WithArgs("admin").WillReturnRows(rolesRows)

	tmpl := Template{Username: "admin", DefaultDatabase: "postgres"}
	err := ensureConfiguration(context.Background(), pool, tmpl, logr.Discard())
	if err == nil {
		t.Fatal("expected error for missing permissions")
	}
}
