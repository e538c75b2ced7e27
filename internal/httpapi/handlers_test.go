package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-logr/logr"

	"github.com/wafflehacks/external-postgres/internal/dbconn"
	"github.com/wafflehacks/external-postgres/internal/operator"
	"github.com/wafflehacks/external-postgres/internal/provisioning"
)

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	tmpl := dbconn.Template{Username: "admin", DefaultDatabase: "postgres"}
	conns := dbconn.NewTestManager(tmpl, map[string]*dbconn.Pool{
		"postgres": dbconn.NewTestPool(db, "postgres"),
	})
	engine := provisioning.New(conns, logr.Discard())
	ctl := operator.New(operator.Config{}, engine, logr.Discard())

	return New(conns, engine, ctl, logr.Discard()), mock
}

func TestHandleHealth_Success(t *testing.T) {
	s, mock := newTestServer(t)
	mock.ExpectPing()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want 204", rec.Code)
	}
}

func TestHandleListDatabases_EmptyRegistry(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/databases", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("got body %q, want []", got)
	}
}

func TestHandleEnsureDatabase_RejectsMissingName(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/databases", strings.NewReader(`{"password":"pw"}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestHandleRemoveDatabase_NotManagedReturns404(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/databases/ghost", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
}

func TestHandleOperatorState_DefaultsStopped(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/operator/state", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"running":false}` {
		t.Fatalf("got body %q, want {\"running\":false}", got)
	}
}

func TestHandlePostOperatorState_RejectsUnknownDesired(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/operator/state", strings.NewReader(`{"desired":"sideways"}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestHandleDeleteDatabase_DefaultsRetainFalse(t *testing.T) {
	s, mock := newTestServer(t)

	if _, err := s.conns.Get("alpha"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	mock.ExpectExec(`DROP DATABASE "alpha"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DROP USER "alpha"`).WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodDelete, "/databases/alpha", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want 204: body=%s", rec.Code, rec.Body.String())
	}
}
