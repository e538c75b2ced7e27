package dbconn

import (
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return &Manager{state: &state{
		tmpl:  Template{Username: "admin", DefaultDatabase: "postgres"},
		pools: make(map[string]*Pool),
	}}
}

func TestManager_GetReturnsSamePoolOnSteadyState(t *testing.T) {
	m := newTestManager(t)

	first, err := m.Get("alpha")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := m.Get("alpha")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second {
		t.Fatal("expected the same pool instance on repeated Get")
	}
	t.Cleanup(func() { _ = first.Close() })
}

func TestManager_ReleaseIsIdempotent(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Get("alpha"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := m.Release("alpha"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := m.Release("alpha"); err != nil {
		t.Fatalf("second Release should be a no-op, got: %v", err)
	}
	if m.IsManaged("alpha") {
		t.Fatal("alpha should no longer be managed after Release")
	}
}

func TestManager_NamesExcludesDefaultDatabase(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Get("postgres"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := m.Get("alpha"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	names := m.Names()
	if len(names) != 1 || names[0] != "alpha" {
		t.Fatalf("expected only [alpha], got %v", names)
	}
}
