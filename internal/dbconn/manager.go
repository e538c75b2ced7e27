package dbconn

import (
	"context"
	"sync"

	"github.com/go-logr/logr"

	"github.com/wafflehacks/external-postgres/internal/apierrors"
)

// Manager is the ConnectionManager: a connection template plus a registry
// of per-database pools. It is a value type holding a pointer to shared,
// internally-locked state, so it may be copied freely between HTTP
// handlers and reconcile closures without introducing a cycle back to any
// consumer.
type Manager struct {
	state *state
}

type state struct {
	tmpl Template
	log  logr.Logger

	mu    sync.RWMutex
	pools map[string]*Pool
}

// New builds the administrative pool from tmpl, runs the one-time
// "ensure configuration" bootstrap against it, and returns a ready
// Manager. It fails with apierrors.ErrInvalidPermissions if the
// connecting role lacks CREATEROLE/CREATEDB, or apierrors.ErrInternal on
// any other connect/bootstrap failure.
func New(ctx context.Context, tmpl Template, log logr.Logger) (*Manager, error) {
	s := &state{
		tmpl:  tmpl,
		log:   log,
		pools: make(map[string]*Pool),
	}
	m := &Manager{state: s}

	def, err := m.GetDefault()
	if err != nil {
		return nil, apierrors.Wrap(err, "open default pool")
	}

	if err := ensureConfiguration(ctx, def, tmpl, log); err != nil {
		return nil, err
	}

	return m, nil
}

// GetDefault returns the pool bound to the template's default
// administrative database.
func (m *Manager) GetDefault() (*Pool, error) {
	return m.Get(m.state.tmpl.DefaultDatabase)
}

// Get returns the pool bound to name, opening it lazily on first use.
// Concurrent misses for the same name may each open a pool; the first
// pool inserted under the registry's write lock is kept and returned to
// every caller, and any later newly-opened pool is closed immediately.
func (m *Manager) Get(name string) (*Pool, error) {
	s := m.state

	s.mu.RLock()
	p, ok := s.pools[name]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	opened, err := openPool(s.tmpl, name)
	if err != nil {
		return nil, apierrors.Internal(err)
	}

	s.mu.Lock()
	if existing, ok := s.pools[name]; ok {
		s.mu.Unlock()
		_ = opened.Close()
		return existing, nil
	}
	s.pools[name] = opened
	s.mu.Unlock()

	return opened, nil
}

// Release evicts and closes the pool for name, if any. Idempotent.
func (m *Manager) Release(name string) error {
	s := m.state

	s.mu.Lock()
	p, ok := s.pools[name]
	if ok {
		delete(s.pools, name)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return p.Close()
}

// Names returns the currently managed database names, i.e. every key held
// in the pool registry except the administrative default database.
func (m *Manager) Names() []string {
	s := m.state

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.pools))
	for name := range s.pools {
		if name == s.tmpl.DefaultDatabase {
			continue
		}
		names = append(names, name)
	}
	return names
}

// IsManaged reports whether name currently has a registered pool.
func (m *Manager) IsManaged(name string) bool {
	s := m.state

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.pools[name]
	return ok
}

// AdminUsername exposes the connecting administrative role's name, used
// when reassigning ownership of a retained database.
func (m *Manager) AdminUsername() string {
	return m.state.tmpl.AdminUsername()
}

// Template returns the immutable connection template, used by the
// provisioning engine to recognise the administrative default database.
func (m *Manager) Template() Template {
	return m.state.tmpl
}

// NewTestManager builds a Manager around tmpl with pools pre-populated
// (typically sqlmock-backed via NewTestPool), letting other packages'
// tests exercise the registry without opening a real connection.
func NewTestManager(tmpl Template, pools map[string]*Pool) *Manager {
	if pools == nil {
		pools = make(map[string]*Pool)
	}
	return &Manager{state: &state{tmpl: tmpl, pools: pools, log: logr.Discard()}}
}
