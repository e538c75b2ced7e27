package dbconn

import (
	"context"
	"database/sql"
	"time"

	// lib/pq registers the "postgres" driver used throughout this package.
	_ "github.com/lib/pq"
)

// idleTimeout bounds how long an administrative connection may sit idle
// before database/sql reaps it. Administrative pools serve infrequent DDL,
// never data traffic, so connections are not kept warm.
const idleTimeout = 5 * time.Second

// Queryer is the subset of *sql.DB this package and its consumers depend
// on, so that tests can substitute a fake or a sqlmock-backed instance.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	PingContext(ctx context.Context) error
}

// Pool wraps a *sql.DB scoped to a single logical database, tuned so that
// at most one connection is ever open to it and idle connections are
// dropped quickly.
type Pool struct {
	Database string

	db *sql.DB
}

// openPool opens (without connecting) a pool for database using tmpl,
// applying the max-connections=1/min-connections=0/idle-timeout=5s
// invariant from the connection template.
func openPool(tmpl Template, database string) (*Pool, error) {
	db, err := sql.Open("postgres", tmpl.dsn(database))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)
	db.SetConnMaxIdleTime(idleTimeout)

	return &Pool{Database: database, db: db}, nil
}

// DB returns the underlying Queryer for direct statement execution.
func (p *Pool) DB() Queryer {
	return p.db
}

// Ping verifies connectivity, used by the control plane's liveness probe.
func (p *Pool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the pool's underlying connection, if any.
func (p *Pool) Close() error {
	return p.db.Close()
}

// NewTestPool wraps an already-open *sql.DB (typically sqlmock-backed) as
// a Pool bound to database, letting other packages' tests exercise code
// that operates on a *Pool without going through the real driver.
func NewTestPool(db *sql.DB, database string) *Pool {
	return &Pool{Database: database, db: db}
}
