// Package provisioning implements the idempotent SQL procedures that
// create/alter users, create/alter/drop databases, and install the
// authentication-lookup plumbing expected by a connection-pooling proxy.
package provisioning

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/lib/pq"

	"github.com/wafflehacks/external-postgres/internal/apierrors"
	"github.com/wafflehacks/external-postgres/internal/dbconn"
)

// Engine is the ProvisioningEngine: stateless beyond its reference to the
// ConnectionManager it drives.
type Engine struct {
	conns *dbconn.Manager
	log   logr.Logger
}

// New returns an Engine driving conns.
func New(conns *dbconn.Manager, log logr.Logger) *Engine {
	return &Engine{conns: conns, log: log}
}

func (e *Engine) isDefault(name string) bool {
	return name == e.conns.Template().DefaultDatabase
}

// Ensure upserts the role and database named name with the given
// password, then installs the pgbouncer authentication plumbing against
// a pool bound to name. Every call rotates the role's password, even if
// the role already existed, so that (name, password) is the operation's
// full idempotence key.
func (e *Engine) Ensure(ctx context.Context, name, password string) error {
	if e.isDefault(name) {
		return apierrors.ErrDefaultDatabase
	}
	if !ValidIdentifier(name) {
		return apierrors.ErrInvalidName
	}
	if password == "" {
		return apierrors.ErrNoPassword
	}

	def, err := e.conns.GetDefault()
	if err != nil {
		return apierrors.Internal(err)
	}

	if err := upsertUser(ctx, def, name, password); err != nil {
		return apierrors.Internal(err)
	}
	if err := upsertDatabase(ctx, def, name); err != nil {
		return apierrors.Internal(err)
	}

	dbPool, err := e.conns.Get(name)
	if err != nil {
		return apierrors.Internal(err)
	}
	if err := dbconn.EnsureAuthSchema(ctx, dbPool); err != nil {
		return err
	}
	if err := dbconn.EnsureAuthLookupFunction(ctx, dbPool); err != nil {
		return err
	}

	e.log.Info("ensured database", "name", name)
	return nil
}

// Remove evicts the pool for name, reassigns or drops the database, and
// drops the role. A "does not exist" failure on any step is treated as
// success, matching the operation's idempotence contract.
func (e *Engine) Remove(ctx context.Context, name string, retain bool) error {
	if e.isDefault(name) {
		return apierrors.ErrDefaultDatabase
	}
	if !ValidIdentifier(name) {
		return apierrors.ErrInvalidName
	}

	if err := e.conns.Release(name); err != nil {
		e.log.Error(err, "failed to close pool on remove", "name", name)
	}

	def, err := e.conns.GetDefault()
	if err != nil {
		return apierrors.Internal(err)
	}

	var sqlStmt string
	if retain {
		sqlStmt = fmt.Sprintf("ALTER DATABASE %s OWNER TO %s",
			pq.QuoteIdentifier(name), pq.QuoteIdentifier(e.conns.AdminUsername()))
	} else {
		sqlStmt = "DROP DATABASE " + pq.QuoteIdentifier(name)
	}
	if _, err := def.DB().ExecContext(ctx, sqlStmt); err != nil && !isDoesNotExist(err) {
		return apierrors.Internal(err)
	}

	if _, err := def.DB().ExecContext(ctx, "DROP USER "+pq.QuoteIdentifier(name)); err != nil && !isDoesNotExist(err) {
		return apierrors.Internal(err)
	}

	e.log.Info("removed database", "name", name, "retain", retain)
	return nil
}

func upsertUser(ctx context.Context, p *dbconn.Pool, name, password string) error {
	exists, err := roleLoginExists(ctx, p, name)
	if err != nil {
		return err
	}

	quotedName := pq.QuoteIdentifier(name)
	quotedPass := pq.QuoteLiteral(password)

	var stmt string
	if exists {
		stmt = fmt.Sprintf("ALTER USER %s WITH PASSWORD %s", quotedName, quotedPass)
	} else {
		stmt = fmt.Sprintf(
			"CREATE USER %s WITH LOGIN NOSUPERUSER NOCREATEROLE NOCREATEDB NOREPLICATION NOBYPASSRLS PASSWORD %s",
			quotedName, quotedPass)
	}
	_, err = p.DB().ExecContext(ctx, stmt)
	return err
}

func roleLoginExists(ctx context.Context, p *dbconn.Pool, name string) (bool, error) {
	var exists bool
	row := p.DB().QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)`, name)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func upsertDatabase(ctx context.Context, p *dbconn.Pool, name string) error {
	var exists bool
	row := p.DB().QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name)
	if err := row.Scan(&exists); err != nil {
		return err
	}

	quotedName := pq.QuoteIdentifier(name)
	var stmt string
	if exists {
		stmt = fmt.Sprintf("ALTER DATABASE %s OWNER TO %s", quotedName, quotedName)
	} else {
		stmt = fmt.Sprintf("CREATE DATABASE %s WITH OWNER %s", quotedName, quotedName)
	}
	_, err := p.DB().ExecContext(ctx, stmt)
	return err
}

// isDoesNotExist reports whether err looks like a PostgreSQL "does not
// exist" error, the driver's signal that a DROP target was already gone.
func isDoesNotExist(err error) bool {
	if err == nil || err == sql.ErrNoRows {
		return false
	}
	var pqErr *pq.Error
	if ok := asPQError(err, &pqErr); ok {
		// 42704 = undefined_object, covers "role does not exist";
		// 3D000 = invalid_catalog_name, covers "database ... does not
		// exist" for DROP/ALTER DATABASE.
		return pqErr.Code == "42704" || pqErr.Code == "3D000"
	}
	return false
}
