package dbconn

import (
	"context"
	"database/sql"

	"github.com/go-logr/logr"

	"github.com/wafflehacks/external-postgres/internal/apierrors"
)

// ensureConfiguration runs once, during New, against the default pool: it
// verifies the connecting role's permissions, bootstraps the pgbouncer
// proxy role, and installs the authentication-lookup plumbing on the
// default database so the proxy can authenticate against it immediately.
func ensureConfiguration(ctx context.Context, def *Pool, tmpl Template, log logr.Logger) error {
	hasRole, hasCreateDB, err := rolePermissions(ctx, def, tmpl.Username)
	if err != nil {
		return apierrors.Internal(err)
	}
	if !hasRole || !hasCreateDB {
		return apierrors.ErrInvalidPermissions
	}
	log.V(1).Info("connecting role has required permissions", "role", tmpl.Username)

	exists, canLogin, err := roleExists(ctx, def, "pgbouncer")
	if err != nil {
		return apierrors.Internal(err)
	}
	switch {
	case !exists:
		log.Info("pgbouncer role does not exist, creating")
		if _, err := def.DB().ExecContext(ctx,
			`CREATE USER pgbouncer WITH LOGIN NOSUPERUSER NOCREATEROLE NOCREATEDB NOREPLICATION NOBYPASSRLS`,
		); err != nil {
			return apierrors.Internal(err)
		}
	case !canLogin:
		log.Info("pgbouncer role exists but cannot login")
	default:
		log.V(1).Info("pgbouncer role already exists")
	}

	if err := EnsureAuthSchema(ctx, def); err != nil {
		return err
	}
	return EnsureAuthLookupFunction(ctx, def)
}

// rolePermissions reports whether role has CREATEROLE and CREATEDB.
func rolePermissions(ctx context.Context, p *Pool, role string) (hasCreateRole, hasCreateDB bool, err error) {
	row := p.DB().QueryRowContext(ctx,
		`SELECT rolcreaterole, rolcreatedb FROM pg_roles WHERE rolname = $1`, role)
	if err := row.Scan(&hasCreateRole, &hasCreateDB); err != nil {
		if err == sql.ErrNoRows {
			return false, false, nil
		}
		return false, false, err
	}
	return hasCreateRole, hasCreateDB, nil
}

// roleExists reports whether role exists, and if so whether it may login.
func roleExists(ctx context.Context, p *Pool, role string) (exists, canLogin bool, err error) {
	row := p.DB().QueryRowContext(ctx,
		`SELECT rolcanlogin FROM pg_roles WHERE rolname = $1`, role)
	if err := row.Scan(&canLogin); err != nil {
		if err == sql.ErrNoRows {
			return false, false, nil
		}
		return false, false, err
	}
	return true, canLogin, nil
}

// EnsureAuthSchema installs the pgbouncer schema and grants the proxy
// role usage on it.
func EnsureAuthSchema(ctx context.Context, p *Pool) error {
	if _, err := p.DB().ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS pgbouncer`); err != nil {
		return apierrors.Internal(err)
	}
	if _, err := p.DB().ExecContext(ctx, `GRANT USAGE ON SCHEMA pgbouncer TO pgbouncer`); err != nil {
		return apierrors.Internal(err)
	}
	return nil
}

// authLookupFunctionSQL defines pgbouncer.user_lookup(text), returning the
// role name and shadow password catalog entries for a connecting user. It
// runs as SECURITY DEFINER so that pgbouncer, which has no access to
// pg_shadow itself, can resolve credentials through it.
const authLookupFunctionSQL = `
CREATE FUNCTION pgbouncer.user_lookup(in i_username text, out uname text, out phash text)
RETURNS record AS $$
BEGIN
    SELECT usename, passwd FROM pg_catalog.pg_shadow
    WHERE usename = i_username INTO uname, phash;
    RETURN;
END;
$$ LANGUAGE plpgsql SECURITY DEFINER;
`

// EnsureAuthLookupFunction installs pgbouncer.user_lookup(text) if it is
// not already present, then unconditionally resets its execute
// permissions so that only pgbouncer itself may invoke it.
func EnsureAuthLookupFunction(ctx context.Context, p *Pool) error {
	var exists bool
	row := p.DB().QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM pg_proc pr
			JOIN pg_namespace ns ON ns.oid = pr.pronamespace
			WHERE ns.nspname = 'pgbouncer' AND pr.proname = 'user_lookup'
		)`)
	if err := row.Scan(&exists); err != nil {
		return apierrors.Internal(err)
	}

	if !exists {
		if _, err := p.DB().ExecContext(ctx, authLookupFunctionSQL); err != nil {
			return apierrors.Internal(err)
		}
	}

	if _, err := p.DB().ExecContext(ctx,
		`REVOKE ALL ON FUNCTION pgbouncer.user_lookup(text) FROM public, pgbouncer`,
	); err != nil {
		return apierrors.Internal(err)
	}
	if _, err := p.DB().ExecContext(ctx,
		`GRANT EXECUTE ON FUNCTION pgbouncer.user_lookup(text) TO pgbouncer`,
	); err != nil {
		return apierrors.Internal(err)
	}
	return nil
}
