// Package dbconn implements the ConnectionManager: an immutable connection
// template plus a keyed registry of per-database connection pools scoped to
// infrequent, short-lived administrative work against the external server.
package dbconn

import (
	"fmt"
	"net/url"
)

// SSLMode enumerates the accepted libpq sslmode values.
type SSLMode string

// Accepted SSLMode values, matching libpq's own set.
const (
	SSLDisable    SSLMode = "disable"
	SSLAllow      SSLMode = "allow"
	SSLPrefer     SSLMode = "prefer"
	SSLRequire    SSLMode = "require"
	SSLVerifyCA   SSLMode = "verify-ca"
	SSLVerifyFull SSLMode = "verify-full"
)

// Template is the immutable administrative connection template built once
// at startup. Host and SocketDir are mutually exclusive; Host wins when
// non-empty.
type Template struct {
	Host      string
	SocketDir string
	Port      string
	Username  string
	Password  string
	SSLMode   SSLMode

	// DefaultDatabase is the administrative database name, conventionally
	// "postgres". It is never a managed entry.
	DefaultDatabase string
}

// dsn renders a libpq connection string for the given database name,
// falling back to the unix socket directory when Host is empty.
//
// A socket directory cannot be placed in the URL's host component: both
// net/url and pq.ParseURL treat everything after "@/" as the path, so
// "postgres://user@/var/run/postgresql:5432/db" silently parses with an
// empty host and a mangled path instead of selecting the socket. libpq's
// own URI form carries the socket directory as a "host" query parameter
// instead (see the lib/pq and libpq docs), so that form is used here.
func (t Template) dsn(database string) string {
	values := url.Values{}
	values.Set("sslmode", string(t.SSLMode))

	userInfo := url.UserPassword(t.Username, t.Password)

	if t.Host != "" {
		return fmt.Sprintf("postgres://%s@%s:%s/%s?%s",
			userInfo.String(), t.Host, t.Port, database, values.Encode())
	}

	values.Set("host", t.SocketDir)
	values.Set("port", t.Port)
	return fmt.Sprintf("postgres://%s@/%s?%s", userInfo.String(), database, values.Encode())
}

// AdminUsername exposes the template's administrative username, used by
// provisioning when reassigning ownership on retained deletes.
func (t Template) AdminUsername() string {
	return t.Username
}
