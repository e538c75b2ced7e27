// Package apierrors defines the typed error taxonomy shared by the
// provisioning engine and the HTTP control plane, so that handlers can map
// an error to a status code without string-matching driver output.
package apierrors

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Sentinel errors checked with errors.Is. The control plane maps each one
// to an HTTP status (404, 400, 403 or 500); several share the same status.
var (
	// ErrInvalidPermissions means the connecting role lacks CREATEROLE or
	// CREATEDB on the target server.
	ErrInvalidPermissions = errors.New("connecting role lacks required permissions")

	// ErrDefaultDatabase means an operation was attempted against the
	// server's own administrative database, which is never managed.
	ErrDefaultDatabase = errors.New("refusing to operate on the default database")

	// ErrNoName means a request did not supply a database name.
	ErrNoName = errors.New("database name is required")

	// ErrNoPassword means a request did not supply a password.
	ErrNoPassword = errors.New("password is required")

	// ErrInvalidPassword means a supplied password failed validation.
	ErrInvalidPassword = errors.New("password is invalid")

	// ErrInvalidName means a supplied database name failed identifier
	// validation.
	ErrInvalidName = errors.New("database name is not a valid identifier")

	// ErrNotManaged means the named database has no corresponding pool or
	// CR and is therefore not under management (surfaced as HTTP 404).
	ErrNotManaged = errors.New("database is not managed")

	// ErrInternal wraps an unexpected failure, usually from the driver.
	ErrInternal = errors.New("internal error")
)

// Wrap annotates err with msg, matching the wrap-at-every-boundary
// convention the rest of this codebase follows with github.com/pkg/errors.
func Wrap(err error, msg string) error {
	return pkgerrors.Wrap(err, msg)
}

// Internal wraps an arbitrary driver/runtime error as ErrInternal so
// callers can errors.Is(err, ErrInternal) without string-matching the
// driver's message.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(ErrInternal, err.Error())
}
