package provisioning

import "regexp"

// identifierPattern matches the character class PostgreSQL identifiers
// must satisfy when they are interpolated directly into SQL text rather
// than bound as parameters (the dialect forbids bound parameters for
// role/database names).
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidIdentifier reports whether name is safe to interpolate directly
// into a DDL statement as a role or database name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}
