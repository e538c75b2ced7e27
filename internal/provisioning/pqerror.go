package provisioning

import (
	"errors"

	"github.com/lib/pq"
)

// asPQError is a thin errors.As wrapper kept as its own function so
// callers read like the teacher's IsDoesNotExist/IsInvalidCatalog helpers.
func asPQError(err error, target **pq.Error) bool {
	return errors.As(err, target)
}
