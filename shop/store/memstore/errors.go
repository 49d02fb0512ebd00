package memstore

import "errors"

// errUnique mirrors a unique constraint violation in PostgreSQL.
var errUnique = errors.New("memstore: unique constraint violated")
