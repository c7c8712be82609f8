package store

import (
	"database/sql"
	"fmt"
)

// ErrNotFound is returned when a row does not exist or belongs to another
// account. It aliases sql.ErrNoRows so queries can return the driver error
// unchanged.
var ErrNotFound = sql.ErrNoRows

// PersistenceError wraps a storage write failure. It is fatal to the
// transaction that triggered it; callers must not treat it as retryable
// within the same transaction.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
