package store

import "fmt"

// NotFoundError reports a point lookup that matched zero rows.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// PersistenceError reports a write that affected an unexpected number of
// rows: stale id, constraint violation, or a concurrent delete. Compound
// operations roll back when they hit one.
type PersistenceError struct {
	Op       string
	Affected int64
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s affected %d rows, want 1", e.Op, e.Affected)
}
