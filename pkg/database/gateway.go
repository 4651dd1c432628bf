package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// StorageError reports a fault from the underlying store. Query keeps the
// originating statement so operators can correlate failures with SQL.
type StorageError struct {
	Query string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %v\nSQL: %s", e.Err, e.Query)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(query string, err error) error {
	return &StorageError{Query: query, Err: err}
}

// CommitError reports a failed commit. The gateway rolls the transaction
// back internally before returning; RollbackErr is non-nil when that
// rollback itself failed, which leaves the store in a state needing
// operator attention.
type CommitError struct {
	Err         error
	RollbackErr error
}

func (e *CommitError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf("commit failed: %v (rollback also failed: %v)", e.Err, e.RollbackErr)
	}
	return fmt.Sprintf("commit failed: %v (rolled back)", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Executor is the transactional execution contract consumed by the store
// layer. *Gateway is the production implementation; test fakes provide an
// in-memory one.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Get(ctx context.Context, dest any, query string, args ...any) error
	Select(ctx context.Context, dest any, query string, args ...any) error
	Begin(ctx context.Context) (TxHandle, error)
}

// TxHandle is an open transaction. Exactly one of Commit or Rollback must
// be called; both release the underlying connection.
type TxHandle interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Get(ctx context.Context, dest any, query string, args ...any) error
	Commit() error
	Rollback() error
}

// Execer is the narrow statement surface shared by Executor and TxHandle,
// for operations that run either standalone or inside a caller's
// transaction.
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// Gateway executes statements against a relational store. Statements run
// through Exec/Get/Select use a connection scoped to the single call;
// Begin hands out a Tx bound to a dedicated connection which is released
// exactly once by Commit or Rollback, on every path.
type Gateway struct {
	db *sqlx.DB
}

func NewGateway(db *sqlx.DB) *Gateway { return &Gateway{db: db} }

var _ Executor = (*Gateway)(nil)

// Exec runs a single statement on an auto-managed connection and returns
// the affected row count.
func (g *Gateway) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storageErr(query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr(query, err)
	}
	return n, nil
}

// Get scans a single row into dest. A zero-row result surfaces as
// sql.ErrNoRows untouched so callers can map it to their own miss type.
func (g *Gateway) Get(ctx context.Context, dest any, query string, args ...any) error {
	err := g.db.GetContext(ctx, dest, query, args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return storageErr(query, err)
	}
	return err
}

// Select scans all matching rows into dest.
func (g *Gateway) Select(ctx context.Context, dest any, query string, args ...any) error {
	if err := g.db.SelectContext(ctx, dest, query, args...); err != nil {
		return storageErr(query, err)
	}
	return nil
}

// Begin acquires a dedicated connection and opens a transaction on it.
func (g *Gateway) Begin(ctx context.Context) (TxHandle, error) {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("BEGIN", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx is an open transaction on a dedicated connection. It is not safe for
// concurrent use by multiple goroutines.
type Tx struct {
	tx *sqlx.Tx
}

func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storageErr(query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr(query, err)
	}
	return n, nil
}

func (t *Tx) Get(ctx context.Context, dest any, query string, args ...any) error {
	err := t.tx.GetContext(ctx, dest, query, args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return storageErr(query, err)
	}
	return err
}

// Commit finalizes the transaction and releases its connection. When the
// commit fails the transaction is rolled back before returning; the
// returned *CommitError distinguishes a clean rollback from a rollback
// failure.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		rbErr := t.tx.Rollback()
		if errors.Is(rbErr, sql.ErrTxDone) {
			// driver already finalized the tx and released the
			// connection; nothing left to undo
			rbErr = nil
		}
		return &CommitError{Err: err, RollbackErr: rbErr}
	}
	return nil
}

// Rollback aborts the transaction and releases its connection.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return storageErr("ROLLBACK", err)
	}
	return nil
}
