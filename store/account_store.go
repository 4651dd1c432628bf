package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/virelio/accountcore/entity"
	"github.com/virelio/accountcore/pkg/database"
)

// AccountStore provides data access for the account table. Every compound
// operation (a mutation paired with its audit entry) runs in a single
// transaction: the entry never exists without the mutation having
// committed, and vice versa.
type AccountStore struct {
	db   database.Executor
	logs *ModifyLogStore
}

func NewAccountStore(db database.Executor) *AccountStore {
	return &AccountStore{db: db, logs: NewModifyLogStore(db)}
}

const (
	insertAccountSQL        = `INSERT INTO account (id, email, password, name, phone, phone_area_code, create_date, status) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	updateAccountSQL        = `UPDATE account SET name = $1, email = $2, phone = $3, phone_area_code = $4, status = $5, login_fail_count = $6, last_login_date = $7 WHERE id = $8`
	updatePasswordSQL       = `UPDATE account SET password = $1 WHERE id = $2`
	deleteAccountSQL        = `DELETE FROM account WHERE id = $1`
	selectAccountByIDSQL    = `SELECT * FROM account WHERE id = $1 LIMIT 1`
	selectAccountByEmailSQL = `SELECT * FROM account WHERE email = $1 LIMIT 1`
)

// rollbackOn aborts tx and folds a rollback failure into the original
// error; a failed rollback is a more severe, likely-inconsistent state.
func rollbackOn(tx database.TxHandle, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
	}
	return err
}

// Create inserts the account row and its NEW_USER audit entry in one
// transaction. The caller supplies the id and the serialized log detail.
func (s *AccountStore) Create(ctx context.Context, acct *entity.Account, detail string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	acct.CreateDate = &now

	n, err := tx.Exec(ctx, insertAccountSQL,
		acct.ID, acct.Email, acct.Password, acct.Name,
		acct.Phone, acct.PhoneAreaCode, now, acct.Status)
	if err != nil {
		return rollbackOn(tx, err)
	}
	if n != 1 {
		return rollbackOn(tx, &PersistenceError{Op: "insert account", Affected: n})
	}

	if _, err := s.logs.Insert(ctx, tx, acct.ID, entity.ActionNewUser, detail); err != nil {
		return rollbackOn(tx, err)
	}

	return tx.Commit()
}

// Update persists the mutable account fields. When writeLog is true an
// UPDATE_USER entry with the new state joins the same transaction;
// credential-verification bookkeeping passes false.
func (s *AccountStore) Update(ctx context.Context, acct *entity.Account, writeLog bool) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}

	n, err := tx.Exec(ctx, updateAccountSQL,
		acct.Name, acct.Email, acct.Phone, acct.PhoneAreaCode,
		acct.Status, acct.LoginFailCount, acct.LastLoginDate, acct.ID)
	if err != nil {
		return rollbackOn(tx, err)
	}
	if n != 1 {
		return rollbackOn(tx, &PersistenceError{Op: "update account", Affected: n})
	}

	if writeLog {
		detail, err := json.Marshal(acct)
		if err != nil {
			return rollbackOn(tx, err)
		}
		if _, err := s.logs.Insert(ctx, tx, acct.ID, entity.ActionUpdateUser, string(detail)); err != nil {
			return rollbackOn(tx, err)
		}
	}

	return tx.Commit()
}

// UpdatePassword stores a new password hash. Password changes are always
// audited, unlike general updates.
func (s *AccountStore) UpdatePassword(ctx context.Context, id, newHash string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}

	n, err := tx.Exec(ctx, updatePasswordSQL, newHash, id)
	if err != nil {
		return rollbackOn(tx, err)
	}
	if n != 1 {
		return rollbackOn(tx, &PersistenceError{Op: "update password", Affected: n})
	}

	detail, err := json.Marshal(map[string]string{"new_password": newHash})
	if err != nil {
		return rollbackOn(tx, err)
	}
	if _, err := s.logs.Insert(ctx, tx, id, entity.ActionUpdatePassword, string(detail)); err != nil {
		return rollbackOn(tx, err)
	}

	return tx.Commit()
}

// Delete removes the account; logs and OTPs go with it via cascade. The
// delete is deliberately outside the audit trail.
func (s *AccountStore) Delete(ctx context.Context, id string) error {
	n, err := s.db.Exec(ctx, deleteAccountSQL, id)
	if err != nil {
		return err
	}
	if n != 1 {
		return &PersistenceError{Op: "delete account", Affected: n}
	}
	return nil
}

// GetByID fetches one account or *NotFoundError.
func (s *AccountStore) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	var acct entity.Account
	if err := s.db.Get(ctx, &acct, selectAccountByIDSQL, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "account", Key: id}
		}
		return nil, err
	}
	return &acct, nil
}

// GetByEmail fetches one account by its unique email or *NotFoundError.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	var acct entity.Account
	if err := s.db.Get(ctx, &acct, selectAccountByEmailSQL, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "account", Key: email}
		}
		return nil, err
	}
	return &acct, nil
}

// SelectBySQL runs a caller-supplied query returning account rows.
func (s *AccountStore) SelectBySQL(ctx context.Context, query string, args ...any) ([]entity.Account, error) {
	var accts []entity.Account
	if err := s.db.Select(ctx, &accts, query, args...); err != nil {
		return nil, err
	}
	return accts, nil
}
