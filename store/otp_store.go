package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/virelio/accountcore/entity"
	"github.com/virelio/accountcore/pkg/database"
)

// OTPStore manages the one-time password lifecycle, keeping at most one
// active code per account.
type OTPStore struct {
	db database.Executor
}

func NewOTPStore(db database.Executor) *OTPStore {
	return &OTPStore{db: db}
}

const (
	selectActiveOTPSQL = `SELECT * FROM account_otp WHERE account_id = $1 AND used = $2 LIMIT 1`
	insertOTPSQL       = `INSERT INTO account_otp (id, account_id, otp, create_date, exp_date, verify_date, retry_count, used) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	updateOTPSQL       = `UPDATE account_otp SET used = $1, verify_date = $2, retry_count = $3 WHERE id = $4`
	deleteOTPSQL       = `DELETE FROM account_otp WHERE id = $1`
)

// GetActive returns the single active OTP for the account, or (nil, nil)
// when none exists. Having no active code is a normal state, not an error.
func (s *OTPStore) GetActive(ctx context.Context, accountID string) (*entity.OTP, error) {
	var otps []entity.OTP
	if err := s.db.Select(ctx, &otps, selectActiveOTPSQL, accountID, entity.OTPActive); err != nil {
		return nil, err
	}
	if len(otps) == 0 {
		return nil, nil
	}
	return &otps[0], nil
}

// Issue creates a fresh active OTP expiring at now + ttl. Any existing
// active OTP for the account is deleted first, so the new code supersedes
// rather than coexists. Delete-then-insert runs sequentially, not in one
// transaction, matching the issuance contract.
func (s *OTPStore) Issue(ctx context.Context, accountID, code string, ttl time.Duration) (*entity.OTP, error) {
	prior, err := s.GetActive(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		if err := s.delete(ctx, prior.ID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	exp := now.Add(ttl)
	otp := &entity.OTP{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		Code:       code,
		CreateDate: now,
		ExpDate:    &exp,
		RetryCount: 0,
		Used:       entity.OTPActive,
	}

	n, err := s.db.Exec(ctx, insertOTPSQL,
		otp.ID, otp.AccountID, otp.Code, otp.CreateDate,
		otp.ExpDate, otp.VerifyDate, otp.RetryCount, otp.Used)
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, &PersistenceError{Op: "insert otp", Affected: n}
	}
	return otp, nil
}

// RecordAttempt persists the outcome of one verification attempt against
// otp and reports whether it verified. A match consumes the code and
// stamps the verify date. A mismatch increments the retry count; reaching
// retryLimit consumes the code anyway, so an exhausted OTP can never
// verify (fail closed).
func (s *OTPStore) RecordAttempt(ctx context.Context, otp *entity.OTP, matched bool, retryLimit int) (bool, error) {
	if matched {
		now := time.Now()
		if err := s.update(ctx, otp.ID, entity.OTPConsumed, &now, 0); err != nil {
			return false, err
		}
		return true, nil
	}

	retries := otp.RetryCount + 1
	state := entity.OTPActive
	if retries >= retryLimit {
		state = entity.OTPConsumed
	}
	if err := s.update(ctx, otp.ID, state, nil, retries); err != nil {
		return false, err
	}
	return false, nil
}

func (s *OTPStore) update(ctx context.Context, id string, state entity.OTPState, verifyDate *time.Time, retryCount int) error {
	n, err := s.db.Exec(ctx, updateOTPSQL, state, verifyDate, retryCount, id)
	if err != nil {
		return err
	}
	if n != 1 {
		return &PersistenceError{Op: "update otp", Affected: n}
	}
	return nil
}

func (s *OTPStore) delete(ctx context.Context, id string) error {
	n, err := s.db.Exec(ctx, deleteOTPSQL, id)
	if err != nil {
		return err
	}
	if n != 1 {
		return &PersistenceError{Op: "delete otp", Affected: n}
	}
	return nil
}
