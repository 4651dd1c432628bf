package store

import (
	"context"

	"github.com/virelio/accountcore/pkg/database"
)

// EnsureSchema creates the account, account_modify_log and account_otp
// tables if they do not exist (idempotent). Logs and OTPs are
// cascade-deleted with their account.
// This is a convenience for early development; prefer migrations in production.
func EnsureSchema(ctx context.Context, db database.Executor) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS account (
  id VARCHAR(50) PRIMARY KEY,
  email VARCHAR(320) NOT NULL UNIQUE,
  password VARCHAR(200) NOT NULL DEFAULT '',
  name VARCHAR(200) NOT NULL DEFAULT '',
  phone VARCHAR(100) DEFAULT '',
  phone_area_code VARCHAR(20) DEFAULT '',
  status SMALLINT NOT NULL DEFAULT 0,
  login_fail_count INT NOT NULL DEFAULT 0,
  create_date TIMESTAMPTZ,
  last_login_date TIMESTAMPTZ
)`,
		`CREATE INDEX IF NOT EXISTS idx_account_phone ON account (phone_area_code, phone)`,
		`CREATE TABLE IF NOT EXISTS account_modify_log (
  id VARCHAR(50) PRIMARY KEY,
  account_id VARCHAR(50) NOT NULL REFERENCES account(id) ON DELETE CASCADE,
  action VARCHAR(50) NOT NULL DEFAULT '',
  action_detail TEXT,
  date TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_account_modify_log_account ON account_modify_log (account_id)`,
		`CREATE TABLE IF NOT EXISTS account_otp (
  id VARCHAR(50) PRIMARY KEY,
  account_id VARCHAR(50) NOT NULL REFERENCES account(id) ON DELETE CASCADE,
  otp VARCHAR(50) NOT NULL DEFAULT '',
  create_date TIMESTAMPTZ NOT NULL,
  exp_date TIMESTAMPTZ,
  verify_date TIMESTAMPTZ,
  retry_count INT NOT NULL DEFAULT 0,
  used SMALLINT NOT NULL DEFAULT 1
)`,
		`CREATE INDEX IF NOT EXISTS idx_account_otp_account_used ON account_otp (account_id, used)`,
	}
	for _, stmt := range ddl {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
