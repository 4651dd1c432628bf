package entity

import "time"

// OTPState is the one-time password usability state. The wire encoding in
// account_otp.used follows the legacy schema: 1 means active (unused),
// 0 means consumed.
type OTPState int16

const (
	OTPConsumed OTPState = 0
	OTPActive   OTPState = 1
)

func (s OTPState) String() string {
	if s == OTPActive {
		return "active"
	}
	return "consumed"
}

// OTP is a short-lived single-use code bound to an account. At most one
// active OTP exists per account; issuing a new one supersedes the old.
// The active → consumed transition is terminal.
type OTP struct {
	ID         string     `db:"id" json:"id"`
	AccountID  string     `db:"account_id" json:"accountId"`
	Code       string     `db:"otp" json:"otp"`
	CreateDate time.Time  `db:"create_date" json:"createDate"`
	ExpDate    *time.Time `db:"exp_date" json:"expDate"`
	VerifyDate *time.Time `db:"verify_date" json:"verifyDate"`
	RetryCount int        `db:"retry_count" json:"retryCount"`
	Used       OTPState   `db:"used" json:"used"`
}
