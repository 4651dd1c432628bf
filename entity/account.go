package entity

import "time"

// Status is the account lifecycle state. The numeric values are stored
// directly in the account.status column.
type Status int16

const (
	StatusDisabled Status = 0
	StatusActive   Status = 1
	// StatusFrozen is reached automatically when consecutive failed
	// password checks exhaust the configured retry limit.
	StatusFrozen Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusDisabled:
		return "disabled"
	case StatusActive:
		return "active"
	case StatusFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// Account is an identity + credential row in the `account` table. It is the
// aggregate root: modify logs and OTPs are foreign-keyed to it and are
// cascade-deleted with it.
type Account struct {
	ID             string     `db:"id" json:"id"`
	Email          string     `db:"email" json:"email"`
	Password       string     `db:"password" json:"password"` // stored hash, never plaintext
	Name           string     `db:"name" json:"name"`
	Phone          string     `db:"phone" json:"phone"`
	PhoneAreaCode  string     `db:"phone_area_code" json:"phoneAreaCode"`
	Status         Status     `db:"status" json:"status"`
	LoginFailCount int        `db:"login_fail_count" json:"loginFailCount"`
	CreateDate     *time.Time `db:"create_date" json:"createDate"`
	LastLoginDate  *time.Time `db:"last_login_date" json:"lastLoginDate"`
}
