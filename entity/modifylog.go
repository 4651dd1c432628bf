package entity

import "time"

// Action tags recorded in account_modify_log.action.
const (
	ActionNewUser        = "NEW_USER"
	ActionUpdateUser     = "UPDATE_USER"
	ActionUpdatePassword = "UPDATE_PASSWORD"
)

// ModifyLog is an immutable audit record of a state-changing action against
// an account. It is written in the same transaction as the mutation it
// describes and is never updated afterwards.
type ModifyLog struct {
	ID           string    `db:"id" json:"id"`
	AccountID    string    `db:"account_id" json:"accountId"`
	Action       string    `db:"action" json:"action"`
	ActionDetail string    `db:"action_detail" json:"actionDetail"`
	Date         time.Time `db:"date" json:"date"`
}
