package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/virelio/accountcore/entity"
	"github.com/virelio/accountcore/pkg/database"
)

// ModifyLogStore appends immutable audit records. Insert takes the narrow
// Execer so callers can run it inside their own transaction; the entry then
// commits or rolls back together with the mutation it describes.
type ModifyLogStore struct {
	db database.Executor
}

func NewModifyLogStore(db database.Executor) *ModifyLogStore {
	return &ModifyLogStore{db: db}
}

const insertLogSQL = `INSERT INTO account_modify_log (id, account_id, action, action_detail, date) VALUES ($1, $2, $3, $4, $5)`

// Insert appends one audit entry and returns its generated id.
func (s *ModifyLogStore) Insert(ctx context.Context, ex database.Execer, accountID, action, detail string) (string, error) {
	logID := uuid.NewString()
	n, err := ex.Exec(ctx, insertLogSQL, logID, accountID, action, detail, time.Now())
	if err != nil {
		return "", err
	}
	if n != 1 {
		return "", &PersistenceError{Op: "insert modify log", Affected: n}
	}
	return logID, nil
}

// SelectBySQL runs a caller-supplied query returning modify log rows. It is
// the reporting escape hatch; callers own the statement.
func (s *ModifyLogStore) SelectBySQL(ctx context.Context, query string, args ...any) ([]entity.ModifyLog, error) {
	var logs []entity.ModifyLog
	if err := s.db.Select(ctx, &logs, query, args...); err != nil {
		return nil, err
	}
	return logs, nil
}
