// Package storetest provides an in-memory database.Executor for exercising
// the store and manager layers without a running Postgres. It recognizes
// the statements the store layer issues and keeps rows in maps;
// transactions run against a snapshot that replaces the committed state on
// Commit and is dropped on Rollback.
package storetest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/virelio/accountcore/entity"
	"github.com/virelio/accountcore/pkg/database"
)

type state struct {
	accounts map[string]entity.Account
	logs     []entity.ModifyLog
	otps     map[string]entity.OTP
}

func newState() *state {
	return &state{
		accounts: map[string]entity.Account{},
		otps:     map[string]entity.OTP{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.otps {
		c.otps[k] = v
	}
	c.logs = append(c.logs, s.logs...)
	return c
}

// MemGateway is an in-memory stand-in for *database.Gateway.
type MemGateway struct {
	mu sync.Mutex
	st *state

	// FailOn injects an error for any statement containing the key.
	// The special key "COMMIT" fails transaction commits.
	FailOn map[string]error
}

func NewMemGateway() *MemGateway {
	return &MemGateway{st: newState(), FailOn: map[string]error{}}
}

var _ database.Executor = (*MemGateway)(nil)

func (g *MemGateway) injected(query string) error {
	for k, err := range g.FailOn {
		if k != "" && strings.Contains(query, k) {
			return err
		}
	}
	return nil
}

func (g *MemGateway) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected(query); err != nil {
		return 0, err
	}
	return apply(g.st, query, args)
}

func (g *MemGateway) Get(ctx context.Context, dest any, query string, args ...any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected(query); err != nil {
		return err
	}
	return get(g.st, dest, query, args)
}

func (g *MemGateway) Select(ctx context.Context, dest any, query string, args ...any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected(query); err != nil {
		return err
	}
	return selectInto(g.st, dest, query, args)
}

func (g *MemGateway) Begin(ctx context.Context) (database.TxHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("BEGIN"); err != nil {
		return nil, err
	}
	return &memTx{g: g, st: g.st.clone()}, nil
}

// AccountRow returns the committed account row, if present.
func (g *MemGateway) AccountRow(id string) (entity.Account, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.st.accounts[id]
	return a, ok
}

// LogsFor returns the committed audit entries for an account, in insert
// order.
func (g *MemGateway) LogsFor(accountID string) []entity.ModifyLog {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []entity.ModifyLog
	for _, l := range g.st.logs {
		if l.AccountID == accountID {
			out = append(out, l)
		}
	}
	return out
}

// OTPRows returns all committed OTP rows for an account, newest first.
func (g *MemGateway) OTPRows(accountID string) []entity.OTP {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []entity.OTP
	for _, o := range g.st.otps {
		if o.AccountID == accountID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreateDate.After(out[j].CreateDate) })
	return out
}

type memTx struct {
	g    *MemGateway
	st   *state
	done bool
}

func (t *memTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if t.done {
		return 0, sql.ErrTxDone
	}
	if err := t.g.injected(query); err != nil {
		return 0, err
	}
	return apply(t.st, query, args)
}

func (t *memTx) Get(ctx context.Context, dest any, query string, args ...any) error {
	if t.done {
		return sql.ErrTxDone
	}
	if err := t.g.injected(query); err != nil {
		return err
	}
	return get(t.st, dest, query, args)
}

func (t *memTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	if err := t.g.injected("COMMIT"); err != nil {
		return &database.CommitError{Err: err}
	}
	t.g.mu.Lock()
	t.g.st = t.st
	t.g.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	return nil
}

// apply executes a write statement against st and returns the affected
// row count, mirroring what Postgres would report for the store layer's
// statements.
func apply(st *state, query string, args []any) (int64, error) {
	switch {
	case strings.HasPrefix(query, "CREATE TABLE"), strings.HasPrefix(query, "CREATE INDEX"):
		return 0, nil

	case strings.HasPrefix(query, "INSERT INTO account_modify_log"):
		st.logs = append(st.logs, entity.ModifyLog{
			ID:           args[0].(string),
			AccountID:    args[1].(string),
			Action:       args[2].(string),
			ActionDetail: args[3].(string),
			Date:         args[4].(time.Time),
		})
		return 1, nil

	case strings.HasPrefix(query, "INSERT INTO account_otp"):
		otp := entity.OTP{
			ID:         args[0].(string),
			AccountID:  args[1].(string),
			Code:       args[2].(string),
			CreateDate: args[3].(time.Time),
			ExpDate:    args[4].(*time.Time),
			VerifyDate: args[5].(*time.Time),
			RetryCount: args[6].(int),
			Used:       args[7].(entity.OTPState),
		}
		if _, exists := st.otps[otp.ID]; exists {
			return 0, storageErr(query, "duplicate key value violates unique constraint \"account_otp_pkey\"")
		}
		st.otps[otp.ID] = otp
		return 1, nil

	case strings.HasPrefix(query, "INSERT INTO account"):
		acct := entity.Account{
			ID:            args[0].(string),
			Email:         args[1].(string),
			Password:      args[2].(string),
			Name:          args[3].(string),
			Phone:         args[4].(string),
			PhoneAreaCode: args[5].(string),
			Status:        args[7].(entity.Status),
		}
		created := args[6].(time.Time)
		acct.CreateDate = &created
		if _, exists := st.accounts[acct.ID]; exists {
			return 0, storageErr(query, "duplicate key value violates unique constraint \"account_pkey\"")
		}
		for _, other := range st.accounts {
			if other.Email == acct.Email {
				return 0, storageErr(query, "duplicate key value violates unique constraint \"account_email_key\"")
			}
		}
		st.accounts[acct.ID] = acct
		return 1, nil

	case strings.HasPrefix(query, "UPDATE account SET password"):
		id := args[1].(string)
		acct, ok := st.accounts[id]
		if !ok {
			return 0, nil
		}
		acct.Password = args[0].(string)
		st.accounts[id] = acct
		return 1, nil

	case strings.HasPrefix(query, "UPDATE account SET name"):
		id := args[7].(string)
		acct, ok := st.accounts[id]
		if !ok {
			return 0, nil
		}
		acct.Name = args[0].(string)
		acct.Email = args[1].(string)
		acct.Phone = args[2].(string)
		acct.PhoneAreaCode = args[3].(string)
		acct.Status = args[4].(entity.Status)
		acct.LoginFailCount = args[5].(int)
		acct.LastLoginDate = args[6].(*time.Time)
		st.accounts[id] = acct
		return 1, nil

	case strings.HasPrefix(query, "UPDATE account_otp SET used"):
		id := args[3].(string)
		otp, ok := st.otps[id]
		if !ok {
			return 0, nil
		}
		otp.Used = args[0].(entity.OTPState)
		otp.VerifyDate = args[1].(*time.Time)
		otp.RetryCount = args[2].(int)
		st.otps[id] = otp
		return 1, nil

	case strings.HasPrefix(query, "DELETE FROM account_otp"):
		id := args[0].(string)
		if _, ok := st.otps[id]; !ok {
			return 0, nil
		}
		delete(st.otps, id)
		return 1, nil

	case strings.HasPrefix(query, "DELETE FROM account"):
		id := args[0].(string)
		if _, ok := st.accounts[id]; !ok {
			return 0, nil
		}
		delete(st.accounts, id)
		// FK cascade
		var kept []entity.ModifyLog
		for _, l := range st.logs {
			if l.AccountID != id {
				kept = append(kept, l)
			}
		}
		st.logs = kept
		for oid, o := range st.otps {
			if o.AccountID == id {
				delete(st.otps, oid)
			}
		}
		return 1, nil
	}
	return 0, fmt.Errorf("memgateway: unrecognized statement: %s", query)
}

func get(st *state, dest any, query string, args []any) error {
	acct, ok := dest.(*entity.Account)
	if !ok {
		return fmt.Errorf("memgateway: unsupported get dest %T", dest)
	}
	switch {
	case strings.Contains(query, "FROM account WHERE id"):
		if a, ok := st.accounts[args[0].(string)]; ok {
			*acct = a
			return nil
		}
		return sql.ErrNoRows
	case strings.Contains(query, "FROM account WHERE email"):
		for _, a := range st.accounts {
			if a.Email == args[0].(string) {
				*acct = a
				return nil
			}
		}
		return sql.ErrNoRows
	}
	return fmt.Errorf("memgateway: unrecognized query: %s", query)
}

func selectInto(st *state, dest any, query string, args []any) error {
	switch d := dest.(type) {
	case *[]entity.OTP:
		var out []entity.OTP
		accountID := args[0].(string)
		used := args[1].(entity.OTPState)
		for _, o := range st.otps {
			if o.AccountID == accountID && o.Used == used {
				out = append(out, o)
			}
		}
		if strings.Contains(query, "LIMIT 1") && len(out) > 1 {
			out = out[:1]
		}
		*d = out
		return nil

	case *[]entity.Account:
		var out []entity.Account
		for _, a := range st.accounts {
			if len(args) > 0 && strings.Contains(query, "email") && a.Email != args[0] {
				continue
			}
			out = append(out, a)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		*d = out
		return nil

	case *[]entity.ModifyLog:
		var out []entity.ModifyLog
		for _, l := range st.logs {
			if len(args) > 0 && strings.Contains(query, "account_id") && l.AccountID != args[0] {
				continue
			}
			out = append(out, l)
		}
		*d = out
		return nil
	}
	return fmt.Errorf("memgateway: unsupported select dest %T", dest)
}

func storageErr(query, msg string) error {
	return &database.StorageError{Query: query, Err: errors.New(msg)}
}
