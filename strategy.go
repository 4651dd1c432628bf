package accountcore

import (
	"context"
	"encoding/hex"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/virelio/accountcore/entity"
	"github.com/virelio/accountcore/pkg/utilities"
	"github.com/virelio/accountcore/store"
)

// IDGenerator produces opaque unique identifiers for new rows.
type IDGenerator interface {
	NewID() (string, error)
}

// HashStrategy derives the stored credential from a plaintext password.
// The hash must be deterministic: verification re-hashes the supplied
// password and compares the results.
type HashStrategy interface {
	Hash(password string) (string, error)
}

// FreezeAction runs when an account exhausts its password retry limit.
// Implementations decide what lockout means; the default flips the status
// to frozen and persists it.
type FreezeAction interface {
	Freeze(ctx context.Context, acct *entity.Account) error
}

// UUIDGenerator issues random UUIDv4 identifiers. This is the default.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() (string, error) { return uuid.NewString(), nil }

// KSUIDGenerator issues sortable KSUID identifiers.
type KSUIDGenerator struct{}

func (KSUIDGenerator) NewID() (string, error) { return utilities.NewKSUID(), nil }

// SnowflakeGenerator issues snowflake identifiers for the given node.
// Node 0 falls back to the SNOWFLAKE_NODE environment variable.
type SnowflakeGenerator struct {
	Node int64
}

func (g SnowflakeGenerator) NewID() (string, error) {
	if g.Node == 0 {
		return utilities.NewSnowflakeID(), nil
	}
	return utilities.NewSnowflakeIDWithNode(g.Node), nil
}

// SHA3Hasher hashes passwords with SHA3-256, hex encoded. This is the
// default strategy and matches the account.password column comment.
type SHA3Hasher struct{}

func (SHA3Hasher) Hash(password string) (string, error) {
	sum := sha3.Sum256([]byte(password))
	return hex.EncodeToString(sum[:]), nil
}

// StatusFreezer is the default FreezeAction: mark the account frozen and
// persist, without writing a profile-update audit entry.
type StatusFreezer struct {
	accounts *store.AccountStore
}

func NewStatusFreezer(accounts *store.AccountStore) *StatusFreezer {
	return &StatusFreezer{accounts: accounts}
}

func (f *StatusFreezer) Freeze(ctx context.Context, acct *entity.Account) error {
	acct.Status = entity.StatusFrozen
	return f.accounts.Update(ctx, acct, false)
}
