package accountcore

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/virelio/accountcore/entity"
	"github.com/virelio/accountcore/pkg/database"
	"github.com/virelio/accountcore/store"
)

// Manager orchestrates account, credential and OTP business operations
// over the store layer. Construct one per storage gateway; there is no
// package-level singleton.
type Manager struct {
	db       database.Executor
	accounts *store.AccountStore
	otps     *store.OTPStore
	logs     *store.ModifyLogStore

	ids     IDGenerator
	hasher  HashStrategy
	freezer FreezeAction
	log     *zap.SugaredLogger

	// configuration knobs
	ActiveStatus       entity.Status
	PasswordRetryLimit int
	OTPRetryLimit      int
	OTPExpiry          time.Duration
}

// NewManager builds a Manager with default policy: active status 1, five
// password retries before freezing, five OTP retries, one-hour OTP expiry,
// UUID ids, SHA3-256 password hashing. A nil logger disables logging.
func NewManager(db database.Executor, lg *zap.SugaredLogger) *Manager {
	if lg == nil {
		lg = zap.NewNop().Sugar()
	}
	accounts := store.NewAccountStore(db)
	return &Manager{
		db:       db,
		accounts: accounts,
		otps:     store.NewOTPStore(db),
		logs:     store.NewModifyLogStore(db),
		ids:      UUIDGenerator{},
		hasher:   SHA3Hasher{},
		freezer:  NewStatusFreezer(accounts),
		log:      lg,

		ActiveStatus:       entity.StatusActive,
		PasswordRetryLimit: 5,
		OTPRetryLimit:      5,
		OTPExpiry:          time.Hour,
	}
}

// SetIDGenerator replaces the identifier strategy used for new accounts.
func (m *Manager) SetIDGenerator(g IDGenerator) {
	if g != nil {
		m.ids = g
	}
}

// SetHashStrategy replaces the password hashing strategy.
func (m *Manager) SetHashStrategy(h HashStrategy) {
	if h != nil {
		m.hasher = h
	}
}

// SetFreezeAction replaces the handler invoked when an account exhausts
// its password retry limit.
func (m *Manager) SetFreezeAction(f FreezeAction) {
	if f != nil {
		m.freezer = f
	}
}

// InitSchema provisions the three tables. Idempotent.
func (m *Manager) InitSchema(ctx context.Context) error {
	if err := store.EnsureSchema(ctx, m.db); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Registration is the input to Register. A nil Status registers the
// account with the manager's ActiveStatus.
type Registration struct {
	Name          string         `json:"name"`
	Password      string         `json:"password"`
	Email         string         `json:"email"`
	PhoneAreaCode string         `json:"phoneAreaCode"`
	PhoneNumber   string         `json:"phoneNumber"`
	Status        *entity.Status `json:"status,omitempty"`
}

// Register creates a new account and returns its generated id. The insert
// and its NEW_USER audit entry commit atomically; id generation and
// password hashing happen before the transaction starts.
func (m *Manager) Register(ctx context.Context, in Registration) (string, error) {
	id, err := m.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("register: generate id: %w", err)
	}
	hash, err := m.hasher.Hash(in.Password)
	if err != nil {
		return "", fmt.Errorf("register: hash password: %w", err)
	}

	status := m.ActiveStatus
	if in.Status != nil {
		status = *in.Status
	}
	acct := &entity.Account{
		ID:            id,
		Email:         in.Email,
		Password:      hash,
		Name:          in.Name,
		Phone:         in.PhoneNumber,
		PhoneAreaCode: in.PhoneAreaCode,
		Status:        status,
	}

	detail, err := json.Marshal(acct)
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	if err := m.accounts.Create(ctx, acct, string(detail)); err != nil {
		return "", fmt.Errorf("register: %w", err)
	}

	m.log.Infow("account registered", "id", id, "email", in.Email)
	return id, nil
}

// GetByID fetches an account by id.
func (m *Manager) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	acct, err := m.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

// GetByEmail fetches an account by its unique email.
func (m *Manager) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	acct, err := m.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

// AccountsBySQL runs a caller-supplied query returning account rows.
func (m *Manager) AccountsBySQL(ctx context.Context, query string, args ...any) ([]entity.Account, error) {
	return m.accounts.SelectBySQL(ctx, query, args...)
}

// ModifyLogsBySQL runs a caller-supplied query returning audit rows.
func (m *Manager) ModifyLogsBySQL(ctx context.Context, query string, args ...any) ([]entity.ModifyLog, error) {
	return m.logs.SelectBySQL(ctx, query, args...)
}

// Update persists the account's mutable fields, optionally with an
// UPDATE_USER audit entry.
func (m *Manager) Update(ctx context.Context, acct *entity.Account, writeLog bool) error {
	if err := m.accounts.Update(ctx, acct, writeLog); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

// Delete hard-deletes the account; its audit entries and OTPs cascade.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.accounts.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// VerifyCredential checks the supplied password against the stored hash.
// The credential state (hash, fail count, status) is re-read from the
// store first so the retry counter stays authoritative; acct is refreshed
// in place. A non-active account always fails without counting the
// attempt. A wrong password increments the fail count, and reaching the
// retry limit triggers the freeze action before the count is persisted.
//
// Two concurrent verifications of the same account race on the fail count
// read-modify-write; the last committed write wins. That gap is accepted,
// not locked away.
func (m *Manager) VerifyCredential(ctx context.Context, acct *entity.Account, password string) (bool, error) {
	fresh, err := m.accounts.GetByID(ctx, acct.ID)
	if err != nil {
		return false, fmt.Errorf("verify credential: %w", err)
	}
	acct.Password = fresh.Password
	acct.LoginFailCount = fresh.LoginFailCount
	acct.Status = fresh.Status

	if acct.Status != m.ActiveStatus {
		return false, nil
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("verify credential: hash: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(acct.Password), []byte(hash)) != 1 {
		acct.LoginFailCount++
		if acct.LoginFailCount >= m.PasswordRetryLimit {
			if err := m.freezer.Freeze(ctx, acct); err != nil {
				return false, fmt.Errorf("verify credential: freeze: %w", err)
			}
			m.log.Warnw("account frozen", "id", acct.ID, "failCount", acct.LoginFailCount)
		}
		if err := m.accounts.Update(ctx, acct, false); err != nil {
			return false, fmt.Errorf("verify credential: %w", err)
		}
		return false, nil
	}

	acct.LoginFailCount = 0
	now := time.Now()
	acct.LastLoginDate = &now
	if err := m.accounts.Update(ctx, acct, false); err != nil {
		return false, fmt.Errorf("verify credential: %w", err)
	}
	return true, nil
}

// ChangePassword hashes and stores a new password, always with an
// UPDATE_PASSWORD audit entry, and refreshes acct's hash in place.
func (m *Manager) ChangePassword(ctx context.Context, acct *entity.Account, newPassword string) error {
	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("change password: hash: %w", err)
	}
	if err := m.accounts.UpdatePassword(ctx, acct.ID, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	acct.Password = hash
	return nil
}

// OTPOption adjusts a single OTP issuance.
type OTPOption func(*otpParams)

type otpParams struct {
	code string
	ttl  time.Duration
}

// WithCode issues the given code instead of a generated one.
func WithCode(code string) OTPOption {
	return func(p *otpParams) { p.code = code }
}

// WithTTL overrides the manager's OTPExpiry for this issuance.
func WithTTL(ttl time.Duration) OTPOption {
	return func(p *otpParams) { p.ttl = ttl }
}

// IssueOTP creates a fresh one-time code for the account, superseding any
// existing active one, and returns the code. The default code is a
// uniformly random 6-digit number.
func (m *Manager) IssueOTP(ctx context.Context, acct *entity.Account, opts ...OTPOption) (string, error) {
	p := otpParams{ttl: m.OTPExpiry}
	for _, opt := range opts {
		opt(&p)
	}
	if p.code == "" {
		code, err := sixDigitCode()
		if err != nil {
			return "", fmt.Errorf("issue otp: %w", err)
		}
		p.code = code
	}

	otp, err := m.otps.Issue(ctx, acct.ID, p.code, p.ttl)
	if err != nil {
		return "", fmt.Errorf("issue otp: %w", err)
	}
	m.log.Debugw("otp issued", "accountId", acct.ID, "otpId", otp.ID)
	return otp.Code, nil
}

// VerifyOTP checks code against the account's active OTP. With no active
// OTP there is nothing to penalize and it simply reports false. A
// mismatch records a failed attempt, consuming the code once the retry
// limit is exhausted; a match consumes it as verified.
//
// The stored expiry date is not checked here: an expired code that still
// matches verifies. Callers wanting strict expiry must compare ExpDate
// themselves.
func (m *Manager) VerifyOTP(ctx context.Context, acct *entity.Account, code string) (bool, error) {
	otp, err := m.otps.GetActive(ctx, acct.ID)
	if err != nil {
		return false, fmt.Errorf("verify otp: %w", err)
	}
	if otp == nil {
		return false, nil
	}

	matched := subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) == 1
	ok, err := m.otps.RecordAttempt(ctx, otp, matched, m.OTPRetryLimit)
	if err != nil {
		return false, fmt.Errorf("verify otp: %w", err)
	}
	return ok, nil
}

// sixDigitCode draws a uniformly random code in [100000, 999999].
func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
