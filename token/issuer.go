// Package token issues short-lived HS256 proof tokens after a successful
// credential or OTP verification. It is a convenience surface for
// embedders; nothing in the core engine depends on it.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/virelio/accountcore/entity"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptySecret  = errors.New("token secret must not be empty")
)

// Issuer signs and verifies account tokens with a shared HMAC secret.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewIssuer(secret []byte, issuer string, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Issuer{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// Issue signs a token for the account.
func (i *Issuer) Issue(acct *entity.Account) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   i.issuer,
		"sub":   acct.ID,
		"email": acct.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(i.ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token and returns the account id it was
// issued for.
func (i *Issuer) Verify(tokenString string) (string, error) {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
