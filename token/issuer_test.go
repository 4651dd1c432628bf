package token

import (
	"errors"
	"testing"
	"time"

	"github.com/virelio/accountcore/entity"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func TestIssueVerifyRoundTrip(t *testing.T) {
	iss, err := NewIssuer(secret, "accountcore-test", time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	tok, err := iss.Issue(&entity.Account{ID: "acct-1", Email: "a@x.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	sub, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub != "acct-1" {
		t.Errorf("subject = %q, want acct-1", sub)
	}
}

func TestVerifyRejects(t *testing.T) {
	iss, _ := NewIssuer(secret, "accountcore-test", time.Minute)
	acct := &entity.Account{ID: "acct-1", Email: "a@x.com"}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "garbage",
			token: func(t *testing.T) string {
				return "not.a.token"
			},
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				other, _ := NewIssuer([]byte("another-secret-another-secret-ok"), "accountcore-test", time.Minute)
				tok, err := other.Issue(acct)
				if err != nil {
					t.Fatalf("Issue: %v", err)
				}
				return tok
			},
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				other, _ := NewIssuer(secret, "someone-else", time.Minute)
				tok, err := other.Issue(acct)
				if err != nil {
					t.Fatalf("Issue: %v", err)
				}
				return tok
			},
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				short, _ := NewIssuer(secret, "accountcore-test", time.Minute)
				short.ttl = -time.Minute
				tok, err := short.Issue(acct)
				if err != nil {
					t.Fatalf("Issue: %v", err)
				}
				return tok
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := iss.Verify(tt.token(t))
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestNewIssuerValidation(t *testing.T) {
	if _, err := NewIssuer(nil, "x", time.Minute); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("error = %v, want ErrEmptySecret", err)
	}
	iss, err := NewIssuer(secret, "x", 0)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	if iss.ttl <= 0 {
		t.Errorf("ttl = %v, want positive default", iss.ttl)
	}
}
