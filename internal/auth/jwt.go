package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

const (
	tokenIssuer     = "custody-ledger"
	sessionAudience = "custody-ledger/accounts"
)

var errSubjectMismatch = errors.New("subject does not match account_id")

// Claims identify the account a session token was issued to.
type Claims struct {
	AccountID uuid.UUID
	Phone     string
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id"`
	Phone     string `json:"phone"`
}

// Tokens issues and verifies HS256 account session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a session token for a registered account.
func (t *Tokens) Issue(acct *domain.Account) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{sessionAudience},
			Subject:   acct.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		AccountID: acct.ID.String(),
		Phone:     acct.Phone,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("Issue: %w", err)
	}
	return signed, expires, nil
}

// Verify checks the signature, issuer, audience and expiry of a session token.
func (t *Tokens) Verify(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(sessionAudience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)

	var tc tokenClaims
	if _, err := parser.ParseWithClaims(tokenString, &tc, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}

	if tc.Subject != tc.AccountID {
		return nil, fmt.Errorf("Verify: %w", errSubjectMismatch)
	}
	accountID, err := uuid.Parse(tc.AccountID)
	if err != nil {
		return nil, fmt.Errorf("Verify: invalid account_id in token: %w", err)
	}

	return &Claims{
		AccountID: accountID,
		Phone:     tc.Phone,
		ExpiresAt: tc.ExpiresAt.Time,
	}, nil
}
