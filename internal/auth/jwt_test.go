package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/custody-ledger/internal/domain"
)

const testSecret = "test-jwt-secret"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTokens(ttl time.Duration) *Tokens {
	tk := NewTokens(testSecret, ttl)
	tk.now = func() time.Time { return testNow }
	return tk
}

func testAccount() *domain.Account {
	return &domain.Account{ID: uuid.New(), Phone: "+15550001111", FullName: "Alice", Status: domain.AccountStatusActive}
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims tokenClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(acct *domain.Account) tokenClaims {
	return tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{sessionAudience},
			Subject:   acct.ID.String(),
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(testNow),
		},
		AccountID: acct.ID.String(),
		Phone:     acct.Phone,
	}
}

func TestTokens_IssueAndVerify(t *testing.T) {
	tk := newTestTokens(24 * time.Hour)
	acct := testAccount()

	token, expires, err := tk.Issue(acct)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(24*time.Hour), expires)

	claims, err := tk.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, claims.AccountID)
	assert.Equal(t, acct.Phone, claims.Phone)
	assert.True(t, expires.Equal(claims.ExpiresAt))
}

func TestTokens_Verify(t *testing.T) {
	tk := newTestTokens(time.Hour)
	acct := testAccount()

	valid, _, err := tk.Issue(acct)
	require.NoError(t, err)
	expired, _, err := newTestTokens(-time.Hour).Issue(acct)
	require.NoError(t, err)

	otherIssuer := validClaims(acct)
	otherIssuer.Issuer = "someone-else"
	otherAudience := validClaims(acct)
	otherAudience.Audience = jwt.ClaimStrings{"custody-ledger/admin"}
	noExpiry := validClaims(acct)
	noExpiry.ExpiresAt = nil
	issuedLater := validClaims(acct)
	issuedLater.IssuedAt = jwt.NewNumericDate(testNow.Add(time.Hour))
	borrowedSubject := validClaims(acct)
	borrowedSubject.Subject = uuid.NewString()

	tests := []struct {
		name      string
		token     string
		secret    string
		wantErrIs error
	}{
		{"expired token", expired, testSecret, jwt.ErrTokenExpired},
		{"wrong secret", valid, "wrong-secret", jwt.ErrTokenSignatureInvalid},
		{"malformed token", "not.a.valid.jwt", testSecret, jwt.ErrTokenMalformed},
		{"empty token", "", testSecret, jwt.ErrTokenMalformed},
		{"foreign issuer", sign(t, jwt.SigningMethodHS256, []byte(testSecret), otherIssuer), testSecret, jwt.ErrTokenInvalidIssuer},
		{"foreign audience", sign(t, jwt.SigningMethodHS256, []byte(testSecret), otherAudience), testSecret, jwt.ErrTokenInvalidAudience},
		{"missing expiry", sign(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry), testSecret, jwt.ErrTokenRequiredClaimMissing},
		{"issued in the future", sign(t, jwt.SigningMethodHS256, []byte(testSecret), issuedLater), testSecret, jwt.ErrTokenUsedBeforeIssued},
		{"subject differs from account", sign(t, jwt.SigningMethodHS256, []byte(testSecret), borrowedSubject), testSecret, errSubjectMismatch},
		{"other HMAC size", sign(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims(acct)), testSecret, jwt.ErrTokenSignatureInvalid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := NewTokens(tc.secret, time.Hour)
			v.now = tk.now

			_, err := v.Verify(tc.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErrIs)
		})
	}
}

func TestTokens_RejectsNone(t *testing.T) {
	acct := testAccount()
	signed := sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims(acct))

	_, err := newTestTokens(time.Hour).Verify(signed)
	require.Error(t, err)
}

func TestAccountIDFromContext(t *testing.T) {
	id := uuid.New()
	ctx := WithClaims(t.Context(), &Claims{AccountID: id})

	got, ok := AccountIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = AccountIDFromContext(t.Context())
	assert.False(t, ok)
}
