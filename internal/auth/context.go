package auth

import (
	"context"

	"github.com/google/uuid"
)

type claimsKey struct{}

// WithClaims stores the verified caller for handlers further down.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// AccountIDFromContext returns the caller's account, the owner every
// transfer, exchange and idempotency key is checked against.
func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return c.AccountID, true
}
