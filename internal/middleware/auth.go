package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/custody-ledger/internal/auth"
	"github.com/josh-kwaku/custody-ledger/internal/handler"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
)

type tokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Auth admits requests carrying a valid account session token and stores the
// caller's claims in the context.
func Auth(tokens tokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				logging.FromContext(r.Context()).Infow("token rejected", "error", err)
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			ctx := auth.WithClaims(r.Context(), claims)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("account_id", claims.AccountID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
