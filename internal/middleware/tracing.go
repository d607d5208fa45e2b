package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/custody-ledger/internal/logging"
)

// maxRequestIDLen matches what the confirmation channel stores per message.
const maxRequestIDLen = 128

// Tracing gives each request the id that follows it through settlement. The
// id is echoed on the response and kept in the context, where the logger and
// the approval and notification publishers pick it up. A caller-supplied id
// is kept when it is short printable ASCII, so a decision callback can carry
// the id of the approval request it answers.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(logging.RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}

		w.Header().Set(logging.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}
