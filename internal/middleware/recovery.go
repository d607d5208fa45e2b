package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/josh-kwaku/custody-ledger/internal/handler"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
)

// Recovery turns a handler panic into the INTERNAL_ERROR envelope. When the
// response has already started nothing more is written, and
// http.ErrAbortHandler is re-raised so net/http drops the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if err, ok := p.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(p)
			}

			fields := []any{
				"panic", p,
				"method", r.Method,
				"path", r.URL.Path,
				"response_started", rec.written,
				"stack", string(debug.Stack()),
			}
			if key := r.Header.Get(idempotencyKeyHeader); key != "" {
				fields = append(fields, "idempotency_key", key)
			}
			logging.FromContext(r.Context()).Errorw("panic recovered", fields...)

			if !rec.written {
				handler.RespondAppError(w, handler.ErrInternalError, nil)
			}
		}()

		next.ServeHTTP(rec, r)
	})
}
