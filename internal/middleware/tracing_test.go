package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/custody-ledger/internal/logging"
)

func TestTracing(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated when absent"},
		{name: "kept from the confirmation channel", incoming: "approval-7f3c", keep: true},
		{name: "whitespace replaced", incoming: "a b"},
		{name: "control characters replaced", incoming: "id\x00x"},
		{name: "oversized replaced", incoming: strings.Repeat("r", maxRequestIDLen+1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = logging.RequestID(r.Context())
			})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions", nil)
			if tc.incoming != "" {
				req.Header.Set(logging.RequestIDHeader, tc.incoming)
			}
			rr := httptest.NewRecorder()
			Tracing(next).ServeHTTP(rr, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rr.Header().Get(logging.RequestIDHeader))
			if tc.keep {
				assert.Equal(t, tc.incoming, seen)
				return
			}
			_, err := uuid.Parse(seen)
			assert.NoError(t, err)
		})
	}
}
