// Package requestid assigns a correlation ID to every request so log lines
// and emitted events can be tied back to the originating call.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"ingot/pkg/requestcontext"
)

// Header is the inbound/outbound correlation header.
const Header = "X-Request-Id"

// Middleware propagates an existing X-Request-Id or assigns a fresh one.
// Apply early in the chain so downstream middleware can log with it.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(Header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
