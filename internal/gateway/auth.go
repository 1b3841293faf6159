package gateway

import (
	"net/http"

	"github.com/rs/zerolog"
)

// APIKeyHeader carries the caller's credential. It is stripped before
// forwarding so the backend never sees gateway credentials.
const APIKeyHeader = "X-API-Key"

// Validator is the read side of the credential store.
type Validator interface {
	IsValid(key string) bool
}

// RequireKey rejects requests without a recognized credential. Every
// rejection is logged with enough detail to audit abuse (source, method,
// path) but never with the credential value itself.
func RequireKey(v Validator, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				authFailuresTotal.WithLabelValues("missing").Inc()
				log.Warn().
					Str("remote", r.RemoteAddr).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("request missing API key")
				writeJSONError(w, http.StatusUnauthorized,
					"missing API key, include the "+APIKeyHeader+" header")
				return
			}
			if !v.IsValid(key) {
				authFailuresTotal.WithLabelValues("invalid").Inc()
				log.Warn().
					Str("remote", r.RemoteAddr).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("key_prefix", keyPrefix(key)).
					Msg("invalid API key")
				writeJSONError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// keyPrefix truncates a credential for audit logs. Never log the full key.
func keyPrefix(key string) string {
	if len(key) > 10 {
		return key[:10] + "..."
	}
	return key
}
