package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"cronchat/internal/auth"

	"github.com/rs/zerolog"
)

type contextKey string

const SubjectKey contextKey = "admin_subject"

// RequireAdmin checks for a bearer admin token. With an empty key the guard
// is disabled and requests pass through.
func RequireAdmin(key []byte, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(key) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				deny(w, "Authentication required")
				return
			}

			claims, err := auth.ValidateToken(key, strings.TrimSpace(raw))
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Str("remote_addr", r.RemoteAddr).Msg("rejected admin token")
				deny(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), SubjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func deny(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="cronchat"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
