package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/arko-chat/protect/internal/session"
)

type contextKey string

const claimsKey = contextKey("claims")

// Auth rejects requests that carry no valid connection token.
func Auth(tokens *session.Tokens, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := tokens.Verify(session.FromRequest(r))
			if err != nil {
				logger.Warn("rejected connection", "remote", r.RemoteAddr, "err", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClaims(ctx context.Context) (session.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(session.Claims)
	return c, ok
}
