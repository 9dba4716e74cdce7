package httpmiddleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

type sessionIDKey struct{}

// SessionIDFromContext returns the session id set by SessionCookie, or "".
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SessionConfig configures the SessionCookie middleware.
type SessionConfig struct {
	CookieName string
	// MaxAge of the cookie; refreshed on every request.
	MaxAge time.Duration
	Secure bool
	// Valid reports whether a presented id is acceptable.
	Valid func(id string) bool
	// NewID issues a fresh id.
	NewID func() string
}

// SessionCookie makes sure every request carries a session id. A missing or
// invalid cookie is replaced by a fresh id.
func SessionCookie(cfg SessionConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(cfg.CookieName); err == nil && cfg.Valid(c.Value) {
				id = c.Value
			} else {
				id = cfg.NewID()
			}

			http.SetCookie(w, &http.Cookie{
				Name:     cfg.CookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(cfg.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := context.WithValue(r.Context(), sessionIDKey{}, id)
			ctx = zctx.With(ctx, zap.String("session_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
