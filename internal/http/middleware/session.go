package middleware

import (
	"context"
	"net/http"

	"courtside/gateway/internal/auth"
	"courtside/gateway/internal/session"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionCookie is the browser cookie carrying the signed session token.
const SessionCookie = "courtside_session"

// SessionFromContext returns the request's session. Every request below the
// session middleware has one.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	val, ok := ctx.Value(sessionKey).(*session.Session)
	return val, ok
}

// SessionMiddleware resolves the session cookie into a live session,
// minting a new session (and cookie) when the cookie is absent, invalid or
// expired. The cookie carries only a signed session id.
func SessionMiddleware(manager *session.Manager, secret string, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var current *session.Session
			if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
				if claims, err := auth.ParseSessionToken(secret, cookie.Value); err == nil {
					current = manager.Get(claims.SessionID)
				}
			}
			if current == nil {
				current = manager.Create()
				if token, err := auth.SignSessionToken(secret, current.ID); err == nil {
					http.SetCookie(w, &http.Cookie{
						Name:     SessionCookie,
						Value:    token,
						Path:     "/",
						HttpOnly: true,
						Secure:   secure,
						SameSite: http.SameSiteLaxMode,
					})
				}
			}
			ctx := context.WithValue(r.Context(), sessionKey, current)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
