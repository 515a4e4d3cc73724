package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courtside/gateway/internal/auth"
	"courtside/gateway/internal/events"
	"courtside/gateway/internal/session"
)

const testSecret = "test-secret"

func newTestManager() *session.Manager {
	return session.NewManager(func() *events.Store { return events.NewStore(nil) }, time.Hour)
}

func TestSessionMiddlewareMintsSessionAndCookie(t *testing.T) {
	manager := newTestManager()
	var seen *session.Session
	handler := SessionMiddleware(manager, testSecret, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))

	if seen == nil {
		t.Fatalf("expected a session in context")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookie {
		t.Fatalf("expected a session cookie, got %v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Fatalf("session cookie must be http-only")
	}
	claims, err := auth.ParseSessionToken(testSecret, cookies[0].Value)
	if err != nil {
		t.Fatalf("parse cookie token: %v", err)
	}
	if claims.SessionID != seen.ID {
		t.Fatalf("cookie session id %q does not match context session %q", claims.SessionID, seen.ID)
	}
}

func TestSessionMiddlewareReusesExistingSession(t *testing.T) {
	manager := newTestManager()
	existing := manager.Create()
	token, err := auth.SignSessionToken(testSecret, existing.ID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var seen *session.Session
	handler := SessionMiddleware(manager, testSecret, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != existing {
		t.Fatalf("expected the existing session to be reused")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("no new cookie should be set for a valid session")
	}
}

func TestSessionMiddlewareReplacesForgedCookie(t *testing.T) {
	manager := newTestManager()
	handler := SessionMiddleware(manager, testSecret, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "forged"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if len(rec.Result().Cookies()) != 1 {
		t.Fatalf("forged cookie should be replaced with a fresh session cookie")
	}
}
