package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"courtside/gateway/internal/prefs"
	"courtside/gateway/internal/session"
	"courtside/gateway/internal/sportsapi"
)

// RefreshCookie carries the remote refresh token. It is scoped to the auth
// routes so the browser never sends it with ordinary API traffic.
const RefreshCookie = "courtside_refresh"

const refreshCookieTTL = 30 * 24 * time.Hour

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Login exchanges credentials with the remote API and binds the resulting
// access token to the session. The access token itself never reaches the
// browser; the refresh token travels only in an httpOnly cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "login", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		logger.Warn("action", "action", "login", "status", "validation_failed")
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	creds, err := h.api.Login(ctx, req.Username, req.Password)
	if err != nil {
		logger.Warn("action", "action", "login", "status", "upstream_error", "username", req.Username, "error", err)
		writeUpstreamError(w, err, "login failed")
		return
	}

	h.establishSession(ctx, sess, creds, w)
	logger.Info("action", "action", "login", "status", "success", "user_id", creds.User.ID)
	writeJSON(w, http.StatusOK, userFromCreds(creds))
}

// Register creates an account on the remote API and signs the session in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}

	var req sportsapi.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "register", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		logger.Warn("action", "action", "register", "status", "validation_failed", "error", err)
		writeError(w, http.StatusBadRequest, "invalid registration payload")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	creds, err := h.api.Register(ctx, req)
	if err != nil {
		logger.Warn("action", "action", "register", "status", "upstream_error", "username", req.Username, "error", err)
		writeUpstreamError(w, err, "registration failed")
		return
	}

	h.establishSession(ctx, sess, creds, w)
	logger.Info("action", "action", "register", "status", "success", "user_id", creds.User.ID)
	writeJSON(w, http.StatusCreated, userFromCreds(creds))
}

// Refresh rotates the access token from the refresh cookie. A missing or
// rejected cookie signs the session out so the client falls back to the
// login flow cleanly.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}

	cookie, err := r.Cookie(RefreshCookie)
	if err != nil || cookie.Value == "" {
		logger.Warn("action", "action", "refresh", "status", "no_cookie")
		writeError(w, http.StatusUnauthorized, "no refresh token")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	creds, err := h.api.RefreshToken(ctx, cookie.Value)
	if err != nil {
		sess.ClearCredentials()
		h.clearRefreshCookie(w)
		logger.Warn("action", "action", "refresh", "status", "rejected", "error", err)
		writeUpstreamError(w, err, "refresh failed")
		return
	}

	h.establishSession(ctx, sess, creds, w)
	logger.Info("action", "action", "refresh", "status", "success")
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// Logout drops the credentials and the stored identity. The session and
// its list state survive; signed-out browsing keeps working.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}

	sess.ClearCredentials()
	h.clearRefreshCookie(w)
	if h.prefs != nil {
		ctx, cancel := h.withTimeout(r.Context())
		defer cancel()
		if err := h.prefs.ClearIdentity(ctx, sess.ID); err != nil {
			logger.Warn("action", "action", "logout", "status", "identity_clear_failed", "error", err)
		}
	}
	logger.Info("action", "action", "logout", "status", "success")
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// Me reports who the session belongs to. With live credentials it returns
// the authenticated user; otherwise it falls back to the stored identity
// hints so the UI can pre-fill the login form.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}

	if user := sess.User(); user != nil && sess.Token() != "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"authenticated": true,
			"user": userResponse{
				ID:       user.ID,
				Username: user.Username,
				Email:    user.Email,
			},
		})
		return
	}

	response := map[string]interface{}{"authenticated": false}
	if h.prefs != nil {
		ctx, cancel := h.withTimeout(r.Context())
		defer cancel()
		hints, err := h.prefs.Identity(ctx, sess.ID)
		if err != nil {
			logger.Warn("action", "action", "me", "status", "identity_lookup_failed", "error", err)
		} else if hints.Username != "" {
			response["hints"] = hints
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) establishSession(ctx context.Context, sess *session.Session, creds sportsapi.Credentials, w http.ResponseWriter) {
	sess.SetCredentials(creds.Access, creds.User)
	if creds.Refresh != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     RefreshCookie,
			Value:    creds.Refresh,
			Path:     "/auth",
			MaxAge:   int(refreshCookieTTL.Seconds()),
			HttpOnly: true,
			Secure:   h.cfg.Env == "production",
			SameSite: http.SameSiteLaxMode,
		})
	}
	if h.prefs != nil && creds.User.ID != 0 {
		if err := h.prefs.SetIdentity(ctx, sess.ID, prefs.IdentityHints{
			UserID:   creds.User.ID,
			Username: creds.User.Username,
			Email:    creds.User.Email,
		}); err != nil {
			h.logger.Warn("action", "action", "set_identity", "status", "failed", "error", err)
		}
	}
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})
}

func userFromCreds(creds sportsapi.Credentials) userResponse {
	return userResponse{
		ID:       creds.User.ID,
		Username: creds.User.Username,
		Email:    creds.User.Email,
	}
}
