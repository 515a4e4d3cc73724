package handlers

import (
	"encoding/json"
	"net/http"

	"courtside/gateway/internal/prefs"
)

type themeResponse struct {
	Theme string `json:"theme"`
}

// GetTheme returns the session's theme, dark when nothing is stored.
func (h *Handler) GetTheme(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}
	if h.prefs == nil {
		writeJSON(w, http.StatusOK, themeResponse{Theme: prefs.ThemeDark})
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	theme, err := h.prefs.Theme(ctx, sess.ID)
	if err != nil {
		logger.Warn("action", "action", "get_theme", "status", "store_error", "error", err)
		writeJSON(w, http.StatusOK, themeResponse{Theme: prefs.ThemeDark})
		return
	}
	writeJSON(w, http.StatusOK, themeResponse{Theme: theme})
}

// SetTheme stores the session's theme choice.
func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}
	if h.prefs == nil {
		writeError(w, http.StatusServiceUnavailable, "preferences unavailable")
		return
	}

	var req themeResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "set_theme", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	if err := h.prefs.SetTheme(ctx, sess.ID, req.Theme); err != nil {
		logger.Warn("action", "action", "set_theme", "status", "rejected", "theme", req.Theme, "error", err)
		writeError(w, http.StatusBadRequest, "invalid theme")
		return
	}
	logger.Info("action", "action", "set_theme", "status", "success", "theme", req.Theme)
	writeJSON(w, http.StatusOK, themeResponse{Theme: req.Theme})
}
