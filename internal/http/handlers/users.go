package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// GetUser proxies a public profile fetch.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		logger.Warn("action", "action", "get_user", "status", "invalid_user_id")
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	user, err := h.api.FetchUser(ctx, userID, sess.Token())
	if err != nil {
		logger.Warn("action", "action", "get_user", "status", "upstream_error", "user_id", userID, "error", err)
		writeUpstreamError(w, err, "failed to fetch user")
		return
	}
	logger.Info("action", "action", "get_user", "status", "success", "user_id", userID)
	writeJSON(w, http.StatusOK, user)
}
