package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"courtside/gateway/internal/sportsapi"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeUpstreamError maps a remote API failure onto our response: the
// upstream status and detail when we have them, 502 otherwise.
func writeUpstreamError(w http.ResponseWriter, err error, fallback string) {
	var apiErr *sportsapi.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Detail
		if message == "" {
			message = fallback
		}
		writeError(w, apiErr.StatusCode, message)
		return
	}
	writeError(w, http.StatusBadGateway, fallback)
}
