package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"courtside/gateway/internal/events"
	"courtside/gateway/internal/location"
	"courtside/gateway/internal/sportsapi"

	"github.com/go-chi/chi/v5"
)

// eventsStateResponse is what the list and map views render: the sorted
// items plus every flag the controls need. Field names are the gateway's
// own contract with the browser.
type eventsStateResponse struct {
	Events     []eventItem `json:"events"`
	TotalCount int         `json:"totalCount"`
	Offset     int         `json:"offset"`
	HasMore    bool        `json:"hasMore"`
	IsFetching bool        `json:"isFetching"`
	IsLoading  bool        `json:"isLoadingMore"`
	Error      string      `json:"error,omitempty"`

	Search        string  `json:"search"`
	CategoryID    int64   `json:"categoryId,omitempty"`
	DateFilter    string  `json:"dateFilter"`
	OpenSlotsOnly bool    `json:"openSlotsOnly"`
	SortBy        string  `json:"sortBy"`
	RadiusKm      float64 `json:"radiusKm,omitempty"`

	Latitude              *float64 `json:"latitude"`
	Longitude             *float64 `json:"longitude"`
	IsLocating            bool     `json:"isLocating"`
	LocationError         string   `json:"locationError,omitempty"`
	ShowDistanceControls  bool     `json:"showDistanceControls"`
	UserRequestedLocation bool     `json:"userRequestedLocation"`
}

type eventItem struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Date              time.Time `json:"date"`
	City              string    `json:"city,omitempty"`
	Latitude          *float64  `json:"latitude"`
	Longitude         *float64  `json:"longitude"`
	Slots             int       `json:"slots"`
	ParticipantsCount int       `json:"participantsCount"`
	IsJoined          bool      `json:"isJoined"`
	CreatorID         int64     `json:"creatorId"`
	CreatorName       string    `json:"creatorName"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (h *Handler) stateResponse(store *events.Store) eventsStateResponse {
	snap := store.Snapshot()
	sorted := events.SortEvents(snap.Items, snap.Filters.SortBy, snap.Latitude, snap.Longitude)

	items := make([]eventItem, 0, len(sorted))
	for _, e := range sorted {
		items = append(items, eventItem{
			ID:                e.ID,
			Title:             e.Title,
			Description:       e.Description,
			Date:              e.Date,
			City:              e.City,
			Latitude:          e.Latitude,
			Longitude:         e.Longitude,
			Slots:             e.Slots,
			ParticipantsCount: e.ParticipantsCount,
			IsJoined:          e.IsAuthenticatedUserJoined,
			CreatorID:         e.CreatedBy.ID,
			CreatorName:       e.CreatedBy.Username,
			CreatedAt:         e.CreatedAt,
		})
	}

	return eventsStateResponse{
		Events:                items,
		TotalCount:            snap.TotalCount,
		Offset:                snap.Offset,
		HasMore:               snap.HasMore,
		IsFetching:            snap.IsFetching,
		IsLoading:             snap.IsLoading,
		Error:                 snap.Error,
		Search:                snap.Filters.Search,
		CategoryID:            snap.Filters.CategoryID,
		DateFilter:            string(snap.Filters.DateFilter),
		OpenSlotsOnly:         snap.Filters.OpenSlotsOnly,
		SortBy:                string(snap.Filters.SortBy),
		RadiusKm:              snap.Filters.RadiusKm,
		Latitude:              snap.Latitude,
		Longitude:             snap.Longitude,
		IsLocating:            snap.IsLocating,
		LocationError:         snap.LocationError,
		ShowDistanceControls:  snap.ShowDistanceControls,
		UserRequestedLocation: snap.UserRequestedLocation,
	}
}

// ListEvents returns the session's current list state. The first call per
// session hydrates the store with page zero from the remote API; later
// calls (and re-renders) only read, so they cannot clobber in-progress
// filtering.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}

	if sess.MarkHydrated() {
		ctx, cancel := h.withTimeout(r.Context())
		defer cancel()

		params := events.BuildParams(events.DefaultFilters(), nil, nil, time.Now())
		params.Set("limit", strconv.Itoa(events.DefaultPageSize))
		params.Set("offset", "0")
		page, err := h.api.FetchEvents(ctx, params, sess.Token())
		if err != nil {
			logger.Error("action", "action", "hydrate_events", "status", "upstream_error", "error", err)
			writeUpstreamError(w, err, "failed to fetch events")
			return
		}
		sess.Store.Hydrate(page.Results, page.Count)
		logger.Info("action", "action", "hydrate_events", "status", "success", "count", page.Count, "page_len", len(page.Results))
	}

	writeJSON(w, http.StatusOK, h.stateResponse(sess.Store))
}

type applyFiltersRequest struct {
	Search        string  `json:"search"`
	CategoryID    int64   `json:"categoryId"`
	DateFilter    string  `json:"dateFilter"`
	OpenSlotsOnly bool    `json:"openSlotsOnly"`
	SortBy        string  `json:"sortBy"`
	RadiusKm      float64 `json:"radiusKm"`
}

// ApplyFilters replaces the session's filter selections and re-fetches
// page zero.
func (h *Handler) ApplyFilters(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}

	var req applyFiltersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "apply_filters", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.RadiusKm < 0 || req.RadiusKm > 20000 {
		logger.Warn("action", "action", "apply_filters", "status", "invalid_radius")
		writeError(w, http.StatusBadRequest, "invalid radius")
		return
	}

	sess.Store.SetFilters(events.FilterState{
		Search:        req.Search,
		CategoryID:    req.CategoryID,
		DateFilter:    events.DateFilter(req.DateFilter),
		OpenSlotsOnly: req.OpenSlotsOnly,
		SortBy:        events.SortOption(req.SortBy),
		RadiusKm:      req.RadiusKm,
	})

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	if err := sess.Store.ApplyFilters(ctx, sess.Token()); err != nil {
		logger.Warn("action", "action", "apply_filters", "status", "upstream_error", "error", err)
	} else {
		logger.Info("action", "action", "apply_filters", "status", "success")
	}

	writeJSON(w, http.StatusOK, h.stateResponse(sess.Store))
}

// ClearFilters resets every selection to defaults and re-fetches.
func (h *Handler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	if err := sess.Store.ClearFilters(ctx, sess.Token()); err != nil {
		logger.Warn("action", "action", "clear_filters", "status", "upstream_error", "error", err)
	} else {
		logger.Info("action", "action", "clear_filters", "status", "success")
	}

	writeJSON(w, http.StatusOK, h.stateResponse(sess.Store))
}

// LoadMore appends the next page. Duplicate triggers (scroll spam, a fetch
// already in flight, no further pages) fall through to a plain snapshot.
func (h *Handler) LoadMore(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	if err := sess.Store.LoadMore(ctx, sess.Token()); err != nil {
		logger.Warn("action", "action", "load_more", "status", "upstream_error", "error", err)
	} else {
		logger.Info("action", "action", "load_more", "status", "success")
	}

	writeJSON(w, http.StatusOK, h.stateResponse(sess.Store))
}

type requestLocationRequest struct {
	Auto      bool     `json:"auto"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// RequestLocation feeds a position into the session store: the browser's
// own geolocation fix when the body carries coordinates, an IP lookup
// otherwise. Auto acquisitions fail silently per the store's contract.
func (h *Handler) RequestLocation(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}

	var req requestLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "request_location", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	var source location.Locator
	switch {
	case req.Latitude != nil && req.Longitude != nil:
		source = location.Static{Latitude: *req.Latitude, Longitude: *req.Longitude}
	case h.geoip != nil:
		source = h.geoip.For(clientIP(r))
	default:
		if !req.Auto {
			writeError(w, http.StatusBadRequest, "no location source available")
			return
		}
		writeJSON(w, http.StatusOK, h.stateResponse(sess.Store))
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	if err := sess.Store.RequestLocation(ctx, source, req.Auto, sess.Token()); err != nil {
		logger.Warn("action", "action", "request_location", "status", "failed", "auto", req.Auto, "error", err)
	} else {
		logger.Info("action", "action", "request_location", "status", "success", "auto", req.Auto)
	}

	writeJSON(w, http.StatusOK, h.stateResponse(sess.Store))
}

// GetEvent proxies a single event fetch.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}
	eventID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		logger.Warn("action", "action", "get_event", "status", "invalid_event_id")
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	event, err := h.api.FetchEvent(ctx, eventID, sess.Token())
	if err != nil {
		logger.Warn("action", "action", "get_event", "status", "upstream_error", "event_id", eventID, "error", err)
		writeUpstreamError(w, err, "failed to fetch event")
		return
	}
	logger.Info("action", "action", "get_event", "status", "success", "event_id", eventID)
	writeJSON(w, http.StatusOK, event)
}

// ListCategories proxies the category list for the filter controls.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	categories, err := h.api.FetchCategories(ctx)
	if err != nil {
		logger.Error("action", "action", "list_categories", "status", "upstream_error", "error", err)
		writeUpstreamError(w, err, "failed to fetch categories")
		return
	}
	logger.Info("action", "action", "list_categories", "status", "success", "count", len(categories))
	writeJSON(w, http.StatusOK, categories)
}

// CreateEvent validates and forwards a create request.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok || sess.Token() == "" {
		logger.Warn("action", "action", "create_event", "status", "unauthorized")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req sportsapi.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "create_event", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		logger.Warn("action", "action", "create_event", "status", "validation_failed", "error", err)
		writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		logger.Warn("action", "action", "create_event", "status", "lone_coordinate")
		writeError(w, http.StatusBadRequest, "latitude and longitude must be set together")
		return
	}
	if req.Date.Before(time.Now()) {
		logger.Warn("action", "action", "create_event", "status", "date_in_past")
		writeError(w, http.StatusBadRequest, "event date cannot be in the past")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	event, err := h.api.CreateEvent(ctx, req, sess.Token())
	if err != nil {
		logger.Error("action", "action", "create_event", "status", "upstream_error", "error", err)
		writeUpstreamError(w, err, "failed to create event")
		return
	}
	logger.Info("action", "action", "create_event", "status", "success", "event_id", event.ID, "title", event.Title)
	writeJSON(w, http.StatusCreated, event)
}

// JoinEvent forwards a join and, on success only, reflects it into the
// session's list so the card updates without a re-fetch.
func (h *Handler) JoinEvent(w http.ResponseWriter, r *http.Request) {
	h.participation(w, r, true)
}

// LeaveEvent is the inverse of JoinEvent.
func (h *Handler) LeaveEvent(w http.ResponseWriter, r *http.Request) {
	h.participation(w, r, false)
}

func (h *Handler) participation(w http.ResponseWriter, r *http.Request, join bool) {
	action := "leave_event"
	if join {
		action = "join_event"
	}
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok || sess.Token() == "" {
		logger.Warn("action", "action", action, "status", "unauthorized")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limiterKey := sess.ID
	if user := sess.User(); user != nil {
		limiterKey = strconv.FormatInt(user.ID, 10)
	}
	if !h.joinLeaveLimiter.Allow(limiterKey) {
		logger.Warn("action", "action", action, "status", "rate_limited")
		writeError(w, http.StatusTooManyRequests, "rate limit")
		return
	}
	eventID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		logger.Warn("action", "action", action, "status", "invalid_event_id")
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	if join {
		err = h.api.JoinEvent(ctx, eventID, sess.Token())
	} else {
		err = h.api.LeaveEvent(ctx, eventID, sess.Token())
	}
	if err != nil {
		logger.Warn("action", "action", action, "status", "upstream_error", "event_id", eventID, "error", err)
		writeUpstreamError(w, err, "participation update failed")
		return
	}

	sess.Store.UpdateParticipation(eventID, join)
	logger.Info("action", "action", action, "status", "success", "event_id", eventID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

type participationRequest struct {
	IsJoined bool `json:"isJoined"`
}

// SetParticipation reflects a join or leave confirmed elsewhere (another
// tab, a deep-linked detail page) into the session's list without a round
// trip to the remote API.
func (h *Handler) SetParticipation(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	sess, ok := h.sessionFor(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}
	eventID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		logger.Warn("action", "action", "set_participation", "status", "invalid_event_id")
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	var req participationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "set_participation", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	sess.Store.UpdateParticipation(eventID, req.IsJoined)
	logger.Info("action", "action", "set_participation", "status", "success", "event_id", eventID, "joined", req.IsJoined)
	writeJSON(w, http.StatusOK, h.stateResponse(sess.Store))
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
