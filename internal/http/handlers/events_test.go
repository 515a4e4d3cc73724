package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"courtside/gateway/internal/config"
	"courtside/gateway/internal/events"
	"courtside/gateway/internal/http/middleware"
	"courtside/gateway/internal/session"
	"courtside/gateway/internal/sportsapi"

	"github.com/go-chi/chi/v5"
)

// fixture wires the gateway against a fake remote API the way main does,
// with a cookie jar so session state carries across requests.
type fixture struct {
	upstream *httptest.Server
	server   *httptest.Server
	client   *http.Client
	handler  *Handler
}

func newFixture(t *testing.T, upstream http.Handler) *fixture {
	t.Helper()

	upstreamSrv := httptest.NewServer(upstream)
	t.Cleanup(upstreamSrv.Close)

	cfg := &config.Config{
		Env:           "test",
		APIBaseURL:    upstreamSrv.URL,
		APITimeout:    5 * time.Second,
		SessionSecret: "test-secret",
		SessionTTL:    time.Hour,
	}

	api := sportsapi.NewClient(sportsapi.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.APITimeout}, nil, nil)
	sessions := session.NewManager(func() *events.Store {
		return events.NewStore(api)
	}, cfg.SessionTTL)

	h := New(api, sessions, nil, nil, cfg, nil)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessions, cfg.SessionSecret, false))
		r.Get("/events", h.ListEvents)
		r.Post("/events", h.CreateEvent)
		r.Post("/events/filters", h.ApplyFilters)
		r.Post("/events/clear", h.ClearFilters)
		r.Post("/events/more", h.LoadMore)
		r.Post("/events/location", h.RequestLocation)
		r.Get("/events/categories", h.ListCategories)
		r.Get("/events/{id}", h.GetEvent)
		r.Post("/events/{id}/join", h.JoinEvent)
		r.Post("/events/{id}/leave", h.LeaveEvent)
		r.Post("/events/{id}/participation", h.SetParticipation)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/refresh", h.Refresh)
		r.Post("/auth/logout", h.Logout)
		r.Get("/me", h.Me)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}

	return &fixture{
		upstream: upstreamSrv,
		server:   srv,
		client:   &http.Client{Jar: jar},
		handler:  h,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func (f *fixture) getState(t *testing.T, method, path string, body interface{}) (int, eventsStateResponse) {
	t.Helper()
	resp, raw := f.do(t, method, path, body)
	var state eventsStateResponse
	if err := json.Unmarshal(raw, &state); err != nil {
		t.Fatalf("decode state: %v (%s)", err, raw)
	}
	return resp.StatusCode, state
}

func upstreamEvent(id int64, title string) map[string]interface{} {
	return map[string]interface{}{
		"id":                           id,
		"title":                        title,
		"description":                  "pickup game",
		"date":                         time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"slots":                        10,
		"participants_count":           3,
		"is_authenticated_user_joined": false,
		"created_by":                   map[string]interface{}{"id": int64(7), "username": "organizer"},
	}
}

func writePage(w http.ResponseWriter, items []map[string]interface{}, count int) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"results": items, "count": count})
}

func TestListEventsHydratesOncePerSession(t *testing.T) {
	var listCalls int64
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events/" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt64(&listCalls, 1)
		writePage(w, []map[string]interface{}{
			upstreamEvent(1, "Sunday run"),
			upstreamEvent(2, "5v5 basketball"),
		}, 2)
	})
	f := newFixture(t, upstream)

	status, state := f.getState(t, http.MethodGet, "/events", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(state.Events) != 2 || state.TotalCount != 2 {
		t.Fatalf("expected 2 events total 2, got %d total %d", len(state.Events), state.TotalCount)
	}
	if state.HasMore {
		t.Fatalf("expected no further pages")
	}

	_, _ = f.getState(t, http.MethodGet, "/events", nil)
	if got := atomic.LoadInt64(&listCalls); got != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", got)
	}
}

func TestApplyFiltersForwardsParamsAndReplacesList(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events/" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("search") == "tennis" {
			writePage(w, []map[string]interface{}{upstreamEvent(9, "Tennis doubles")}, 1)
			return
		}
		writePage(w, []map[string]interface{}{upstreamEvent(1, "Sunday run")}, 1)
	})
	f := newFixture(t, upstream)

	_, _ = f.getState(t, http.MethodGet, "/events", nil)
	status, state := f.getState(t, http.MethodPost, "/events/filters", map[string]interface{}{
		"search": "  tennis  ",
		"sortBy": "soonest",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(state.Events) != 1 || state.Events[0].ID != 9 {
		t.Fatalf("expected the filtered event, got %+v", state.Events)
	}
	if state.Search != "  tennis  " || state.SortBy != "soonest" {
		t.Fatalf("unexpected filter echo: %q %q", state.Search, state.SortBy)
	}
}

func TestApplyFiltersRejectsBadRadius(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, nil, 0)
	}))
	resp, _ := f.do(t, http.MethodPost, "/events/filters", map[string]interface{}{"radiusKm": -10})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLoadMoreAppendsNextPage(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		switch offset {
		case "", "0":
			items := make([]map[string]interface{}, 0, events.DefaultPageSize)
			for i := 1; i <= events.DefaultPageSize; i++ {
				items = append(items, upstreamEvent(int64(i), fmt.Sprintf("Event %d", i)))
			}
			writePage(w, items, 12)
		case "10":
			writePage(w, []map[string]interface{}{
				upstreamEvent(11, "Event 11"),
				upstreamEvent(12, "Event 12"),
			}, 12)
		default:
			t.Errorf("unexpected offset %q", offset)
			writePage(w, nil, 12)
		}
	})
	f := newFixture(t, upstream)

	_, state := f.getState(t, http.MethodGet, "/events", nil)
	if !state.HasMore {
		t.Fatalf("expected more pages after hydrate")
	}

	_, state = f.getState(t, http.MethodPost, "/events/more", nil)
	if len(state.Events) != 12 || state.HasMore {
		t.Fatalf("expected 12 events and no more pages, got %d hasMore=%v", len(state.Events), state.HasMore)
	}
	if state.Offset != 12 {
		t.Fatalf("expected offset 12, got %d", state.Offset)
	}
}

func TestRequestLocationWithBrowserCoordinates(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, []map[string]interface{}{upstreamEvent(1, "Sunday run")}, 1)
	})
	f := newFixture(t, upstream)

	_, _ = f.getState(t, http.MethodGet, "/events", nil)
	status, state := f.getState(t, http.MethodPost, "/events/location", map[string]interface{}{
		"auto":      false,
		"latitude":  55.75,
		"longitude": 37.61,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if state.Latitude == nil || *state.Latitude != 55.75 {
		t.Fatalf("expected latitude 55.75, got %v", state.Latitude)
	}
	if !state.ShowDistanceControls {
		t.Fatalf("expected distance controls enabled")
	}
	if state.RadiusKm != events.DefaultRadiusKm {
		t.Fatalf("expected default radius, got %v", state.RadiusKm)
	}
}

func TestJoinRequiresAuthentication(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, nil, 0)
	}))
	resp, _ := f.do(t, http.MethodPost, "/events/1/join", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestJoinUpdatesSessionList(t *testing.T) {
	var joinAuth string
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/events/" && r.Method == http.MethodGet:
			writePage(w, []map[string]interface{}{upstreamEvent(1, "Sunday run")}, 1)
		case r.URL.Path == "/api/users/login/":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access":  "access-token",
				"refresh": "refresh-token",
				"user":    map[string]interface{}{"id": int64(42), "username": "casey"},
			})
		case r.URL.Path == "/api/events/1/join/":
			joinAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	})
	f := newFixture(t, upstream)

	_, _ = f.getState(t, http.MethodGet, "/events", nil)
	resp, _ := f.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "casey", "password": "hunter22"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	resp, _ = f.do(t, http.MethodPost, "/events/1/join", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if joinAuth != "Bearer access-token" {
		t.Fatalf("expected bearer token on join, got %q", joinAuth)
	}

	_, state := f.getState(t, http.MethodGet, "/events", nil)
	if !state.Events[0].IsJoined || state.Events[0].ParticipantsCount != 4 {
		t.Fatalf("join not reflected: joined=%v count=%d", state.Events[0].IsJoined, state.Events[0].ParticipantsCount)
	}
}

func TestJoinSurfacesUpstreamDetail(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/events/" && r.Method == http.MethodGet:
			writePage(w, []map[string]interface{}{upstreamEvent(1, "Sunday run")}, 1)
		case r.URL.Path == "/api/users/login/":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access": "access-token",
				"user":   map[string]interface{}{"id": int64(42), "username": "casey"},
			})
		case r.URL.Path == "/api/events/1/join/":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail": "Event is full."}`))
		default:
			http.NotFound(w, r)
		}
	})
	f := newFixture(t, upstream)

	_, _ = f.getState(t, http.MethodGet, "/events", nil)
	_, _ = f.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "casey", "password": "hunter22"})

	resp, raw := f.do(t, http.MethodPost, "/events/1/join", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var payload map[string]string
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["error"] != "Event is full." {
		t.Fatalf("expected upstream detail, got %q", payload["error"])
	}

	_, state := f.getState(t, http.MethodGet, "/events", nil)
	if state.Events[0].IsJoined {
		t.Fatalf("failed join must not mutate the list")
	}
}

func TestSetParticipationPatchesList(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, []map[string]interface{}{upstreamEvent(1, "Sunday run")}, 1)
	})
	f := newFixture(t, upstream)

	_, _ = f.getState(t, http.MethodGet, "/events", nil)
	_, state := f.getState(t, http.MethodPost, "/events/1/participation", map[string]bool{"isJoined": true})
	if !state.Events[0].IsJoined || state.Events[0].ParticipantsCount != 4 {
		t.Fatalf("participation not reflected: %+v", state.Events[0])
	}

	_, state = f.getState(t, http.MethodPost, "/events/1/participation", map[string]bool{"isJoined": false})
	if state.Events[0].IsJoined || state.Events[0].ParticipantsCount != 3 {
		t.Fatalf("leave not reflected: %+v", state.Events[0])
	}
}

func TestCreateEventValidation(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/events/":
			if r.Method == http.MethodGet {
				writePage(w, nil, 0)
				return
			}
			http.NotFound(w, r)
		case "/api/users/login/":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access": "access-token",
				"user":   map[string]interface{}{"id": int64(42), "username": "casey"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	_, _ = f.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "casey", "password": "hunter22"})

	lat := 55.75
	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing title", map[string]interface{}{
			"description": "x", "date": time.Now().Add(time.Hour).Format(time.RFC3339), "slots": 4,
		}},
		{"zero slots", map[string]interface{}{
			"title": "Game", "description": "x", "date": time.Now().Add(time.Hour).Format(time.RFC3339), "slots": 0,
		}},
		{"lone latitude", map[string]interface{}{
			"title": "Game", "description": "x", "date": time.Now().Add(time.Hour).Format(time.RFC3339), "slots": 4, "latitude": lat,
		}},
		{"date in past", map[string]interface{}{
			"title": "Game", "description": "x", "date": time.Now().Add(-time.Hour).Format(time.RFC3339), "slots": 4,
		}},
	}
	for _, tc := range cases {
		resp, _ := f.do(t, http.MethodPost, "/events", tc.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, resp.StatusCode)
		}
	}
}

func TestGetEventProxiesUpstream(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/events/":
			writePage(w, nil, 0)
		case "/api/events/5/":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(upstreamEvent(5, "Climbing meet"))
		default:
			http.NotFound(w, r)
		}
	})
	f := newFixture(t, upstream)

	resp, raw := f.do(t, http.MethodGet, "/events/5", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var event struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.ID != 5 || event.Title != "Climbing meet" {
		t.Fatalf("unexpected event: %+v", event)
	}

	resp, _ = f.do(t, http.MethodGet, "/events/notanumber", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", resp.StatusCode)
	}
}

func TestListCategories(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events/categories/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 1, "name": "Basketball"}, {"id": 2, "name": "Running"}]`))
	})
	f := newFixture(t, upstream)

	resp, raw := f.do(t, http.MethodGet, "/events/categories", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var categories []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &categories); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	if len(categories) != 2 || categories[0].Name != "Basketball" {
		t.Fatalf("unexpected categories: %+v", categories)
	}
}
