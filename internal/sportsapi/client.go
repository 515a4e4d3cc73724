package sportsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"courtside/gateway/internal/models"
)

const defaultTimeout = 15 * time.Second

// Config represents config.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is the remote sports-events REST API. It owns no state beyond the
// HTTP client; every response body is decoded into explicit types and a
// malformed body is reported the same way as a transport failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// APIError is a non-2xx response from the remote API. Detail carries the
// server's human-readable reason when the error body had one.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("events api status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("events api status %d", e.StatusCode)
}

// Credentials is the remote auth handshake result: a short-lived access
// token, a refresh token and the authenticated identity.
type Credentials struct {
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
	User    models.User `json:"user"`
}

// CreateEventRequest is the create payload. Latitude and longitude are
// both-or-neither; the remote API rejects a lone coordinate.
type CreateEventRequest struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description" validate:"required"`
	Date        time.Time `json:"date" validate:"required"`
	CategoryID  int64     `json:"category,omitempty"`
	City        string    `json:"city,omitempty" validate:"max=120"`
	Latitude    *float64  `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64  `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Slots       int       `json:"slots" validate:"required,gte=1"`
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// NewClient creates a client. A nil httpClient gets a sane default with a
// request timeout; the remote API never gets an unbounded call.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// FetchEvents lists events matching the query parameters. The parameter
// names are the remote contract: search, category, date_from, date_to,
// open_slots, lat, lng, radius_km, limit, offset.
func (c *Client) FetchEvents(ctx context.Context, params url.Values, token string) (models.EventPage, error) {
	var page models.EventPage
	target := "/api/events/"
	if encoded := params.Encode(); encoded != "" {
		target += "?" + encoded
	}
	body, err := c.do(ctx, http.MethodGet, target, nil, token)
	if err != nil {
		return page, err
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return page, fmt.Errorf("decode events page: %w", err)
	}
	if page.Results == nil {
		page.Results = []models.Event{}
	}
	if page.Count < len(page.Results) {
		page.Count = len(page.Results)
	}
	return page, nil
}

// FetchEvent fetches one event by id.
func (c *Client) FetchEvent(ctx context.Context, eventID int64, token string) (models.Event, error) {
	var event models.Event
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/events/%d/", eventID), nil, token)
	if err != nil {
		return event, err
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}

// FetchCategories lists the event categories for the filter controls.
func (c *Client) FetchCategories(ctx context.Context) ([]models.EventCategory, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/events/categories/", nil, "")
	if err != nil {
		return nil, err
	}
	var categories []models.EventCategory
	if err := json.Unmarshal(body, &categories); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return categories, nil
}

// CreateEvent creates an event on behalf of the authenticated user.
func (c *Client) CreateEvent(ctx context.Context, req CreateEventRequest, token string) (models.Event, error) {
	var event models.Event
	payload, err := json.Marshal(req)
	if err != nil {
		return event, err
	}
	body, err := c.do(ctx, http.MethodPost, "/api/events/", payload, token)
	if err != nil {
		return event, err
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("decode created event: %w", err)
	}
	return event, nil
}

// JoinEvent adds the authenticated user to the event roster.
func (c *Client) JoinEvent(ctx context.Context, eventID int64, token string) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/events/%d/join/", eventID), nil, token)
	return err
}

// LeaveEvent removes the authenticated user from the event roster.
func (c *Client) LeaveEvent(ctx context.Context, eventID int64, token string) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/events/%d/leave/", eventID), nil, token)
	return err
}

// Login exchanges credentials for tokens and identity.
func (c *Client) Login(ctx context.Context, username, password string) (Credentials, error) {
	return c.credentialsCall(ctx, "/api/users/login/", map[string]string{
		"username": username,
		"password": password,
	})
}

// Register creates an account and returns the initial tokens.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (Credentials, error) {
	return c.credentialsCall(ctx, "/api/users/register/", map[string]string{
		"username": req.Username,
		"email":    req.Email,
		"password": req.Password,
	})
}

// RefreshToken trades a refresh token for a fresh access token. The remote
// API may rotate the refresh token; callers replace whatever they held.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (Credentials, error) {
	return c.credentialsCall(ctx, "/api/auth/token/refresh/", map[string]string{
		"refresh": refresh,
	})
}

// FetchUser fetches a public profile.
func (c *Client) FetchUser(ctx context.Context, userID int64, token string) (models.User, error) {
	var user models.User
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/users/profile/%d/", userID), nil, token)
	if err != nil {
		return user, err
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return user, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}

func (c *Client) credentialsCall(ctx context.Context, path string, form map[string]string) (Credentials, error) {
	var creds Credentials
	payload, err := json.Marshal(form)
	if err != nil {
		return creds, err
	}
	body, err := c.do(ctx, http.MethodPost, path, payload, "")
	if err != nil {
		return creds, err
	}
	if err := json.Unmarshal(body, &creds); err != nil {
		return creds, fmt.Errorf("decode auth response: %w", err)
	}
	if strings.TrimSpace(creds.Access) == "" {
		return creds, fmt.Errorf("auth response missing access token")
	}
	return creds, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, token string) ([]byte, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("events api base url is required")
	}

	var bodyReader io.Reader
	if len(payload) > 0 {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(body)}
	}

	if c.logger != nil {
		c.logger.Debug("events_api_response", "method", method, "path", path, "status", resp.StatusCode)
	}
	return body, nil
}

// errorDetail pulls the "detail" field from an error body, falling back to
// the first value of whatever object the server sent.
func errorDetail(body []byte) string {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if raw, ok := parsed["detail"]; ok {
		var detail string
		if err := json.Unmarshal(raw, &detail); err == nil {
			return detail
		}
	}
	for _, raw := range parsed {
		var single string
		if err := json.Unmarshal(raw, &single); err == nil && single != "" {
			return single
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
			return list[0]
		}
	}
	return ""
}
