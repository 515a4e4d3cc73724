package location

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultEndpoint = "http://ip-api.com/json"
const defaultTimeout = 10 * time.Second

// Coordinates is a geographic point in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locator yields the caller's current position. Implementations enforce
// their own timeout; a failed acquisition returns an error and no partial
// coordinates.
type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// Static is a pre-acquired position, typically posted by the browser's own
// geolocation API.
type Static Coordinates

// Locate returns the fixed position.
func (s Static) Locate(context.Context) (Coordinates, error) {
	if s.Latitude < -90 || s.Latitude > 90 || s.Longitude < -180 || s.Longitude > 180 {
		return Coordinates{}, fmt.Errorf("coordinates out of range")
	}
	return Coordinates(s), nil
}

// Config represents IP locator config.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// IPLocator resolves an approximate position from a client IP address via a
// public geolocation service. Lookups are rate limited to stay within the
// service's free-tier allowance.
type IPLocator struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

type ipLookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// NewIPLocator creates an IP locator.
func NewIPLocator(cfg Config) *IPLocator {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &IPLocator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Every(2*time.Second), 5),
	}
}

// Lookup resolves the position of a single IP address.
func (l *IPLocator) Lookup(ctx context.Context, ip string) (Coordinates, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return Coordinates{}, fmt.Errorf("ip is empty")
	}
	if !l.limiter.Allow() {
		return Coordinates{}, fmt.Errorf("ip lookup rate limit exceeded")
	}

	target := l.endpoint + "/" + url.PathEscape(ip) + "?fields=status,message,lat,lon"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Coordinates{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return Coordinates{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Coordinates{}, fmt.Errorf("ip lookup status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed ipLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Coordinates{}, fmt.Errorf("decode ip lookup response: %w", err)
	}
	if parsed.Status != "success" {
		return Coordinates{}, fmt.Errorf("ip lookup failed: %s", parsed.Message)
	}
	return Coordinates{Latitude: parsed.Lat, Longitude: parsed.Lon}, nil
}

// For binds the locator to one client IP so it satisfies Locator.
func (l *IPLocator) For(ip string) Locator {
	return locatorFunc(func(ctx context.Context) (Coordinates, error) {
		return l.Lookup(ctx, ip)
	})
}

type locatorFunc func(ctx context.Context) (Coordinates, error)

func (f locatorFunc) Locate(ctx context.Context) (Coordinates, error) {
	return f(ctx)
}
