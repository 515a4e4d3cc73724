package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticLocateReturnsCoordinates(t *testing.T) {
	coords, err := Static{Latitude: 52.52, Longitude: 13.405}.Locate(context.Background())
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if coords.Latitude != 52.52 || coords.Longitude != 13.405 {
		t.Fatalf("unexpected coordinates: %+v", coords)
	}
}

func TestStaticLocateRejectsOutOfRange(t *testing.T) {
	if _, err := (Static{Latitude: 91, Longitude: 0}).Locate(context.Background()); err == nil {
		t.Fatalf("expected error for latitude out of range")
	}
	if _, err := (Static{Latitude: 0, Longitude: -181}).Locate(context.Background()); err == nil {
		t.Fatalf("expected error for longitude out of range")
	}
}

func TestIPLocatorLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/203.0.113.7" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","lat":48.8566,"lon":2.3522}`))
	}))
	defer srv.Close()

	locator := NewIPLocator(Config{Endpoint: srv.URL})
	coords, err := locator.Lookup(context.Background(), "203.0.113.7")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if coords.Latitude != 48.8566 || coords.Longitude != 2.3522 {
		t.Fatalf("unexpected coordinates: %+v", coords)
	}
}

func TestIPLocatorLookupFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"fail","message":"private range"}`))
	}))
	defer srv.Close()

	locator := NewIPLocator(Config{Endpoint: srv.URL})
	if _, err := locator.Lookup(context.Background(), "10.0.0.1"); err == nil {
		t.Fatalf("expected error for failed lookup")
	}
}

func TestIPLocatorForSatisfiesLocator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","lat":1,"lon":2}`))
	}))
	defer srv.Close()

	var l Locator = NewIPLocator(Config{Endpoint: srv.URL}).For("198.51.100.4")
	coords, err := l.Locate(context.Background())
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if coords.Latitude != 1 || coords.Longitude != 2 {
		t.Fatalf("unexpected coordinates: %+v", coords)
	}
}
