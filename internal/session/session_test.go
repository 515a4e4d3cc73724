package session

import (
	"testing"
	"time"

	"courtside/gateway/internal/events"
	"courtside/gateway/internal/models"
)

func newTestManager(ttl time.Duration) *Manager {
	return NewManager(func() *events.Store { return events.NewStore(nil) }, ttl)
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	m := newTestManager(time.Hour)
	created := m.Create()
	if created.ID == "" || created.Store == nil {
		t.Fatalf("incomplete session: %+v", created)
	}
	got := m.Get(created.ID)
	if got != created {
		t.Fatalf("expected the same session back")
	}
	if m.Get("missing") != nil {
		t.Fatalf("unknown id should return nil")
	}
}

func TestMarkHydratedIsOneShot(t *testing.T) {
	s := newTestManager(time.Hour).Create()
	if !s.MarkHydrated() {
		t.Fatalf("first call should report fresh hydration")
	}
	if s.MarkHydrated() {
		t.Fatalf("second call must report already hydrated")
	}
}

func TestCredentialsLifecycle(t *testing.T) {
	s := newTestManager(time.Hour).Create()
	if s.Token() != "" || s.User() != nil {
		t.Fatalf("fresh session should be signed out")
	}

	s.SetCredentials("tok-1", models.User{ID: 5, Username: "sam"})
	if s.Token() != "tok-1" {
		t.Fatalf("token not stored")
	}
	if user := s.User(); user == nil || user.Username != "sam" {
		t.Fatalf("identity not stored: %+v", user)
	}

	// Refresh is call-and-replace.
	s.SetCredentials("tok-2", models.User{})
	if s.Token() != "tok-2" {
		t.Fatalf("token not replaced")
	}
	if user := s.User(); user == nil || user.ID != 5 {
		t.Fatalf("identity should survive a token-only refresh: %+v", user)
	}

	s.ClearCredentials()
	if s.Token() != "" || s.User() != nil {
		t.Fatalf("logout must clear credentials")
	}
}

func TestIdleSessionsExpire(t *testing.T) {
	m := newTestManager(time.Minute)
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	stale := m.Create()
	m.now = func() time.Time { return base.Add(30 * time.Second) }
	fresh := m.Create()

	// Keep the fresh session alive past the next sweep.
	m.now = func() time.Time { return base.Add(90 * time.Second) }
	if m.Get(fresh.ID) == nil {
		t.Fatalf("fresh session should still be live")
	}

	// Two minutes in, the stale session is past its idle lifetime.
	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	if m.Get(stale.ID) != nil {
		t.Fatalf("stale session should have expired")
	}
	if m.Len() != 1 {
		t.Fatalf("expected one surviving session, got %d", m.Len())
	}
}

func TestDropRemovesSession(t *testing.T) {
	m := newTestManager(time.Hour)
	s := m.Create()
	m.Drop(s.ID)
	if m.Get(s.ID) != nil {
		t.Fatalf("dropped session should be gone")
	}
}
