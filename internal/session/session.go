package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"courtside/gateway/internal/events"
	"courtside/gateway/internal/models"
)

// Session is one browser's server-side state: its events store, the remote
// access token (never sent back to the browser), the signed-in identity and
// the one-shot hydration guard.
type Session struct {
	ID string

	Store *events.Store

	mu       sync.Mutex
	token    string
	user     *models.User
	hydrated bool
	lastSeen time.Time
}

// MarkHydrated flips the one-shot hydration guard. It returns true exactly
// once; later calls report that hydration already happened so a re-render
// cannot clobber in-progress filtering.
func (s *Session) MarkHydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hydrated {
		return false
	}
	s.hydrated = true
	return true
}

// Token returns the remote access token, empty when signed out.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetCredentials stores the access token and identity after a successful
// login, registration or refresh. Replace-in-full: there is no merging.
func (s *Session) SetCredentials(token string, user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	if user.ID != 0 {
		u := user
		s.user = &u
	}
}

// ClearCredentials signs the session out.
func (s *Session) ClearCredentials() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
}

// User returns the signed-in identity, nil when signed out.
func (s *Session) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) seenBefore(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen.Before(cutoff)
}

// Manager keeps live sessions in memory, keyed by id. Idle sessions expire
// lazily: each lookup sweeps the map at most once per cleanup interval.
type Manager struct {
	newStore func() *events.Store
	ttl      time.Duration
	now      func() time.Time

	mu          sync.Mutex
	sessions    map[string]*Session
	lastCleanup time.Time
}

const defaultTTL = 2 * time.Hour

// NewManager creates a manager. newStore builds the per-session events
// store; ttl <= 0 gets a default idle lifetime.
func NewManager(newStore func() *events.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Manager{
		newStore: newStore,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the live session with the given id, or nil.
func (m *Manager) Get(id string) *Session {
	now := m.now()
	m.mu.Lock()
	m.maybeCleanup(now)
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	s.touch(now)
	return s
}

// Create mints a new session with a fresh id.
func (m *Manager) Create() *Session {
	now := m.now()
	s := &Session{
		ID:       uuid.NewString(),
		Store:    m.newStore(),
		lastSeen: now,
	}
	m.mu.Lock()
	m.maybeCleanup(now)
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Drop removes a session immediately (logout).
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) maybeCleanup(now time.Time) {
	if now.Sub(m.lastCleanup) < m.ttl {
		return
	}
	cutoff := now.Add(-m.ttl)
	for id, s := range m.sessions {
		if s.seenBefore(cutoff) {
			delete(m.sessions, id)
		}
	}
	m.lastCleanup = now
}
