package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Themes the UI knows about. Dark is the default.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

const defaultTTL = 30 * 24 * time.Hour

// IdentityHints are the non-sensitive display fields cached per session so
// the UI can greet a returning user before a token refresh completes. The
// access token is deliberately NOT part of this: it never touches
// persistent storage.
type IdentityHints struct {
	UserID   int64
	Username string
	Email    string
}

// Store keeps per-session UI preferences in Redis with a sliding lifetime.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a store. ttl <= 0 gets a default lifetime.
func New(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func themeKey(sessionID string) string    { return "prefs:" + sessionID + ":theme" }
func identityKey(sessionID string) string { return "prefs:" + sessionID + ":identity" }

// Theme returns the stored theme, ThemeDark when none was chosen.
func (s *Store) Theme(ctx context.Context, sessionID string) (string, error) {
	value, err := s.rdb.Get(ctx, themeKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return ThemeDark, nil
	}
	if err != nil {
		return ThemeDark, fmt.Errorf("get theme: %w", err)
	}
	if value != ThemeLight {
		return ThemeDark, nil
	}
	return ThemeLight, nil
}

// SetTheme stores the chosen theme.
func (s *Store) SetTheme(ctx context.Context, sessionID, theme string) error {
	if theme != ThemeDark && theme != ThemeLight {
		return fmt.Errorf("unknown theme %q", theme)
	}
	if err := s.rdb.Set(ctx, themeKey(sessionID), theme, s.ttl).Err(); err != nil {
		return fmt.Errorf("set theme: %w", err)
	}
	return nil
}

// Identity returns the cached identity hints; a zero value when none exist.
func (s *Store) Identity(ctx context.Context, sessionID string) (IdentityHints, error) {
	var hints IdentityHints
	fields, err := s.rdb.HGetAll(ctx, identityKey(sessionID)).Result()
	if err != nil {
		return hints, fmt.Errorf("get identity: %w", err)
	}
	if raw, ok := fields["user_id"]; ok {
		hints.UserID, _ = strconv.ParseInt(raw, 10, 64)
	}
	hints.Username = fields["username"]
	hints.Email = fields["email"]
	return hints, nil
}

// SetIdentity caches the identity hints for display continuity.
func (s *Store) SetIdentity(ctx context.Context, sessionID string, hints IdentityHints) error {
	key := identityKey(sessionID)
	err := s.rdb.HSet(ctx, key,
		"user_id", strconv.FormatInt(hints.UserID, 10),
		"username", hints.Username,
		"email", hints.Email,
	).Err()
	if err != nil {
		return fmt.Errorf("set identity: %w", err)
	}
	if err := s.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
		return fmt.Errorf("expire identity: %w", err)
	}
	return nil
}

// ClearIdentity drops the cached identity hints (logout).
func (s *Store) ClearIdentity(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, identityKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}
