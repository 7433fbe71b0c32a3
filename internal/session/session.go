// Package session persists the signed-in user's session in the shared kv
// store so the agent and every popup see the same sign-in state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/joestump/bmrk/internal/kv"
)

// User is the signed-in user's public profile.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// Session is the persisted sign-in state.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	User         User      `json:"user"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token has expired at now. A zero
// ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Tokens is what a completed OAuth redirect hands the client.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Store reads and writes the session under kv.KeySession.
type Store struct {
	kv kv.Store
}

func NewStore(s kv.Store) *Store {
	return &Store{kv: s}
}

// Load returns the current session, or nil when signed out.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	raw, err := s.kv.Get(ctx, kv.KeySession)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess *Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	if sess == nil || sess.AccessToken == "" {
		return nil, nil
	}
	return sess, nil
}

// Save persists sess, replacing any previous session.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	return kv.SetJSON(ctx, s.kv, kv.KeySession, sess)
}

// Clear signs out by writing a null session.
func (s *Store) Clear(ctx context.Context) error {
	return s.kv.Set(ctx, kv.KeySession, []byte("null"))
}
