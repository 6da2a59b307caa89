// Package auth keeps the login session the gateway authenticates with.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/artpar/storyshare/internal/settings"
)

const sessionKey = "auth.session"

// ErrNoSession is returned when nobody is logged in.
var ErrNoSession = errors.New("not logged in")

// Session is the result of a successful login.
type Session struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Token  string `json:"token"`
}

// Sessions persists the current session in the settings store.
type Sessions struct {
	store settings.Store
}

// NewSessions creates a session keeper backed by store.
func NewSessions(store settings.Store) *Sessions {
	return &Sessions{store: store}
}

// Load returns the current session.
func (s *Sessions) Load(ctx context.Context) (Session, error) {
	raw, err := s.store.Get(ctx, sessionKey)
	if errors.Is(err, settings.ErrNotFound) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	if session.Token == "" {
		return Session{}, ErrNoSession
	}
	return session, nil
}

// Save replaces the current session.
func (s *Sessions) Save(ctx context.Context, session Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.store.Set(ctx, sessionKey, string(raw))
}

// Clear logs out.
func (s *Sessions) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, sessionKey)
}

// Token returns the bearer token of the current session, or "" when there is
// none.
func (s *Sessions) Token(ctx context.Context) string {
	session, err := s.Load(ctx)
	if err != nil {
		return ""
	}
	return session.Token
}

// Authenticated reports whether a session token is available.
func (s *Sessions) Authenticated(ctx context.Context) bool {
	return s.Token(ctx) != ""
}
