// Package gateway defines the contract of the remote story API as the offline
// core consumes it.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/storyshare/internal/auth"
	"github.com/artpar/storyshare/internal/story"
)

// Common errors
var (
	ErrNetwork     = errors.New("network failure")
	ErrAuthMissing = errors.New("authentication required")
	ErrTimeout     = errors.New("request timed out")
)

// APIError is a failure reported by the story API itself.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("story api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("story api: %s (status %d)", e.Message, e.StatusCode)
}

// NewStory is the multipart payload of a story submission.
type NewStory struct {
	Description string
	Photo       []byte
	PhotoName   string
	ContentType string
	Lat         *float64
	Lon         *float64
}

// PushKeys are the client keys of a push subscription.
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Stories is the story side of the remote API.
type Stories interface {
	// ListStories returns the current story list.
	ListStories(ctx context.Context) ([]story.Record, error)

	// GetStory returns a single story.
	GetStory(ctx context.Context, id string) (story.Record, error)

	// CreateStory submits a new story. The returned record is nil when the
	// API only acknowledges the creation.
	CreateStory(ctx context.Context, s NewStory) (*story.Record, error)
}

// PushRegistry is the push registration side of the remote API.
type PushRegistry interface {
	RegisterPushSubscription(ctx context.Context, endpoint string, keys PushKeys) error
	UnregisterPushSubscription(ctx context.Context, endpoint string) error
}

// Accounts is the account side of the remote API.
type Accounts interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Register(ctx context.Context, name, email, password string) error
}

// Gateway is the full remote API.
type Gateway interface {
	Stories
	PushRegistry
	Accounts
}

// TokenSource supplies the bearer token for authenticated calls. An empty
// token means nobody is logged in.
type TokenSource interface {
	Token(ctx context.Context) string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) string

// Token implements TokenSource.
func (f TokenFunc) Token(ctx context.Context) string { return f(ctx) }

// IsRetryable reports whether err is a transient failure worth retrying on a
// later drain.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == 429
	}
	return false
}
