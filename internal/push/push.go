// Package push manages notification permission and the device's push
// subscription.
//
// The device side is reached through two narrow capabilities, Prompter and
// PushManager, so the lifecycle logic here does not depend on any particular
// platform. The server side is a Registrar, normally the story API gateway.
package push

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/storyshare/internal/gateway"
)

// DefaultApplicationServerKey is the story API's public VAPID key.
const DefaultApplicationServerKey = "BN7-r0Svn32qR8S-NVLMzDknlZbG9AYwS9r_Et_yvmyKfg8SwQcx_49vA0qwfJsGAuBVr5UlN4xUJQd3UxqZZ68"

// DefaultBackoff is how long subscription attempts are skipped after a failure.
const DefaultBackoff = 5 * time.Minute

// Common errors
var (
	ErrUnsupported          = errors.New("push notifications are not supported")
	ErrPermissionDenied     = errors.New("notification permission denied")
	ErrPermissionNotGranted = errors.New("notification permission not granted")
	ErrInvalidKey           = errors.New("invalid application server key")
)

// Permission is the device's notification permission.
type Permission string

// Permission values.
const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Status is what GetStatus reports: the device permission, refined by the
// sticky denial flag.
type Status string

// Status values.
const (
	StatusUnsupported     Status = "unsupported"
	StatusDefault         Status = "default"
	StatusGranted         Status = "granted"
	StatusDenied          Status = "denied"
	StatusDeniedPermanent Status = "denied-permanent"
)

// Result describes how a subscription attempt ended.
type Result int

// Result values.
const (
	ResultNone       Result = iota // nothing happened; see the accompanying error
	ResultSubscribed               // a new subscription was created and registered
	ResultReused                   // the existing subscription was confirmed with the server
	ResultSkipped                  // skipped inside the failure backoff window
	ResultInFlight                 // another negotiation is running
)

func (r Result) String() string {
	switch r {
	case ResultSubscribed:
		return "subscribed"
	case ResultReused:
		return "reused"
	case ResultSkipped:
		return "skipped"
	case ResultInFlight:
		return "in-flight"
	default:
		return "none"
	}
}

// Subscription is a device push subscription.
type Subscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     gateway.PushKeys `json:"keys"`
	Created  time.Time        `json:"created"`
}

// Prompter is the device's permission capability.
type Prompter interface {
	// Permission returns the current permission without prompting.
	Permission(ctx context.Context) (Permission, error)

	// RequestPermission asks the user. PermissionDefault means the prompt was
	// dismissed without a decision.
	RequestPermission(ctx context.Context) (Permission, error)
}

// PushManager is the device's push registration capability.
type PushManager interface {
	// Subscription returns the current subscription, or nil when there is none.
	Subscription(ctx context.Context) (*Subscription, error)

	// Subscribe creates a subscription bound to applicationServerKey.
	Subscribe(ctx context.Context, applicationServerKey []byte) (*Subscription, error)

	// Unsubscribe removes sub from the device.
	Unsubscribe(ctx context.Context, sub *Subscription) error
}

// Registrar records subscriptions on the server.
type Registrar interface {
	RegisterPushSubscription(ctx context.Context, endpoint string, keys gateway.PushKeys) error
	UnregisterPushSubscription(ctx context.Context, endpoint string) error
}

// applicationServerKeyLen is the size of an uncompressed P-256 point.
const applicationServerKeyLen = 65

// DecodeApplicationServerKey decodes a URL-safe base64 VAPID public key. Padding
// and the standard alphabet are accepted.
func DecodeApplicationServerKey(key string) ([]byte, error) {
	normalized := strings.NewReplacer("+", "-", "/", "_").Replace(strings.TrimRight(key, "="))
	raw, err := base64.RawURLEncoding.DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if err := CheckApplicationServerKey(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// CheckApplicationServerKey checks that raw has the shape of an uncompressed
// P-256 point. Whether the point lies on the curve is left to the push
// service.
func CheckApplicationServerKey(raw []byte) error {
	if len(raw) != applicationServerKeyLen {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(raw), applicationServerKeyLen)
	}
	if raw[0] != 0x04 {
		return fmt.Errorf("%w: not an uncompressed point", ErrInvalidKey)
	}
	return nil
}
