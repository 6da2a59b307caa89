// Package local binds the push capabilities to the terminal the CLI runs in.
// Permission is asked on the terminal and the subscription lives in the
// settings store, so both survive restarts.
package local

import (
	"bufio"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/artpar/storyshare/internal/gateway"
	"github.com/artpar/storyshare/internal/push"
	"github.com/artpar/storyshare/internal/settings"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	permissionKey   = "device.notification_permission"
	subscriptionKey = "device.push_subscription"
)

// DefaultServiceURL is where generated subscription endpoints point.
const DefaultServiceURL = "https://push.storyshare.local/send"

// Prompt is the question shown when permission is requested.
const Prompt = "Allow Story Share to show notifications? [y/n, empty to decide later]: "

// record is the persisted form of a subscription. The private key stays on
// the device and is never sent to the server.
type record struct {
	push.Subscription
	PrivateKey string `json:"privateKey"`
}

// Device implements push.Prompter and push.PushManager.
type Device struct {
	mu         sync.Mutex
	store      settings.Store
	in         *bufio.Reader
	out        io.Writer
	serviceURL string
	now        func() time.Time
	logger     zerolog.Logger
}

// Option configures a Device.
type Option func(*Device)

// WithServiceURL sets the push service endpoints are generated under.
func WithServiceURL(url string) Option {
	return func(d *Device) {
		if url != "" {
			d.serviceURL = strings.TrimRight(url, "/")
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Device) {
		d.now = now
	}
}

// WithLogger sets the device logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Device) {
		d.logger = logger
	}
}

// NewDevice creates a device that prompts on out and reads answers from in.
func NewDevice(store settings.Store, in io.Reader, out io.Writer, opts ...Option) *Device {
	d := &Device{
		store:      store,
		in:         bufio.NewReader(in),
		out:        out,
		serviceURL: DefaultServiceURL,
		now:        time.Now,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With().Str("component", "push-device").Logger()
	return d
}

// Permission returns the stored permission.
func (d *Device) Permission(ctx context.Context) (push.Permission, error) {
	v, err := d.store.Get(ctx, permissionKey)
	if errors.Is(err, settings.ErrNotFound) {
		return push.PermissionDefault, nil
	}
	if err != nil {
		return push.PermissionDefault, fmt.Errorf("failed to read permission: %w", err)
	}

	switch p := push.Permission(v); p {
	case push.PermissionGranted, push.PermissionDenied:
		return p, nil
	default:
		return push.PermissionDefault, nil
	}
}

// RequestPermission asks on the terminal. An empty answer or end of input
// dismisses the prompt and leaves the permission undecided.
func (d *Device) RequestPermission(ctx context.Context) (push.Permission, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := fmt.Fprint(d.out, Prompt); err != nil {
		return push.PermissionDefault, fmt.Errorf("failed to write prompt: %w", err)
	}

	line, err := d.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return push.PermissionDefault, fmt.Errorf("failed to read answer: %w", err)
	}

	var perm push.Permission
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		perm = push.PermissionGranted
	case "n", "no":
		perm = push.PermissionDenied
	default:
		return push.PermissionDefault, nil
	}

	if err := d.store.Set(ctx, permissionKey, string(perm)); err != nil {
		return push.PermissionDefault, fmt.Errorf("failed to save permission: %w", err)
	}
	return perm, nil
}

// SetPermission overrides the stored permission, as a user would in system
// settings.
func (d *Device) SetPermission(ctx context.Context, perm push.Permission) error {
	if perm == push.PermissionDefault {
		return d.store.Delete(ctx, permissionKey)
	}
	return d.store.Set(ctx, permissionKey, string(perm))
}

// Subscription returns the stored subscription, or nil.
func (d *Device) Subscription(ctx context.Context) (*push.Subscription, error) {
	rec, err := d.load(ctx)
	if err != nil || rec == nil {
		return nil, err
	}
	sub := rec.Subscription
	return &sub, nil
}

// Subscribe creates a subscription bound to applicationServerKey. A fresh
// P-256 key pair and auth secret are generated for it.
func (d *Device) Subscribe(ctx context.Context, applicationServerKey []byte) (*push.Subscription, error) {
	if err := push.CheckApplicationServerKey(applicationServerKey); err != nil {
		return nil, err
	}

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate subscription key: %w", err)
	}
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate auth secret: %w", err)
	}

	rec := record{
		Subscription: push.Subscription{
			Endpoint: d.serviceURL + "/" + uuid.NewString(),
			Keys: gateway.PushKeys{
				P256dh: base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
				Auth:   base64.RawURLEncoding.EncodeToString(secret),
			},
			Created: d.now().UTC(),
		},
		PrivateKey: base64.RawURLEncoding.EncodeToString(priv.Bytes()),
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode subscription: %w", err)
	}
	if err := d.store.Set(ctx, subscriptionKey, string(raw)); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}

	d.logger.Debug().Str("endpoint", rec.Endpoint).Msg("created push subscription")
	sub := rec.Subscription
	return &sub, nil
}

// Unsubscribe removes sub. Removing a subscription that is no longer current
// is a no-op.
func (d *Device) Unsubscribe(ctx context.Context, sub *push.Subscription) error {
	rec, err := d.load(ctx)
	if err != nil {
		return err
	}
	if rec == nil || (sub != nil && rec.Endpoint != sub.Endpoint) {
		return nil
	}
	if err := d.store.Delete(ctx, subscriptionKey); err != nil {
		return fmt.Errorf("failed to remove subscription: %w", err)
	}
	return nil
}

func (d *Device) load(ctx context.Context) (*record, error) {
	raw, err := d.store.Get(ctx, subscriptionKey)
	if errors.Is(err, settings.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subscription: %w", err)
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		d.logger.Warn().Err(err).Msg("discarding unreadable push subscription")
		return nil, nil
	}
	return &rec, nil
}
