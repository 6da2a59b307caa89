package push

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Manager drives the permission and subscription lifecycle.
type Manager struct {
	state     *State
	prompter  Prompter
	push      PushManager
	registrar Registrar
	key       string
	backoff   time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithBackoff sets how long attempts are skipped after a failure.
func WithBackoff(d time.Duration) Option {
	return func(m *Manager) {
		m.backoff = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager. A nil prompter or push manager means the host
// has no notification support. The application server key is decoded only
// when a new subscription is created, so a bad key fails that attempt and
// nothing else.
func NewManager(state *State, prompter Prompter, pm PushManager, registrar Registrar, applicationServerKey string, opts ...Option) *Manager {
	m := &Manager{
		state:     state,
		prompter:  prompter,
		push:      pm,
		registrar: registrar,
		key:       applicationServerKey,
		backoff:   DefaultBackoff,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "push").Logger()

	return m
}

// State returns the shared subscription state.
func (m *Manager) State() *State {
	return m.state
}

// GetStatus reports the current permission. It never prompts. When the device
// cannot be read the last permission seen is used.
func (m *Manager) GetStatus(ctx context.Context) Status {
	if m.prompter == nil {
		return StatusUnsupported
	}

	perm, err := m.prompter.Permission(ctx)
	if err != nil {
		perm = m.state.Permission()
		m.logger.Warn().Err(err).Str("last_known", string(perm)).Msg("failed to read notification permission")
	} else {
		m.state.setPermission(perm)
	}

	if m.state.Denied() && perm != PermissionGranted {
		return StatusDeniedPermanent
	}
	return Status(perm)
}

// NotificationsGranted reports whether notifications may be shown.
func (m *Manager) NotificationsGranted(ctx context.Context) bool {
	return m.GetStatus(ctx) == StatusGranted
}

// RequestPermission prompts the user and, when permission is granted,
// subscribes right away. It returns false without side effects when another
// negotiation is active, or when the user denied permission before and force
// is not set.
func (m *Manager) RequestPermission(ctx context.Context, force bool) bool {
	granted, _, _ := m.negotiate(ctx, force)
	return granted
}

// negotiate runs the prompt under the in-flight guard.
func (m *Manager) negotiate(ctx context.Context, force bool) (bool, Result, error) {
	if m.prompter == nil {
		return false, ResultNone, ErrUnsupported
	}
	if !m.state.TryAcquire() {
		m.logger.Debug().Msg("already requesting notification permission, skipping duplicate request")
		return false, ResultInFlight, nil
	}
	defer m.state.Release()

	if m.state.Denied() && !force {
		m.logger.Debug().Msg("notification permission was denied before, not asking again")
		return false, ResultNone, ErrPermissionDenied
	}

	perm, err := m.prompter.RequestPermission(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("error requesting notification permission")
		return false, ResultNone, err
	}
	m.state.setPermission(perm)

	switch perm {
	case PermissionDenied:
		m.logger.Info().Msg("notification permission denied")
		m.state.SetDenied(ctx, true)
		return false, ResultNone, ErrPermissionDenied
	case PermissionGranted:
		m.state.SetDenied(ctx, false)
		m.logger.Info().Msg("notification permission granted, attempting push subscription")
		result, err := m.subscribe(ctx)
		return true, result, err
	default:
		m.logger.Info().Msg("permission prompt dismissed")
		return false, ResultNone, ErrPermissionNotGranted
	}
}

// Subscribe makes sure the device holds a subscription the server knows
// about. It is idempotent: an existing subscription is confirmed again rather
// than duplicated.
func (m *Manager) Subscribe(ctx context.Context) (Result, error) {
	if !m.state.TryAcquire() {
		m.logger.Debug().Msg("subscription negotiation already running")
		return ResultInFlight, nil
	}
	defer m.state.Release()

	return m.subscribe(ctx)
}

func (m *Manager) subscribe(ctx context.Context) (Result, error) {
	if m.push == nil {
		return ResultNone, ErrUnsupported
	}

	if last := m.state.LastFailure(); !last.IsZero() && m.now().Sub(last) < m.backoff {
		m.logger.Info().Time("last_failure", last).Msg("skipping push subscription due to recent failure")
		return ResultSkipped, nil
	}

	existing, err := m.push.Subscription(ctx)
	if err != nil {
		m.state.RecordFailure(ctx, m.now())
		return ResultNone, fmt.Errorf("failed to read push subscription: %w", err)
	}

	if existing != nil {
		if err := m.registrar.RegisterPushSubscription(ctx, existing.Endpoint, existing.Keys); err != nil {
			m.state.RecordFailure(ctx, m.now())
			m.logger.Error().Err(err).Msg("error confirming existing subscription with server")
			return ResultReused, fmt.Errorf("failed to confirm push subscription: %w", err)
		}
		m.state.ClearFailure(ctx)
		m.logger.Info().Str("endpoint", existing.Endpoint).Msg("already subscribed, registration confirmed with server")
		return ResultReused, nil
	}

	key, err := DecodeApplicationServerKey(m.key)
	if err != nil {
		m.state.RecordFailure(ctx, m.now())
		m.logger.Error().Err(err).Msg("cannot subscribe with the configured application server key")
		return ResultNone, fmt.Errorf("failed to create push subscription: %w", err)
	}

	sub, err := m.push.Subscribe(ctx, key)
	if err != nil {
		m.state.RecordFailure(ctx, m.now())
		return ResultNone, fmt.Errorf("failed to create push subscription: %w", err)
	}

	if err := m.registrar.RegisterPushSubscription(ctx, sub.Endpoint, sub.Keys); err != nil {
		m.state.RecordFailure(ctx, m.now())
		if uerr := m.push.Unsubscribe(ctx, sub); uerr != nil {
			m.logger.Error().Err(uerr).Msg("failed to roll back push subscription")
		}
		return ResultNone, fmt.Errorf("failed to register push subscription: %w", err)
	}

	m.state.ClearFailure(ctx)
	m.logger.Info().Str("endpoint", sub.Endpoint).Msg("subscribed to push notifications")
	return ResultSubscribed, nil
}

// Unsubscribe removes the subscription from the server and the device. The
// device side is removed even when the server call fails. It returns false
// when there was nothing to remove.
func (m *Manager) Unsubscribe(ctx context.Context) (bool, error) {
	if m.push == nil {
		return false, ErrUnsupported
	}

	sub, err := m.push.Subscription(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read push subscription: %w", err)
	}
	if sub == nil {
		return false, nil
	}

	if err := m.registrar.UnregisterPushSubscription(ctx, sub.Endpoint); err != nil {
		m.logger.Warn().Err(err).Msg("error unregistering subscription from server")
	}

	if err := m.push.Unsubscribe(ctx, sub); err != nil {
		return false, fmt.Errorf("failed to unsubscribe: %w", err)
	}

	m.logger.Info().Msg("unsubscribed from push notifications")
	return true, nil
}

// Enable is the user-facing "turn notifications on" flow. Denial is reported
// as ErrPermissionDenied; an ungranted permission is requested with force so a
// previous dismissal does not block it.
func (m *Manager) Enable(ctx context.Context) (Result, error) {
	switch m.GetStatus(ctx) {
	case StatusUnsupported:
		return ResultNone, ErrUnsupported
	case StatusDenied, StatusDeniedPermanent:
		return ResultNone, ErrPermissionDenied
	case StatusGranted:
		return m.Subscribe(ctx)
	}

	granted, result, err := m.negotiate(ctx, true)
	if result == ResultInFlight {
		return result, nil
	}
	if !granted {
		if err == nil {
			err = ErrPermissionNotGranted
		}
		return ResultNone, err
	}
	return result, err
}

// Subscribed reports whether the device currently holds a subscription.
func (m *Manager) Subscribed(ctx context.Context) bool {
	if m.push == nil {
		return false
	}
	sub, err := m.push.Subscription(ctx)
	return err == nil && sub != nil
}
