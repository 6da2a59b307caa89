package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/artpar/storyshare/internal/gateway"
	"github.com/artpar/storyshare/internal/settings/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePrompter answers permission prompts with a canned decision.
type fakePrompter struct {
	mu      sync.Mutex
	current Permission
	answer  Permission
	prompts int
	readErr error
	block   chan struct{}
	entered chan struct{}
}

func (p *fakePrompter) Permission(context.Context) (Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return "", p.readErr
	}
	return p.current, nil
}

func (p *fakePrompter) RequestPermission(ctx context.Context) (Permission, error) {
	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts++
	if p.answer != PermissionDefault {
		p.current = p.answer
	}
	return p.answer, nil
}

// fakeDevice is an in-memory PushManager.
type fakeDevice struct {
	mu           sync.Mutex
	sub          *Subscription
	subscribeErr error
	created      int
	removed      int
	lastKey      []byte
}

func (d *fakeDevice) Subscription(context.Context) (*Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sub, nil
}

func (d *fakeDevice) Subscribe(_ context.Context, key []byte) (*Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.subscribeErr != nil {
		return nil, d.subscribeErr
	}
	d.created++
	d.lastKey = key
	d.sub = &Subscription{
		Endpoint: "https://push.example.com/send/device-1",
		Keys:     gateway.PushKeys{P256dh: "pub", Auth: "secret"},
	}
	return d.sub, nil
}

func (d *fakeDevice) Unsubscribe(_ context.Context, sub *Subscription) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removed++
	d.sub = nil
	return nil
}

// fakeRegistrar records server-side registrations.
type fakeRegistrar struct {
	mu            sync.Mutex
	registerErr   error
	unregisterErr error
	registered    []string
	unregistered  []string
}

func (r *fakeRegistrar) RegisterPushSubscription(_ context.Context, endpoint string, _ gateway.PushKeys) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registerErr != nil {
		return r.registerErr
	}
	r.registered = append(r.registered, endpoint)
	return nil
}

func (r *fakeRegistrar) UnregisterPushSubscription(_ context.Context, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregistered = append(r.unregistered, endpoint)
	return r.unregisterErr
}

func testKey(t *testing.T) string {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes())
}

type fixture struct {
	prompter  *fakePrompter
	device    *fakeDevice
	registrar *fakeRegistrar
	state     *State
	now       time.Time
	manager   *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		prompter:  &fakePrompter{current: PermissionDefault, answer: PermissionGranted},
		device:    &fakeDevice{},
		registrar: &fakeRegistrar{},
		state:     NewState(),
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.manager = NewManager(f.state, f.prompter, f.device, f.registrar, testKey(t),
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

func TestManager_GetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported without prompter", func(t *testing.T) {
		m := NewManager(NewState(), nil, nil, &fakeRegistrar{}, testKey(t))
		assert.Equal(t, StatusUnsupported, m.GetStatus(ctx))
	})

	t.Run("reports device permission", func(t *testing.T) {
		f := newFixture(t)
		assert.Equal(t, StatusDefault, f.manager.GetStatus(ctx))
		assert.Zero(t, f.prompter.prompts)
	})

	t.Run("sticky denial overrides non-granted permission", func(t *testing.T) {
		f := newFixture(t)
		f.state.SetDenied(ctx, true)
		assert.Equal(t, StatusDeniedPermanent, f.manager.GetStatus(ctx))

		f.prompter.current = PermissionGranted
		assert.Equal(t, StatusGranted, f.manager.GetStatus(ctx))
	})

	t.Run("unreadable device keeps last known permission", func(t *testing.T) {
		f := newFixture(t)
		f.prompter.current = PermissionGranted
		assert.Equal(t, StatusGranted, f.manager.GetStatus(ctx))

		f.prompter.readErr = errors.New("settings locked")
		assert.Equal(t, StatusGranted, f.manager.GetStatus(ctx))
		assert.Equal(t, PermissionGranted, f.state.Permission())
	})
}

func TestManager_RequestPermission(t *testing.T) {
	ctx := context.Background()

	t.Run("denial is sticky", func(t *testing.T) {
		f := newFixture(t)
		f.prompter.answer = PermissionDenied

		assert.False(t, f.manager.RequestPermission(ctx, false))
		assert.True(t, f.state.Denied())
		assert.Equal(t, 1, f.prompter.prompts)

		// not asked again without force
		assert.False(t, f.manager.RequestPermission(ctx, false))
		assert.Equal(t, 1, f.prompter.prompts)

		// force asks again
		f.prompter.answer = PermissionGranted
		assert.True(t, f.manager.RequestPermission(ctx, true))
		assert.Equal(t, 2, f.prompter.prompts)
		assert.False(t, f.state.Denied())
	})

	t.Run("dismissal is retryable", func(t *testing.T) {
		f := newFixture(t)
		f.prompter.answer = PermissionDefault

		assert.False(t, f.manager.RequestPermission(ctx, false))
		assert.False(t, f.state.Denied())

		f.prompter.answer = PermissionGranted
		assert.True(t, f.manager.RequestPermission(ctx, false))
	})

	t.Run("grant subscribes immediately", func(t *testing.T) {
		f := newFixture(t)

		assert.True(t, f.manager.RequestPermission(ctx, false))
		assert.Equal(t, 1, f.device.created)
		assert.Equal(t, []string{"https://push.example.com/send/device-1"}, f.registrar.registered)
		assert.False(t, f.state.InFlight())
	})

	t.Run("second caller is skipped while in flight", func(t *testing.T) {
		f := newFixture(t)
		f.prompter.block = make(chan struct{})
		f.prompter.entered = make(chan struct{}, 1)

		done := make(chan bool)
		go func() {
			done <- f.manager.RequestPermission(ctx, false)
		}()
		<-f.prompter.entered

		assert.True(t, f.state.InFlight())
		assert.False(t, f.manager.RequestPermission(ctx, true))

		result, err := f.manager.Subscribe(ctx)
		assert.NoError(t, err)
		assert.Equal(t, ResultInFlight, result)

		close(f.prompter.block)
		assert.True(t, <-done)
		assert.Equal(t, 1, f.prompter.prompts)
		assert.Equal(t, 1, f.device.created)
	})
}

func TestManager_Subscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and registers a new subscription", func(t *testing.T) {
		f := newFixture(t)

		result, err := f.manager.Subscribe(ctx)
		require.NoError(t, err)
		assert.Equal(t, ResultSubscribed, result)
		assert.Equal(t, 1, f.device.created)
		assert.Len(t, f.device.lastKey, 65)
		assert.Len(t, f.registrar.registered, 1)
		assert.True(t, f.manager.Subscribed(ctx))
	})

	t.Run("reuses an existing subscription", func(t *testing.T) {
		f := newFixture(t)
		f.device.sub = &Subscription{Endpoint: "https://push.example.com/send/existing"}

		result, err := f.manager.Subscribe(ctx)
		require.NoError(t, err)
		assert.Equal(t, ResultReused, result)
		assert.Zero(t, f.device.created)
		assert.Equal(t, []string{"https://push.example.com/send/existing"}, f.registrar.registered)

		result, err = f.manager.Subscribe(ctx)
		require.NoError(t, err)
		assert.Equal(t, ResultReused, result)
		assert.Zero(t, f.device.created)
	})

	t.Run("rolls back a fresh subscription when the server rejects it", func(t *testing.T) {
		f := newFixture(t)
		f.registrar.registerErr = errors.New("boom")

		result, err := f.manager.Subscribe(ctx)
		require.Error(t, err)
		assert.Equal(t, ResultNone, result)
		assert.Equal(t, 1, f.device.created)
		assert.Equal(t, 1, f.device.removed)
		assert.Nil(t, f.device.sub)
		assert.Equal(t, f.now, f.state.LastFailure())
	})

	t.Run("existing subscription is kept when confirmation fails", func(t *testing.T) {
		f := newFixture(t)
		f.device.sub = &Subscription{Endpoint: "https://push.example.com/send/existing"}
		f.registrar.registerErr = errors.New("boom")

		result, err := f.manager.Subscribe(ctx)
		require.Error(t, err)
		assert.Equal(t, ResultReused, result)
		assert.NotNil(t, f.device.sub)
		assert.Zero(t, f.device.removed)
		assert.False(t, f.state.LastFailure().IsZero())
	})

	t.Run("device failure records a failure", func(t *testing.T) {
		f := newFixture(t)
		f.device.subscribeErr = errors.New("push service unreachable")

		_, err := f.manager.Subscribe(ctx)
		require.Error(t, err)
		assert.Equal(t, f.now, f.state.LastFailure())
		assert.Empty(t, f.registrar.registered)
	})

	t.Run("backoff after failure", func(t *testing.T) {
		f := newFixture(t)
		f.registrar.registerErr = errors.New("boom")
		failedAt := f.now

		_, err := f.manager.Subscribe(ctx)
		require.Error(t, err)

		f.registrar.registerErr = nil
		f.now = failedAt.Add(2 * time.Minute)
		result, err := f.manager.Subscribe(ctx)
		require.NoError(t, err)
		assert.Equal(t, ResultSkipped, result)
		assert.Equal(t, 1, f.device.created)
		assert.Empty(t, f.registrar.registered)

		f.now = failedAt.Add(6 * time.Minute)
		result, err = f.manager.Subscribe(ctx)
		require.NoError(t, err)
		assert.Equal(t, ResultSubscribed, result)
		assert.Equal(t, 2, f.device.created)
		assert.True(t, f.state.LastFailure().IsZero())
	})
}

func TestManager_Unsubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing to remove", func(t *testing.T) {
		f := newFixture(t)
		removed, err := f.manager.Unsubscribe(ctx)
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("local removal proceeds when server fails", func(t *testing.T) {
		f := newFixture(t)
		f.device.sub = &Subscription{Endpoint: "https://push.example.com/send/existing"}
		f.registrar.unregisterErr = errors.New("offline")

		removed, err := f.manager.Unsubscribe(ctx)
		require.NoError(t, err)
		assert.True(t, removed)
		assert.Nil(t, f.device.sub)
		assert.Equal(t, []string{"https://push.example.com/send/existing"}, f.registrar.unregistered)
	})
}

func TestManager_Enable(t *testing.T) {
	ctx := context.Background()

	t.Run("denied", func(t *testing.T) {
		f := newFixture(t)
		f.prompter.current = PermissionDenied

		_, err := f.manager.Enable(ctx)
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.Zero(t, f.prompter.prompts)
	})

	t.Run("prompts and subscribes once", func(t *testing.T) {
		f := newFixture(t)

		result, err := f.manager.Enable(ctx)
		require.NoError(t, err)
		assert.Equal(t, ResultSubscribed, result)
		assert.Equal(t, 1, f.prompter.prompts)
		assert.Len(t, f.registrar.registered, 1)
	})

	t.Run("dismissed", func(t *testing.T) {
		f := newFixture(t)
		f.prompter.answer = PermissionDefault

		_, err := f.manager.Enable(ctx)
		assert.ErrorIs(t, err, ErrPermissionNotGranted)
	})

	t.Run("already granted", func(t *testing.T) {
		f := newFixture(t)
		f.prompter.current = PermissionGranted

		result, err := f.manager.Enable(ctx)
		require.NoError(t, err)
		assert.Equal(t, ResultSubscribed, result)
		assert.Zero(t, f.prompter.prompts)
	})
}

func TestLoadState(t *testing.T) {
	store, err := sqlite.NewInMemory()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	failedAt := time.UnixMilli(1_700_000_000_000)

	first := LoadState(ctx, store, zerolog.Nop())
	assert.False(t, first.Denied())
	first.SetDenied(ctx, true)
	first.RecordFailure(ctx, failedAt)

	second := LoadState(ctx, store, zerolog.Nop())
	assert.True(t, second.Denied())
	assert.True(t, failedAt.Equal(second.LastFailure()))
	assert.False(t, second.InFlight())

	second.Reset(ctx)
	third := LoadState(ctx, store, zerolog.Nop())
	assert.False(t, third.Denied())
	assert.True(t, third.LastFailure().IsZero())
}

func TestDecodeApplicationServerKey(t *testing.T) {
	t.Run("default key", func(t *testing.T) {
		key, err := DecodeApplicationServerKey(DefaultApplicationServerKey)
		require.NoError(t, err)
		assert.Len(t, key, 65)
		assert.Equal(t, byte(0x04), key[0])
	})

	t.Run("accepts padding and standard alphabet", func(t *testing.T) {
		raw := testKey(t)
		padded := base64.URLEncoding.EncodeToString(mustDecode(t, raw))
		_, err := DecodeApplicationServerKey(padded)
		assert.NoError(t, err)

		std := base64.StdEncoding.EncodeToString(mustDecode(t, raw))
		_, err = DecodeApplicationServerKey(std)
		assert.NoError(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := DecodeApplicationServerKey("not a key!")
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = DecodeApplicationServerKey(base64.RawURLEncoding.EncodeToString([]byte("short")))
		assert.ErrorIs(t, err, ErrInvalidKey)

		compressed := make([]byte, 65)
		compressed[0] = 0x02
		_, err = DecodeApplicationServerKey(base64.RawURLEncoding.EncodeToString(compressed))
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestManager_InvalidKeyFailsOnlySubscribe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.manager = NewManager(f.state, f.prompter, f.device, f.registrar, "bogus",
		WithClock(func() time.Time { return f.now }),
	)

	assert.Equal(t, StatusDefault, f.manager.GetStatus(ctx))

	result, err := f.manager.Subscribe(ctx)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Equal(t, ResultNone, result)
	assert.Equal(t, f.now, f.state.LastFailure())
	assert.Zero(t, f.device.created)
	assert.Empty(t, f.registrar.registered)

	// the failure backs off like any other
	f.now = f.now.Add(time.Minute)
	result, err = f.manager.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultSkipped, result)
}

func mustDecode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := base64.RawURLEncoding.DecodeString(s)
	require.NoError(t, err)
	return b
}
