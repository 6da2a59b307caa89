package push

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/artpar/storyshare/internal/settings"
	"github.com/rs/zerolog"
)

const (
	deniedKey      = "push.denied_permanent"
	lastFailureKey = "push.last_failure"
)

// State is the process-wide subscription state shared by everything that
// negotiates notifications. The sticky denial flag and the last failure time
// are persisted so they survive restarts; both are reset only by an explicit
// success.
type State struct {
	mu          sync.Mutex
	store       settings.Store
	logger      zerolog.Logger
	permission  Permission
	inFlight    bool
	denied      bool
	lastFailure time.Time
}

// NewState creates an unpersisted state (useful for testing).
func NewState() *State {
	return &State{
		permission: PermissionDefault,
		logger:     zerolog.Nop(),
	}
}

// LoadState restores the persisted flags from store.
func LoadState(ctx context.Context, store settings.Store, logger zerolog.Logger) *State {
	s := &State{
		store:      store,
		logger:     logger,
		permission: PermissionDefault,
	}

	if v, err := store.Get(ctx, deniedKey); err == nil {
		s.denied = v == "true"
	} else if !errors.Is(err, settings.ErrNotFound) {
		logger.Warn().Err(err).Msg("failed to read sticky denial flag")
	}

	if v, err := store.Get(ctx, lastFailureKey); err == nil {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			s.lastFailure = time.UnixMilli(ms)
		}
	} else if !errors.Is(err, settings.ErrNotFound) {
		logger.Warn().Err(err).Msg("failed to read last subscription failure")
	}

	return s
}

// TryAcquire takes the in-flight guard. It never blocks: false means another
// negotiation is active.
func (s *State) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

// Release drops the in-flight guard.
func (s *State) Release() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// InFlight reports whether a negotiation is active.
func (s *State) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Permission returns the last permission observed on the device.
func (s *State) Permission() Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

func (s *State) setPermission(p Permission) {
	s.mu.Lock()
	s.permission = p
	s.mu.Unlock()
}

// Denied reports the sticky permanently-denied flag.
func (s *State) Denied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.denied
}

// SetDenied sets or clears the sticky flag.
func (s *State) SetDenied(ctx context.Context, denied bool) {
	s.mu.Lock()
	s.denied = denied
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	var err error
	if denied {
		err = s.store.Set(ctx, deniedKey, "true")
	} else {
		err = s.store.Delete(ctx, deniedKey)
	}
	if err != nil {
		s.logger.Warn().Err(err).Bool("denied", denied).Msg("failed to persist sticky denial flag")
	}
}

// LastFailure returns when the last registration attempt failed, or the zero
// time.
func (s *State) LastFailure() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFailure
}

// RecordFailure stores the time of a failed registration attempt.
func (s *State) RecordFailure(ctx context.Context, at time.Time) {
	s.mu.Lock()
	s.lastFailure = at
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	if err := s.store.Set(ctx, lastFailureKey, strconv.FormatInt(at.UnixMilli(), 10)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist subscription failure time")
	}
}

// ClearFailure forgets the last failure.
func (s *State) ClearFailure(ctx context.Context) {
	s.mu.Lock()
	had := !s.lastFailure.IsZero()
	s.lastFailure = time.Time{}
	s.mu.Unlock()

	if s.store == nil || !had {
		return
	}
	if err := s.store.Delete(ctx, lastFailureKey); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear subscription failure time")
	}
}

// Reset clears the sticky flag and the failure time.
func (s *State) Reset(ctx context.Context) {
	s.SetDenied(ctx, false)
	s.ClearFailure(ctx)
}
