// Package connectivity reports when the story API becomes reachable or
// unreachable.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is how often the probe runs.
const DefaultInterval = 30 * time.Second

// Probe checks reachability once.
type Probe interface {
	Check(ctx context.Context) bool
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) bool

// Check calls f.
func (f ProbeFunc) Check(ctx context.Context) bool {
	return f(ctx)
}

// HTTPProbe issues a HEAD request. Any HTTP response counts as online; only
// transport failures count as offline.
type HTTPProbe struct {
	URL    string
	Client *http.Client
}

// Check implements Probe.
func (p HTTPProbe) Check(ctx context.Context) bool {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// ChangeFunc is called on every transition.
type ChangeFunc func(ctx context.Context, online bool)

// Monitor polls a Probe and reports transitions.
type Monitor struct {
	probe    Probe
	interval time.Duration
	onChange ChangeFunc
	logger   zerolog.Logger

	mu     sync.RWMutex
	online bool
	known  bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// OnChange sets the transition callback.
func OnChange(fn ChangeFunc) Option {
	return func(m *Monitor) {
		m.onChange = fn
	}
}

// WithLogger sets the monitor logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// NewMonitor creates a monitor. The status is unknown until the first check.
func NewMonitor(probe Probe, opts ...Option) *Monitor {
	m := &Monitor{
		probe:    probe,
		interval: DefaultInterval,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "connectivity").Logger()
	return m
}

// Online reports the last known status. Before the first check it assumes
// online.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.known || m.online
}

// Check probes once, records the result and fires the callback when the
// status changed. The first check establishes the baseline and only fires
// when it finds the API unreachable.
func (m *Monitor) Check(ctx context.Context) bool {
	online := m.probe.Check(ctx)

	m.mu.Lock()
	changed := m.known && m.online != online || !m.known && !online
	m.online = online
	m.known = true
	m.mu.Unlock()

	if changed {
		m.logger.Info().Bool("online", online).Msg("connectivity changed")
		if m.onChange != nil {
			m.onChange(ctx, online)
		}
	}
	return online
}

// Run checks immediately and then every interval until ctx ends.
func (m *Monitor) Run(ctx context.Context) error {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
