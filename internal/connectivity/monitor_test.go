package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProbe struct {
	mu      sync.Mutex
	results []bool
}

func (p *scriptedProbe) Check(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.results) == 1 {
		return p.results[0]
	}
	r := p.results[0]
	p.results = p.results[1:]
	return r
}

func TestMonitor_Transitions(t *testing.T) {
	ctx := context.Background()
	probe := &scriptedProbe{results: []bool{true, true, false, false, true}}

	var changes []bool
	m := NewMonitor(probe, OnChange(func(_ context.Context, online bool) {
		changes = append(changes, online)
	}))

	assert.True(t, m.Online(), "unknown status assumes online")
	for i := 0; i < 5; i++ {
		m.Check(ctx)
	}

	assert.Equal(t, []bool{false, true}, changes)
	assert.True(t, m.Online())
}

func TestMonitor_StartsOffline(t *testing.T) {
	probe := &scriptedProbe{results: []bool{false}}

	var changes []bool
	m := NewMonitor(probe, OnChange(func(_ context.Context, online bool) {
		changes = append(changes, online)
	}))

	assert.False(t, m.Check(context.Background()))
	assert.False(t, m.Online())
	assert.Equal(t, []bool{false}, changes)
}

func TestMonitor_Run(t *testing.T) {
	probe := &scriptedProbe{results: []bool{false, true}}

	came := make(chan bool, 4)
	m := NewMonitor(probe,
		WithInterval(5*time.Millisecond),
		OnChange(func(_ context.Context, online bool) {
			came <- online
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	assert.False(t, <-came)
	assert.True(t, <-came)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestHTTPProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))

	probe := HTTPProbe{URL: server.URL}
	assert.True(t, probe.Check(context.Background()), "any response means reachable")

	server.Close()
	assert.False(t, probe.Check(context.Background()))
}
