// Package harness provides E2E testing utilities for storyshare.
package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/storyshare/e2e/testserver"
)

// E2EHarness is the main test orchestrator.
type E2EHarness struct {
	t          *testing.T
	server     *testserver.Server
	tmpDir     string
	configPath string
	timeout    time.Duration
}

// Config configures the harness.
type Config struct {
	Timeout time.Duration // Default: 10 seconds
}

// New starts a story API and writes a config pointing the CLI at it.
func New(t *testing.T, cfg Config) *E2EHarness {
	t.Helper()

	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	h := &E2EHarness{
		t:       t,
		server:  testserver.New(),
		tmpDir:  t.TempDir(),
		timeout: cfg.Timeout,
	}
	t.Cleanup(h.server.Close)

	h.configPath = filepath.Join(h.tmpDir, "config.yaml")
	config := fmt.Sprintf(`base_url: %s
data_dir: %s
push_service_url: https://push.example.com/send
request_timeout: 2s
detail_timeout: 2s
log_level: error
`, h.server.APIURL(), filepath.Join(h.tmpDir, "data"))
	if err := os.WriteFile(h.configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	return h
}

// API returns the story API server.
func (h *E2EHarness) API() *testserver.Server {
	return h.server
}

// TmpDir returns the temporary directory path.
func (h *E2EHarness) TmpDir() string {
	return h.tmpDir
}

// Timeout returns the configured timeout.
func (h *E2EHarness) Timeout() time.Duration {
	return h.timeout
}

// T returns the testing.T instance.
func (h *E2EHarness) T() *testing.T {
	return h.t
}

// CLI returns a CLI runner for this harness.
func (h *E2EHarness) CLI() *CLIRunner {
	return &CLIRunner{harness: h}
}

// WritePhoto writes a small PNG-signed file and returns its path.
func (h *E2EHarness) WritePhoto(name string) string {
	h.t.Helper()
	path := filepath.Join(h.tmpDir, name)
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"+name), 0o644); err != nil {
		h.t.Fatalf("failed to write photo: %v", err)
	}
	return path
}
