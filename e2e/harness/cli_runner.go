package harness

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/artpar/storyshare/internal/cli"
)

// CLIResult holds CLI execution results.
type CLIResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// CLIRunner executes CLI commands.
type CLIRunner struct {
	harness *E2EHarness
	stdin   string
}

// WithInput returns a runner that feeds input to prompts.
func (r *CLIRunner) WithInput(input string) *CLIRunner {
	return &CLIRunner{harness: r.harness, stdin: input}
}

// Run executes a CLI command with the given arguments.
func (r *CLIRunner) Run(args ...string) (*CLIResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.harness.timeout)
	defer cancel()

	start := time.Now()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := cli.NewRootCommand("test")
	cmd.SetIn(strings.NewReader(r.stdin))
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--config", r.harness.configPath}, args...))

	err := cmd.ExecuteContext(ctx)

	result := &CLIResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		result.ExitCode = 1
	}

	return result, err
}

// Login is a convenience method for the login command.
func (r *CLIRunner) Login(email, password string) (*CLIResult, error) {
	return r.Run("login", "--email", email, "--password", password)
}

// Add is a convenience method for the add command.
func (r *CLIRunner) Add(name, description, photo string, opts ...string) (*CLIResult, error) {
	args := []string{"add", "--name", name, "--description", description, "--photo", photo}
	args = append(args, opts...)
	return r.Run(args...)
}
