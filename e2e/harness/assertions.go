package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
)

// Assertions checks CLI output in terms of rendered stories.
type Assertions struct {
	t *testing.T
}

// NewAssertions creates an assertions helper.
func NewAssertions(t *testing.T) *Assertions {
	return &Assertions{t: t}
}

// OutputContains asserts the output contains all given strings.
func (a *Assertions) OutputContains(output string, expected ...string) {
	a.t.Helper()
	for _, exp := range expected {
		assert.Contains(a.t, output, exp)
	}
}

// OutputNotContains asserts the output contains none of the given strings.
func (a *Assertions) OutputNotContains(output string, unexpected ...string) {
	a.t.Helper()
	for _, unexp := range unexpected {
		assert.NotContains(a.t, output, unexp)
	}
}

// Listed asserts a story block titled with each name is present.
func (a *Assertions) Listed(output string, names ...string) {
	a.t.Helper()
	for _, name := range names {
		_, ok := storyBlock(output, name)
		assert.True(a.t, ok, "expected story %q in listing:\n%s", name, output)
	}
}

// NotListed asserts no story block is titled with any of the names.
func (a *Assertions) NotListed(output string, names ...string) {
	a.t.Helper()
	for _, name := range names {
		_, ok := storyBlock(output, name)
		assert.False(a.t, ok, "unexpected story %q in listing:\n%s", name, output)
	}
}

// Pending asserts the story is listed and marked as waiting for upload.
func (a *Assertions) Pending(output, name string) {
	a.t.Helper()
	a.tagged(output, name, "pending upload")
}

// Favorite asserts the story is listed and marked as favorite.
func (a *Assertions) Favorite(output, name string) {
	a.t.Helper()
	a.tagged(output, name, "favorite")
}

// Uploaded asserts a sync reported n uploaded stories.
func (a *Assertions) Uploaded(result *CLIResult, n int) {
	a.t.Helper()
	assert.Zero(a.t, result.ExitCode)
	assert.Contains(a.t, result.Stdout, fmt.Sprintf("%d stories uploaded to the server!", n))
}

func (a *Assertions) tagged(output, name, tag string) {
	a.t.Helper()
	block, ok := storyBlock(output, name)
	if !assert.True(a.t, ok, "expected story %q in listing:\n%s", name, output) {
		return
	}
	title, _, _ := strings.Cut(block, "\n")
	assert.Contains(a.t, title, tag, "story %q", name)
}

// storyBlock finds the rendered block whose title line starts with name. The
// block runs to the next blank line.
func storyBlock(output, name string) (string, bool) {
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		title := ansi.Strip(line)
		if title != name && !strings.HasPrefix(title, name+"  ") {
			continue
		}
		end := i
		for end < len(lines) && lines[end] != "" {
			end++
		}
		return strings.Join(lines[i:end], "\n"), true
	}
	return "", false
}
