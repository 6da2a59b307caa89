package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewTerminalNotifier(&buf)

	err := n.Show(context.Background(), Notification{Body: "3 stories uploaded to the server!"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, DefaultTitle)
	assert.Contains(t, out, "3 stories uploaded to the server!")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	require.NoError(t, n.Show(context.Background(), Notification{Title: "Story Share", Body: "New stories are available!"}))
	assert.Contains(t, buf.String(), `"title":"Story Share"`)
	assert.Contains(t, buf.String(), "New stories are available!")
}
