// Package notify shows informational notifications to the user.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

// DefaultTitle is the title used for application notifications.
const DefaultTitle = "Story Share"

// Notification is a single informational message.
type Notification struct {
	Title string
	Body  string
}

// Notifier shows notifications. Showing is best effort; callers do not act on
// failures beyond logging them.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier backed by logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Show implements Notifier.
func (n *LogNotifier) Show(_ context.Context, notification Notification) error {
	n.logger.Info().Str("title", notification.Title).Msg(notification.Body)
	return nil
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	bodyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

// TerminalNotifier renders notifications as a boxed banner.
type TerminalNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminalNotifier creates a notifier that writes banners to out.
func NewTerminalNotifier(out io.Writer) *TerminalNotifier {
	return &TerminalNotifier{out: out}
}

// Show implements Notifier.
func (n *TerminalNotifier) Show(_ context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	title := notification.Title
	if title == "" {
		title = DefaultTitle
	}
	banner := boxStyle.Render(titleStyle.Render(title) + "\n" + bodyStyle.Render(notification.Body))
	_, err := fmt.Fprintln(n.out, banner)
	return err
}
