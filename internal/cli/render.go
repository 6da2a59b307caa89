package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/artpar/storyshare/internal/story"
	"github.com/charmbracelet/lipgloss"
)

var (
	nameStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	metaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	favStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// writeRecords prints records as an indented JSON array, or as text blocks.
func writeRecords(w io.Writer, asJSON bool, records []story.Record) error {
	if !asJSON {
		renderStories(w, records)
		return nil
	}
	if records == nil {
		records = []story.Record{}
	}
	return writeJSON(w, records)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderStories writes one block per story.
func renderStories(w io.Writer, records []story.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, metaStyle.Render("No stories."))
		return
	}
	for _, r := range records {
		renderSummary(w, r)
	}
}

func renderSummary(w io.Writer, r story.Record) {
	var tags []string
	if r.IsFavorite {
		tags = append(tags, favStyle.Render("★ favorite"))
	}
	if r.IsPendingUpload {
		tags = append(tags, pendingStyle.Render("⏳ pending upload"))
	}

	title := nameStyle.Render(r.Name)
	if len(tags) > 0 {
		title += "  " + strings.Join(tags, " ")
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, metaStyle.Render(fmt.Sprintf("%s · %s", r.ID, formatDate(r.CreatedAt))))
	fmt.Fprintln(w, "  "+truncate(firstLine(r.Description), 80))
	fmt.Fprintln(w)
}

// renderDetail writes every field of a story.
func renderDetail(w io.Writer, r story.Record) {
	renderSummary(w, r)
	fmt.Fprintln(w, r.Description)
	if r.HasLocation() {
		fmt.Fprintln(w, metaStyle.Render(fmt.Sprintf("Location: %.5f, %.5f", *r.Lat, *r.Lon)))
	}
	if !r.IsPendingUpload && r.PhotoURL != "" {
		fmt.Fprintln(w, metaStyle.Render("Photo: "+r.PhotoURL))
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown date"
	}
	return t.Local().Format("2 Jan 2006 15:04")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func printOK(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, okStyle.Render(fmt.Sprintf(format, args...)))
}

func printWarn(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf(format, args...)))
}
