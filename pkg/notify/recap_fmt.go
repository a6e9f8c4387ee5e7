package notify

import (
	"fmt"
	"strings"
)

// RecapAnnouncement describes a freshly published recap.
type RecapAnnouncement struct {
	Title   string
	Date    string
	URL     string
	Excerpt string
	Scores  []string
}

// FormatRecap renders a publish announcement as plain text.
func FormatRecap(a RecapAnnouncement) Message {
	var sb strings.Builder
	if a.Excerpt != "" {
		sb.WriteString(a.Excerpt)
		sb.WriteString("\n")
	}
	if len(a.Scores) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Final scores (%s):\n", a.Date)
		for _, s := range a.Scores {
			sb.WriteString("• ")
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}
	return Message{
		Title:  a.Title,
		Body:   strings.TrimSpace(sb.String()),
		Format: "plain",
		URL:    a.URL,
	}
}

// FormatFailure renders a run failure so operators see which stage broke.
func FormatFailure(date, stage string, err error) Message {
	return Message{
		Title:  fmt.Sprintf("NBA recap for %s failed", date),
		Body:   fmt.Sprintf("Stage: %s\nError: %v", stage, err),
		Format: "plain",
	}
}
