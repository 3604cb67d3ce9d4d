// Package notify composes terminal-state notifications for conversion tasks.
package notify

import (
	"fmt"
	"html"
	"strings"

	"bananaslides/internal/domain"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Compose renders the notification for a task that reached COMPLETED or FAILED.
func Compose(task *domain.ConversionTask) Message {
	name := task.ProjectID
	if name == "" {
		name = "your slides"
	}

	var subject, summary string
	switch task.Status {
	case domain.TaskCompleted:
		subject = fmt.Sprintf("Slides ready: %s", name)
		summary = fmt.Sprintf("All %d pages of %s were converted. Artifact: %s",
			task.Progress.Total, name, task.ResultArtifactRef)
	default:
		subject = fmt.Sprintf("Conversion failed: %s", name)
		summary = fmt.Sprintf("The conversion of %s failed.", name)
		if e := task.Error; e != nil {
			summary += fmt.Sprintf(" Stage: %s.", e.Stage)
			if e.Page > 0 {
				summary += fmt.Sprintf(" Page: %d (%s).", e.Page, e.PageID)
			}
			summary += fmt.Sprintf(" Reason: %s (%s).", e.Cause, e.Code)
		}
	}

	text := fmt.Sprintf("Task %s\n\n%s\n\nBanana Slides", task.ID, summary)

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
`)
	fmt.Fprintf(&b, "  <h2 style=\"color: #333;\">%s</h2>\n", html.EscapeString(subject))
	fmt.Fprintf(&b, "  <p>%s</p>\n", html.EscapeString(summary))
	fmt.Fprintf(&b, "  <p style=\"color: #999; font-size: 12px;\">Task %s</p>\n", task.ID)
	b.WriteString("</body>\n</html>")

	return Message{Subject: subject, Text: text, HTML: b.String()}
}
