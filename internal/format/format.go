// Package format renders notifications as chat messages.
package format

import (
	"strings"
	"unicode/utf8"

	"github.com/nhle/mailrelay/internal/model"
)

const (
	// MaxLength is the delivery endpoint's message-size ceiling in
	// characters.
	MaxLength = 4000

	// PreviewLength bounds the body preview.
	PreviewLength = 500

	ellipsis = "..."

	header        = "📧 New email"
	noSubject     = "(no subject)"
	unknownSender = "(unknown sender)"
)

// Render produces the chat message for n. The result never exceeds
// MaxLength characters.
func Render(n model.Notification) string {
	lines := []string{
		header,
		"Subject: " + orDefault(n.Subject, noSubject),
		"From: " + orDefault(n.From, unknownSender),
		"Date: " + n.DisplayDate(),
	}
	if len(n.Codes) > 0 {
		lines = append(lines, "Codes: "+strings.Join(n.Codes, ", "))
	}
	if n.Body != "" {
		lines = append(lines, "\n"+Preview(n.Body, PreviewLength))
	}

	return Clamp(strings.Join(lines, "\n"), MaxLength)
}

// Preview flattens body onto one line and keeps its first limit
// characters, appending an ellipsis when the body was longer.
func Preview(body string, limit int) string {
	flat := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(body)
	flat = strings.TrimSpace(flat)
	preview := Truncate(flat, limit)
	if utf8.RuneCountInString(body) > limit {
		preview += ellipsis
	}
	return preview
}

// Clamp cuts s to at most limit characters, reserving room for a
// trailing ellipsis when it has to cut.
func Clamp(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return Truncate(ellipsis, limit)
	}
	return Truncate(s, limit-len(ellipsis)) + ellipsis
}

// Truncate returns the first limit characters of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
