package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailrelay/internal/format"
	"github.com/nhle/mailrelay/internal/model"
	"github.com/nhle/mailrelay/internal/theme"
)

// Layout renders command output to a fixed terminal width.
type Layout struct {
	Width int
}

// NewLayout creates a Layout. Non-positive widths fall back to 80.
func NewLayout(width int) Layout {
	if width <= 0 {
		width = 80
	}
	return Layout{Width: width}
}

// RenderHeader renders a title bar with a right-aligned status.
func (l Layout) RenderHeader(title string, status string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(status)

	gap := max(l.Width-lipgloss.Width(titleRendered)-lipgloss.Width(statusRendered), 0)

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, titleRendered, filler, statusRendered)
}

// Field is one labelled line in a panel.
type Field struct {
	Label string
	Value string
}

// RenderPanel renders fields as an aligned, bordered block.
func (l Layout) RenderPanel(fields []Field) string {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, theme.LabelStyle.Render(f.Label)+f.Value)
	}
	return theme.PanelStyle.
		Width(l.Width - 2).
		Render(strings.Join(lines, "\n"))
}

// CheckResult is one line of `check` output.
type CheckResult struct {
	Name   string
	OK     bool
	Detail string
}

// RenderChecks renders pass/fail lines.
func (l Layout) RenderChecks(results []CheckResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		mark := theme.OKStyle.Render("✓")
		if !r.OK {
			mark = theme.FailStyle.Render("✗")
		}
		line := fmt.Sprintf("%s %s", mark, r.Name)
		if r.Detail != "" {
			line += "  " + theme.HelpStyle.Render(r.Detail)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// RenderJournal renders recent journal entries, newest first.
func (l Layout) RenderJournal(entries []model.JournalEntry) string {
	if len(entries) == 0 {
		return theme.HelpStyle.Render("no deliveries recorded")
	}

	subjectWidth := max(l.Width-40, 10)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		status := theme.StatusStyle(e.Status).Width(13).Render(e.Status)
		subject := format.Truncate(e.Subject, subjectWidth)
		if len(e.Codes) > 0 {
			subject += " [" + strings.Join(e.Codes, ", ") + "]"
		}
		lines = append(lines, fmt.Sprintf("%s %-8d %s %s",
			e.CreatedAt.Local().Format(time.DateTime),
			e.UID,
			status,
			subject,
		))
	}
	return strings.Join(lines, "\n")
}

// Compose joins rendered blocks with blank lines between them.
func Compose(blocks ...string) string {
	kept := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b != "" {
			kept = append(kept, b)
		}
	}
	return strings.Join(kept, "\n\n")
}
