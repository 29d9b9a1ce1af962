package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/mailrelay/internal/model"
)

func TestRenderChecks(t *testing.T) {
	out := NewLayout(80).RenderChecks([]CheckResult{
		{Name: "IMAP", OK: true, Detail: "12 messages"},
		{Name: "Telegram", OK: false, Detail: "Unauthorized"},
	})

	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "IMAP")
	assert.Contains(t, lines[0], "12 messages")
	assert.Contains(t, lines[1], "Unauthorized")
}

func TestRenderJournal(t *testing.T) {
	l := NewLayout(100)

	assert.Contains(t, l.RenderJournal(nil), "no deliveries")

	out := l.RenderJournal([]model.JournalEntry{{
		UID:       42,
		Subject:   "Login code",
		Codes:     []string{"123456"},
		Status:    model.JournalDelivered,
		CreatedAt: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}})
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "Login code [123456]")
	assert.Contains(t, out, "delivered")
}

func TestRenderPanelAndHeader(t *testing.T) {
	l := NewLayout(0)
	assert.Equal(t, 80, l.Width)

	panel := l.RenderPanel([]Field{{Label: "Cursor", Value: "17"}})
	assert.Contains(t, panel, "Cursor")
	assert.Contains(t, panel, "17")

	header := l.RenderHeader("mailrelay", "idle")
	assert.Contains(t, header, "mailrelay")
	assert.Contains(t, header, "idle")
}

func TestCompose(t *testing.T) {
	assert.Equal(t, "a\n\nb", Compose("a", "", "b"))
}
