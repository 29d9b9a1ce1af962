package testutil

import (
	"fmt"
	"strings"
)

// PlainMessage builds a minimal RFC 5322 message with a UTF-8 text body.
func PlainMessage(from, subject, body string) []byte {
	return []byte(strings.Join([]string{
		"From: " + from,
		"Subject: " + subject,
		"Date: Mon, 04 May 2026 10:15:00 +0000",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
		"",
	}, "\r\n"))
}

// NumberedMessage returns a distinct plain message for uid.
func NumberedMessage(uid uint32) []byte {
	return PlainMessage(
		"sender@example.com",
		fmt.Sprintf("message %d", uid),
		fmt.Sprintf("body of message %d", uid),
	)
}
