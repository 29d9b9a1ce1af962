package email

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func TestDecodePlainMessage(t *testing.T) {
	raw := crlf(
		"From: =?UTF-8?B?0JHQsNC90Lo=?= <noreply@bank.example>",
		"Subject: =?UTF-8?Q?=D0=92=D0=B0=D1=88_=D0=BA=D0=BE=D0=B4?=",
		"Date: Sat, 14 Mar 2026 09:26:53 +0300",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Ваш код: 483920, не сообщайте его никому",
		"",
	)

	n := Decode(raw)

	assert.Equal(t, "Ваш код", n.Subject)
	assert.Equal(t, "Банк <noreply@bank.example>", n.From)
	assert.Equal(t, "Ваш код: 483920, не сообщайте его никому", n.Body)
	assert.Empty(t, n.DateRaw)
	assert.Equal(t, "2026-03-14 09:26", n.DisplayDate())
	assert.True(t, n.Date.Equal(time.Date(2026, 3, 14, 6, 26, 53, 0, time.UTC)))
	assert.Empty(t, n.Codes)
}

func TestDecodeLegacyCharset(t *testing.T) {
	raw := crlf(
		"Subject: =?KOI8-R?B?8NLJ18XU?=",
		"Content-Type: text/plain; charset=koi8-r",
		"Content-Transfer-Encoding: base64",
		"",
		"8NLJ18XU",
		"",
	)

	n := Decode(raw)

	assert.Equal(t, "Привет", n.Subject)
	assert.Equal(t, "Привет", n.Body)
}

func TestDecodeUnparseableDateKeepsRaw(t *testing.T) {
	raw := crlf(
		"Subject: hi",
		"Date: sometime last tuesday",
		"",
		"body",
	)

	n := Decode(raw)

	assert.True(t, n.Date.IsZero())
	assert.Equal(t, "sometime last tuesday", n.DateRaw)
	assert.Equal(t, "sometime last tuesday", n.DisplayDate())
}

func TestDecodeBrokenPlainFallsBackToHTML(t *testing.T) {
	raw := crlf(
		"Subject: broken",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: base64",
		"",
		"!!!!not-base64!!!!",
		"--b1",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<html><head><style>p{color:red}</style></head>",
		"<body><p>Your&nbsp;code   is</p><b>777111</b></body></html>",
		"--b1--",
		"",
	)

	n := Decode(raw)

	require.NotEmpty(t, n.Body)
	assert.Equal(t, "Your code is 777111", n.Body)
	assert.NotContains(t, n.Body, "<")
	assert.NotContains(t, n.Body, "color")
}

func TestDecodeUnknownCharsetPlainFallsBackToHTML(t *testing.T) {
	raw := crlf(
		"Subject: charset",
		`Content-Type: multipart/alternative; boundary="b2"`,
		"",
		"--b2",
		"Content-Type: text/plain; charset=x-no-such-charset",
		"",
		"\xff garbage",
		"--b2",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Your code is 777111</p>",
		"--b2--",
		"",
	)

	n := Decode(raw)

	assert.Equal(t, "Your code is 777111", n.Body)
}

func TestDecodeUnknownEncodingPlainFallsBackToHTML(t *testing.T) {
	raw := crlf(
		"Subject: encoding",
		`Content-Type: multipart/alternative; boundary="b3"`,
		"",
		"--b3",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: x-uuencode",
		"",
		"begin 644 code.txt",
		"--b3",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<div>PIN <b>4821</b></div>",
		"--b3--",
		"",
	)

	n := Decode(raw)

	assert.Equal(t, "PIN 4821", n.Body)
}

func TestDecodeSinglePartUnknownCharsetKeepsRawBody(t *testing.T) {
	raw := crlf(
		"Subject: single",
		"Content-Type: text/plain; charset=x-no-such-charset",
		"",
		"code 5150",
	)

	n := Decode(raw)

	assert.Equal(t, "code 5150", n.Body)
}

func TestDecodePrefersPlainOverHTML(t *testing.T) {
	raw := crlf(
		"Subject: both",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/html",
		"",
		"<p>html version</p>",
		"--inner",
		"Content-Type: text/plain",
		"",
		"plain version",
		"--inner--",
		"--outer",
		"Content-Type: text/plain",
		`Content-Disposition: attachment; filename="notes.txt"`,
		"",
		"attachment text",
		"--outer--",
		"",
	)

	n := Decode(raw)

	assert.Equal(t, "plain version", n.Body)
}

func TestDecodeSkipsAttachments(t *testing.T) {
	raw := crlf(
		"Subject: invoice",
		`Content-Type: multipart/mixed; boundary="m"`,
		"",
		"--m",
		"Content-Type: text/plain",
		`Content-Disposition: attachment; filename="invoice.txt"`,
		"",
		"attachment only",
		"--m--",
		"",
	)

	n := Decode(raw)

	assert.Equal(t, "invoice", n.Subject)
	assert.Empty(t, n.Body)
}

func TestDecodeTruncatesBody(t *testing.T) {
	raw := crlf(
		"Subject: long",
		"Content-Type: text/plain; charset=utf-8",
		"",
		strings.Repeat("ж", MaxBodyLength+250),
	)

	n := Decode(raw)

	assert.Equal(t, MaxBodyLength, utf8.RuneCountInString(n.Body))
}

func TestDecodeUnknownHeaderCharsetKeepsRawText(t *testing.T) {
	raw := crlf(
		"Subject: =?x-no-such-charset?Q?hello?=",
		"",
		"body",
	)

	n := Decode(raw)

	assert.NotEmpty(t, n.Subject)
	assert.Equal(t, "body", n.Body)
	assert.True(t, utf8.ValidString(n.Subject))
}

func TestDecodeInvalidUTF8IsReplaced(t *testing.T) {
	raw := append(crlf("Subject: bytes", "", ""), 0xff, 'o', 'k')

	n := Decode(raw)

	assert.True(t, utf8.ValidString(n.Body))
	assert.Equal(t, "�ok", n.Body)
}
