package email

import (
	"bytes"
	"errors"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailrelay/internal/format"
	"github.com/nhle/mailrelay/internal/model"
)

// MaxBodyLength bounds the decoded body before any further processing.
const MaxBodyLength = 3000

// maxDepth stops runaway multipart nesting.
const maxDepth = 10

var (
	scriptPattern     = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	stylePattern      = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`[\s\p{Z}]+`)
)

// Decode turns a raw RFC 5322 message into a Notification. Codes are
// left empty. It never fails: parts that cannot be decoded contribute
// nothing and headers that cannot be decoded are kept as raw text.
func Decode(raw []byte) model.Notification {
	// An unknown charset or transfer encoding still yields a readable
	// entity; only an unreadable header block yields none.
	entity, _ := message.Read(bytes.NewReader(raw))
	if entity == nil {
		return model.Notification{
			Body: clampBody(sanitize(string(raw))),
		}
	}

	h := mail.Header{Header: entity.Header}
	n := model.Notification{
		Subject: headerText(h, "Subject"),
		From:    headerText(h, "From"),
	}

	if rawDate := strings.TrimSpace(h.Get("Date")); rawDate != "" {
		if date, err := h.Date(); err == nil {
			n.Date = date
		} else {
			n.DateRaw = sanitize(rawDate)
		}
	}

	// A single-part message has no other candidate, so its body is kept
	// as received even when the charset or encoding is unknown.
	var bodies bodyParts
	bodies.walk(entity, 0, nil)
	n.Body = clampBody(bodies.best())

	return n
}

// headerText decodes RFC 2047 encoded words in the named header. A value
// whose charset cannot be decoded is returned as received, with invalid
// bytes replaced.
func headerText(h mail.Header, key string) string {
	v, err := h.Text(key)
	if err != nil {
		v = h.Get(key)
	}
	return strings.TrimSpace(sanitize(v))
}

// bodyParts collects the first readable plain-text and HTML parts.
type bodyParts struct {
	plain    string
	html     string
	hasPlain bool
	hasHTML  bool
}

func (b *bodyParts) best() string {
	if b.hasPlain {
		return b.plain
	}
	return b.html
}

// walk visits e and its children. partErr is the error go-message
// reported while setting up e's body decoding.
func (b *bodyParts) walk(e *message.Entity, depth int, partErr error) {
	if depth > maxDepth || b.hasPlain {
		return
	}

	if mr := e.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return
			}
			if part == nil {
				// The multipart stream itself is broken; nothing after
				// this point can be located.
				return
			}
			b.walk(part, depth+1, err)
			if b.hasPlain {
				return
			}
		}
	}

	// Undecodable parts would contribute raw bytes; the next candidate
	// is tried instead.
	if undecodable(partErr) {
		return
	}

	if disp, _, _ := e.Header.ContentDisposition(); strings.EqualFold(disp, "attachment") {
		return
	}

	mediaType, _, _ := e.Header.ContentType()
	mediaType = strings.ToLower(mediaType)
	if mediaType == "" {
		mediaType = "text/plain"
	}

	switch mediaType {
	case "text/plain":
		text, ok := readPart(e)
		if !ok {
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		b.plain, b.hasPlain = text, true
	case "text/html":
		if b.hasHTML {
			return
		}
		markup, ok := readPart(e)
		if !ok {
			return
		}
		b.html, b.hasHTML = stripHTML(markup), true
	}
}

func undecodable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

// readPart reads a decoded part body. A transfer-encoding failure or a
// read error makes the part unusable.
func readPart(e *message.Entity) (string, bool) {
	data, err := io.ReadAll(e.Body)
	if err != nil {
		return "", false
	}
	return sanitize(string(data)), true
}

// stripHTML reduces markup to its text: tags become spaces, entities
// are unescaped and whitespace runs collapse.
func stripHTML(markup string) string {
	text := scriptPattern.ReplaceAllString(markup, " ")
	text = stylePattern.ReplaceAllString(text, " ")
	text = tagPattern.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func clampBody(s string) string {
	return format.Truncate(strings.TrimSpace(s), MaxBodyLength)
}

func sanitize(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}
