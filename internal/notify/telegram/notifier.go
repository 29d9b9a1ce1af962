package telegram

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nhle/mailrelay/internal/format"
	"github.com/nhle/mailrelay/internal/model"
	"github.com/nhle/mailrelay/internal/source"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	defaultTimeout = 10 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 1 << 20
)

// Notifier sends messages to one chat via the Telegram Bot API.
type Notifier struct {
	botToken string
	chatID   string
	client   *http.Client
	baseURL  string
	limiter  *rate.Limiter
}

// New creates a Telegram notifier from cfg.
func New(cfg model.TelegramConfig) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := cfg.APIURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	n := &Notifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: timeout, Transport: transport},
		baseURL:  baseURL,
	}
	if cfg.RatePerSec > 0 {
		n.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return n
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type chat struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		Chat chat `json:"chat"`
	} `json:"result"`
}

// Deliver posts text to the configured chat. Every failure, whether in
// transport, TLS, response decoding or an ok=false reply, comes back as
// a result with OK unset; Deliver never panics on a bad response.
func (n *Notifier) Deliver(ctx context.Context, text string) model.DeliveryResult {
	text = format.Clamp(text, format.MaxLength)

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return model.DeliveryResult{Description: "rate limiter", Err: err}
		}
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:                n.chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return model.DeliveryResult{Description: "encoding request", Err: err}
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return model.DeliveryResult{Description: "building request", Err: redact(err, n.botToken)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		if isCertificateError(err) {
			return model.DeliveryResult{
				Description: "telegram TLS verification failed (set SKIP_SSL_VERIFY=1 to bypass)",
				Err:         redact(err, n.botToken),
			}
		}
		return model.DeliveryResult{Description: "telegram request", Err: redact(err, n.botToken)}
	}
	defer resp.Body.Close()

	var payload sendMessageResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return model.DeliveryResult{
			Description: fmt.Sprintf("telegram response HTTP %d", resp.StatusCode),
			Err:         fmt.Errorf("decoding response: %w", err),
		}
	}

	if !payload.OK {
		desc := payload.Description
		if desc == "" {
			desc = fmt.Sprintf("telegram API error HTTP %d", resp.StatusCode)
		}
		res := model.DeliveryResult{Description: desc}
		if resp.StatusCode == http.StatusUnauthorized {
			res.Err = &source.AuthError{
				SourceType: source.SourceTypeTelegram,
				Message:    "bot token rejected, check TELEGRAM_BOT_TOKEN",
			}
		}
		return res
	}

	c := payload.Result.Chat
	return model.DeliveryResult{
		OK:        true,
		ChatID:    c.ID,
		ChatTitle: chatTitle(c),
	}
}

// WithBaseURL sets a custom base URL (for testing).
func (n *Notifier) WithBaseURL(baseURL string) *Notifier {
	n.baseURL = baseURL
	return n
}

func chatTitle(c chat) string {
	switch {
	case c.Title != "":
		return c.Title
	case c.FirstName != "":
		return c.FirstName
	case c.Username != "":
		return c.Username
	}
	return "?"
}

func isCertificateError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostname)
}

// redact keeps the bot token out of logged URLs.
func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return &redactedError{err: err, token: token}
}

type redactedError struct {
	err   error
	token string
}

func (e *redactedError) Error() string {
	return strings.ReplaceAll(e.err.Error(), e.token, "<redacted>")
}

func (e *redactedError) Unwrap() error { return e.err }
