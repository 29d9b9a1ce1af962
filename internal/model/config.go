package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nhle/mailrelay/internal/credential"
)

// IMAP transport security modes.
const (
	SecurityTLS      = "tls"
	SecurityStartTLS = "starttls"
	SecurityNone     = "none"
)

// Keyring keys used when a secret is not present in the environment.
const (
	CredentialIMAPPassword  = "imap-password"
	CredentialTelegramToken = "telegram-bot-token"
)

// IMAPConfig holds the mailbox connection settings.
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Folder   string

	// Security is one of SecurityTLS, SecurityStartTLS or SecurityNone.
	Security string

	// Timeout bounds every blocking protocol step (dial, greeting,
	// login, select, search, fetch, store, logout).
	Timeout time.Duration

	// MarkSeen flags a message \Seen after it was delivered.
	MarkSeen bool

	InsecureSkipVerify bool
}

// Addr returns the host:port dial address.
func (c IMAPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TelegramConfig holds the chat delivery settings.
type TelegramConfig struct {
	BotToken           string
	ChatID             string
	APIURL             string
	Timeout            time.Duration
	RatePerSec         float64
	InsecureSkipVerify bool
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string
	File        string
	Development bool
}

// Config is the immutable process configuration. It is built once at
// startup and handed to the components that need it.
type Config struct {
	IMAP     IMAPConfig
	Telegram TelegramConfig
	Log      LogConfig

	PollInterval time.Duration

	// StateFile is the path of the persisted cursor.
	StateFile string

	// JournalPath is the SQLite delivery journal. Empty disables it.
	JournalPath string

	// MetricsAddr is the listen address of the metrics and health
	// endpoints. Empty disables the server.
	MetricsAddr string
}

// lookupSecret resolves secrets missing from the environment.
var lookupSecret = credential.Get

// LoadConfig reads .env files and the process environment into a Config.
//
// The .env next to the executable is loaded first, then the one in the
// working directory. Variables already present in the environment win.
func LoadConfig() (*Config, error) {
	exeDir := executableDir()
	_ = godotenv.Load(filepath.Join(exeDir, ".env"))
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("imap_port", 143)
	v.SetDefault("imap_folder", "INBOX")
	v.SetDefault("imap_timeout", 30)
	v.SetDefault("imap_mark_seen", "true")
	v.SetDefault("check_interval_sec", 60)
	v.SetDefault("telegram_api_url", "https://api.telegram.org")
	v.SetDefault("telegram_timeout", 10)
	v.SetDefault("telegram_rate_per_sec", 1.0)
	v.SetDefault("imap_state_file", filepath.Join(exeDir, ".imap_last_uid"))
	v.SetDefault("journal_path", filepath.Join(exeDir, "mailrelay.db"))
	v.SetDefault("log_level", "info")

	skipVerify := truthy(v.GetString("skip_ssl_verify"))

	security := strings.ToLower(strings.TrimSpace(v.GetString("imap_security")))
	if security == "" {
		security = SecurityNone
		if truthy(v.GetString("imap_use_ssl")) {
			security = SecurityTLS
		}
	}
	switch security {
	case SecurityTLS, SecurityStartTLS, SecurityNone:
	default:
		return nil, fmt.Errorf("invalid IMAP_SECURITY %q (want tls, starttls or none)", security)
	}

	port := v.GetInt("imap_port")
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid IMAP_PORT %q", v.GetString("imap_port"))
	}

	interval := v.GetInt("check_interval_sec")
	if interval <= 0 {
		interval = 60
	}
	imapTimeout := v.GetInt("imap_timeout")
	if imapTimeout <= 0 {
		imapTimeout = 30
	}
	tgTimeout := v.GetInt("telegram_timeout")
	if tgTimeout <= 0 {
		tgTimeout = 10
	}

	cfg := &Config{
		IMAP: IMAPConfig{
			Host:               strings.TrimSpace(v.GetString("imap_host")),
			Port:               port,
			Username:           v.GetString("imap_user"),
			Password:           v.GetString("imap_password"),
			Folder:             v.GetString("imap_folder"),
			Security:           security,
			Timeout:            time.Duration(imapTimeout) * time.Second,
			MarkSeen:           truthy(v.GetString("imap_mark_seen")),
			InsecureSkipVerify: skipVerify,
		},
		Telegram: TelegramConfig{
			BotToken:           v.GetString("telegram_bot_token"),
			ChatID:             strings.TrimSpace(v.GetString("telegram_chat_id")),
			APIURL:             strings.TrimRight(v.GetString("telegram_api_url"), "/"),
			Timeout:            time.Duration(tgTimeout) * time.Second,
			RatePerSec:         v.GetFloat64("telegram_rate_per_sec"),
			InsecureSkipVerify: skipVerify,
		},
		Log: LogConfig{
			Level:       v.GetString("log_level"),
			File:        v.GetString("log_file"),
			Development: truthy(v.GetString("log_development")),
		},
		PollInterval: time.Duration(interval) * time.Second,
		StateFile:    v.GetString("imap_state_file"),
		JournalPath:  v.GetString("journal_path"),
		MetricsAddr:  v.GetString("metrics_addr"),
	}

	if cfg.IMAP.Password == "" {
		if secret, err := lookupSecret(CredentialIMAPPassword); err == nil {
			cfg.IMAP.Password = secret
		}
	}
	if cfg.Telegram.BotToken == "" {
		if secret, err := lookupSecret(CredentialTelegramToken); err == nil {
			cfg.Telegram.BotToken = secret
		}
	}

	return cfg, nil
}

// Validate reports missing required settings. Telegram settings are
// only required when requireTelegram is set (the init command never
// delivers anything).
func (c *Config) Validate(requireTelegram bool) error {
	var missing []string
	if c.IMAP.Host == "" {
		missing = append(missing, "IMAP_HOST")
	}
	if c.IMAP.Username == "" {
		missing = append(missing, "IMAP_USER")
	}
	if c.IMAP.Password == "" {
		missing = append(missing, "IMAP_PASSWORD")
	}
	if requireTelegram {
		if c.Telegram.BotToken == "" {
			missing = append(missing, "TELEGRAM_BOT_TOKEN")
		}
		if c.Telegram.ChatID == "" {
			missing = append(missing, "TELEGRAM_CHAT_ID")
		}
	}
	if len(missing) > 0 {
		return errors.New("missing required settings: " + strings.Join(missing, ", "))
	}
	return nil
}

// TelegramConfigured reports whether a startup ping can be sent.
func (c *Config) TelegramConfigured() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
