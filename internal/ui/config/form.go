// Package config holds the interactive setup form that stores secrets in
// the OS keyring.
package config

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/mailrelay/internal/model"
)

// Secrets are the values the setup form collects.
type Secrets struct {
	IMAPPassword  string
	TelegramToken string
	Confirm       bool
}

// NewSecretsForm builds the setup form. Empty inputs keep the stored
// value.
func NewSecretsForm(s *Secrets, width int) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Password").
				Description("Mailbox password or app password (leave empty to keep)").
				EchoMode(huh.EchoModePassword).
				Value(&s.IMAPPassword),
			huh.NewInput().
				Title("Telegram Bot Token").
				Description("Token issued by @BotFather (leave empty to keep)").
				Placeholder("123456:ABC-DEF").
				EchoMode(huh.EchoModePassword).
				Value(&s.TelegramToken).
				Validate(validateBotToken),
			huh.NewConfirm().
				Title("Store in the OS keyring?").
				Affirmative("Yes").
				Negative("Cancel").
				Value(&s.Confirm),
		),
	).WithWidth(width)
}

// Setter stores one secret.
type Setter func(key, value string) error

// secretKeys lists every keyring key the relay reads.
var secretKeys = []string{model.CredentialIMAPPassword, model.CredentialTelegramToken}

// Remover deletes one secret.
type Remover func(key string) error

// Forget removes every stored secret and returns the keys it cleared.
// It stops at the first failure.
func Forget(remove Remover) ([]string, error) {
	var removed []string
	for _, key := range secretKeys {
		if err := remove(key); err != nil {
			return removed, fmt.Errorf("removing %s: %w", key, err)
		}
		removed = append(removed, key)
	}
	return removed, nil
}

// Save stores every non-empty secret and returns the keys written.
func Save(s Secrets, set Setter) ([]string, error) {
	pairs := []struct {
		key   string
		value string
	}{
		{model.CredentialIMAPPassword, s.IMAPPassword},
		{model.CredentialTelegramToken, s.TelegramToken},
	}

	var saved []string
	for _, p := range pairs {
		value := strings.TrimSpace(p.value)
		if value == "" {
			continue
		}
		if err := set(p.key, value); err != nil {
			return saved, fmt.Errorf("storing %s: %w", p.key, err)
		}
		saved = append(saved, p.key)
	}
	return saved, nil
}

func validateBotToken(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	id, secret, ok := strings.Cut(s, ":")
	if !ok || id == "" || secret == "" {
		return fmt.Errorf("token must look like <bot id>:<secret>")
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return fmt.Errorf("bot id must be a number")
		}
	}
	return nil
}
