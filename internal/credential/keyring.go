package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const (
	serviceName = "mailrelay"

	// fileDir holds the encrypted file backend used on hosts without a
	// desktop secret service, such as a headless server running the relay.
	fileDir = "~/.config/mailrelay/credentials"
)

// ErrNotFound is returned by Get when no secret is stored under a key.
var ErrNotFound = errors.New("credential not stored")

// openKeyring returns a configured keyring instance.
var openKeyring = func() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("mailrelay-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring (headless hosts use the file backend in %s): %w", fileDir, err)
	}
	return ring, nil
}

// Get returns the secret stored under key. A missing key yields an
// error wrapping ErrNotFound, which callers treat as "use the
// environment only".
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("reading %q from keyring: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores value under key, replacing any previous secret.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       serviceName + " " + key,
		Description: "mailrelay secret",
	})
	if err != nil {
		return fmt.Errorf("storing %q in keyring: %w", key, err)
	}

	return nil
}

// Delete removes the secret stored under key. Removing a key that was
// never stored is not an error.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("removing %q from keyring: %w", key, err)
	}

	return nil
}
