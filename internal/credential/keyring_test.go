package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useArrayKeyring(t *testing.T) {
	t.Helper()

	ring := keyring.NewArrayKeyring(nil)
	orig := openKeyring
	openKeyring = func() (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { openKeyring = orig })
}

func TestSetGetDelete(t *testing.T) {
	useArrayKeyring(t)

	require.NoError(t, Set("imap-password", "hunter2"))

	got, err := Get("imap-password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	require.NoError(t, Delete("imap-password"))

	_, err = Get("imap-password")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetMissing(t *testing.T) {
	useArrayKeyring(t)

	_, err := Get("telegram-bot-token")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "telegram-bot-token")
}

func TestDeleteMissingIsNoop(t *testing.T) {
	useArrayKeyring(t)

	assert.NoError(t, Delete("telegram-bot-token"))
}

func TestOpenFailureIsReturned(t *testing.T) {
	orig := openKeyring
	openKeyring = func() (keyring.Keyring, error) { return nil, errors.New("no backend") }
	t.Cleanup(func() { openKeyring = orig })

	_, err := Get("imap-password")
	assert.EqualError(t, err, "no backend")
	assert.EqualError(t, Set("imap-password", "x"), "no backend")
	assert.EqualError(t, Delete("imap-password"), "no backend")
}
