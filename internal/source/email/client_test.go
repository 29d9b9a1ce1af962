package email

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailrelay/internal/model"
	"github.com/nhle/mailrelay/internal/source"
	"github.com/nhle/mailrelay/tests/testutil"
)

const (
	testUser     = "relay@example.com"
	testPassword = "s3cret"
)

func sampleMessage(subject string) []byte {
	return []byte("From: sender@example.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"code 4821\r\n")
}

func startServer(t *testing.T, messages ...[]byte) int {
	t.Helper()
	return testutil.StartIMAPServer(t, testUser, testPassword, messages...)
}

func testConfig(port int) model.IMAPConfig {
	return model.IMAPConfig{
		Host:     "127.0.0.1",
		Port:     port,
		Username: testUser,
		Password: testPassword,
		Folder:   "INBOX",
		Security: model.SecurityNone,
		Timeout:  5 * time.Second,
	}
}

func TestSessionListFetchMark(t *testing.T) {
	first, second, third := sampleMessage("one"), sampleMessage("two"), sampleMessage("three")
	port := startServer(t, first, second, third)
	ctx := context.Background()

	session, err := NewIMAPClient(testConfig(port)).Open(ctx)
	require.NoError(t, err)
	defer func() { assert.NoError(t, session.Close()) }()

	uids, err := session.ListUIDs(ctx)
	require.NoError(t, err)
	require.Len(t, uids, 3)
	assert.Less(t, uids[0], uids[1])
	assert.Less(t, uids[1], uids[2])

	msg, err := session.Fetch(ctx, uids[1])
	require.NoError(t, err)
	assert.Equal(t, uids[1], msg.UID)
	assert.Equal(t, "INBOX", msg.Folder)
	assert.Equal(t, second, msg.Raw)
	assert.Equal(t, "two", Decode(msg.Raw).Subject)

	status, err := session.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Total)
	assert.Equal(t, 3, status.Unseen, "fetch must not set \\Seen")

	require.NoError(t, session.MarkSeen(ctx, uids[1]))

	status, err = session.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Unseen)
}

func TestSessionFetchMissingUID(t *testing.T) {
	port := startServer(t, sampleMessage("only"))
	ctx := context.Background()

	session, err := NewIMAPClient(testConfig(port)).Open(ctx)
	require.NoError(t, err)
	defer session.Close()

	_, err = session.Fetch(ctx, 999)
	assert.Error(t, err)
}

func TestConnectRejectsBadPassword(t *testing.T) {
	port := startServer(t)

	cfg := testConfig(port)
	cfg.Password = "wrong"

	_, err := NewIMAPClient(cfg).Open(context.Background())
	require.Error(t, err)
	assert.True(t, source.IsAuthError(err))
}

func TestOpenUnknownFolder(t *testing.T) {
	port := startServer(t)

	cfg := testConfig(port)
	cfg.Folder = "Nope"

	_, err := NewIMAPClient(cfg).Open(context.Background())
	require.Error(t, err)
	assert.False(t, source.IsAuthError(err))
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	_, err = NewIMAPClient(testConfig(port)).Open(context.Background())
	assert.Error(t, err)
}
