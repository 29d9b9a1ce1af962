package testutil

import (
	"bytes"
	"net"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/require"
)

// StartIMAPServer runs an in-memory IMAP server with one account whose
// INBOX holds messages, and returns the listening port. The server is
// closed when the test ends.
func StartIMAPServer(t *testing.T, username, password string, messages ...[]byte) int {
	t.Helper()

	user := imapmemserver.NewUser(username, password)
	require.NoError(t, user.Create("INBOX", nil))
	for _, msg := range messages {
		_, err := user.Append("INBOX", bytes.NewReader(msg), &imap.AppendOptions{})
		require.NoError(t, err)
	}

	memServer := imapmemserver.New()
	memServer.AddUser(user)

	server := imapserver.New(&imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return memServer.NewSession(), nil, nil
		},
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
			imap.CapIMAP4rev2: {},
		},
		InsecureAuth: true,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = server.Close() })

	return ln.Addr().(*net.TCPAddr).Port
}
