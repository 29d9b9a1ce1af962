package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailrelay/internal/model"
	"github.com/nhle/mailrelay/internal/source"
)

// IMAPClient opens sessions against one mailbox folder.
type IMAPClient struct {
	cfg model.IMAPConfig
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(cfg model.IMAPConfig) *IMAPClient {
	return &IMAPClient{cfg: cfg}
}

// Connect dials the server, negotiates transport security and
// authenticates. The caller owns the returned session and must Close it.
func (c *IMAPClient) Connect(ctx context.Context) (*Session, error) {
	addr := c.cfg.Addr()

	dialer := &net.Dialer{Timeout: c.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	s := &Session{conn: conn, timeout: c.cfg.Timeout}
	s.arm()

	tlsConfig := &tls.Config{
		ServerName:         c.cfg.Host,
		InsecureSkipVerify: c.cfg.InsecureSkipVerify,
	}
	opts := &imapclient.Options{TLSConfig: tlsConfig}

	switch c.cfg.Security {
	case model.SecurityTLS:
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("TLS handshake with %s: %w", addr, err)
		}
		s.client = imapclient.New(tlsConn, opts)
	case model.SecurityStartTLS:
		s.client, err = imapclient.NewStartTLS(conn, opts)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("STARTTLS with %s: %w", addr, err)
		}
	default:
		s.client = imapclient.New(conn, opts)
	}

	if err := s.client.WaitGreeting(); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("waiting for IMAP greeting from %s: %w", addr, err)
	}

	s.arm()
	if err := s.client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = s.client.Close()
		var imapErr *imap.Error
		if !errors.As(err, &imapErr) {
			return nil, fmt.Errorf("logging in to %s: %w", addr, err)
		}
		return nil, &source.AuthError{
			SourceType: source.SourceTypeEmail,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.cfg.Username, err,
			),
		}
	}
	s.disarm()

	return s, nil
}

// Open connects and selects the configured folder.
func (c *IMAPClient) Open(ctx context.Context) (*Session, error) {
	s, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}

	s.arm()
	defer s.disarm()

	data, err := s.client.Select(c.cfg.Folder, nil).Wait()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("selecting %s: %w", c.cfg.Folder, err)
	}
	s.folder = c.cfg.Folder
	s.numMessages = data.NumMessages

	return s, nil
}

// Session is one authenticated IMAP connection with a folder selected.
// Every blocking step is bounded by the configured timeout.
type Session struct {
	conn        net.Conn
	client      *imapclient.Client
	timeout     time.Duration
	folder      string
	numMessages uint32
}

// ListUIDs returns the UIDs of every message in the folder.
func (s *Session) ListUIDs(_ context.Context) ([]uint32, error) {
	s.arm()
	defer s.disarm()

	data, err := s.client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", s.folder, err)
	}

	all := data.AllUIDs()
	uids := make([]uint32, 0, len(all))
	for _, uid := range all {
		uids = append(uids, uint32(uid))
	}
	return uids, nil
}

// Fetch returns the full raw message. The body is fetched with PEEK so
// the server does not set \Seen on its own.
func (s *Session) Fetch(_ context.Context, uid uint32) (model.MailMessage, error) {
	s.arm()
	defer s.disarm()

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(imap.UID(uid)), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		if err := fetchCmd.Close(); err != nil {
			return model.MailMessage{}, fmt.Errorf("fetching UID %d: %w", uid, err)
		}
		return model.MailMessage{}, fmt.Errorf("message UID %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return model.MailMessage{}, fmt.Errorf("collecting UID %d: %w", uid, err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return model.MailMessage{}, fmt.Errorf("message UID %d has no body", uid)
	}

	if err := fetchCmd.Close(); err != nil {
		return model.MailMessage{}, fmt.Errorf("closing fetch of UID %d: %w", uid, err)
	}

	return model.MailMessage{UID: uid, Folder: s.folder, Raw: raw}, nil
}

// MarkSeen adds the \Seen flag to a message.
func (s *Session) MarkSeen(_ context.Context, uid uint32) error {
	s.arm()
	defer s.disarm()

	storeCmd := s.client.Store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)

	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("flagging UID %d seen: %w", uid, err)
	}
	return nil
}

// Status reports the total and unseen message counts of the folder.
func (s *Session) Status(_ context.Context) (model.MailboxStatus, error) {
	s.arm()
	defer s.disarm()

	data, err := s.client.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}, nil).Wait()
	if err != nil {
		return model.MailboxStatus{}, fmt.Errorf("searching unseen in %s: %w", s.folder, err)
	}

	return model.MailboxStatus{
		Folder: s.folder,
		Total:  int(s.numMessages),
		Unseen: len(data.AllUIDs()),
	}, nil
}

// Close logs out and releases the connection. It is safe to call on a
// session whose connection already failed.
func (s *Session) Close() error {
	s.arm()
	err := s.client.Logout().Wait()
	_ = s.client.Close()
	if err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// arm bounds the next protocol step by the session timeout.
func (s *Session) arm() {
	if s.timeout > 0 {
		_ = s.conn.SetDeadline(time.Now().Add(s.timeout))
	}
}

// disarm clears the deadline so an idle session between steps does not
// trip the client's background reader.
func (s *Session) disarm() {
	_ = s.conn.SetDeadline(time.Time{})
}
