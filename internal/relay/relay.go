package relay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailrelay/internal/format"
	"github.com/nhle/mailrelay/internal/model"
	"github.com/nhle/mailrelay/internal/monitoring"
	"github.com/nhle/mailrelay/internal/otp"
	"github.com/nhle/mailrelay/internal/source"
	"github.com/nhle/mailrelay/internal/source/email"
)

// Session is one open mailbox connection with the folder selected.
type Session interface {
	ListUIDs(ctx context.Context) ([]uint32, error)
	Fetch(ctx context.Context, uid uint32) (model.MailMessage, error)
	MarkSeen(ctx context.Context, uid uint32) error
	Status(ctx context.Context) (model.MailboxStatus, error)
	Close() error
}

// Mailbox opens sessions. Each cycle opens and closes its own.
type Mailbox interface {
	Open(ctx context.Context) (Session, error)
}

// MailboxFunc adapts a function to the Mailbox interface.
type MailboxFunc func(ctx context.Context) (Session, error)

func (f MailboxFunc) Open(ctx context.Context) (Session, error) { return f(ctx) }

// IMAP wraps an IMAP client as a Mailbox.
func IMAP(c *email.IMAPClient) Mailbox {
	return MailboxFunc(func(ctx context.Context) (Session, error) {
		s, err := c.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Deliverer sends one rendered notification.
type Deliverer interface {
	Deliver(ctx context.Context, text string) model.DeliveryResult
}

// CursorStore persists the highest fully processed UID.
type CursorStore interface {
	Load() uint32
	Save(uid uint32) error
}

// Journal records forwarding attempts.
type Journal interface {
	RecordDelivery(ctx context.Context, entry model.JournalEntry) error
}

// Options configures a Relay. The zero value forwards without marking
// messages seen, journaling or metrics.
type Options struct {
	Folder   string
	MarkSeen bool
	Journal  Journal
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
}

// Relay forwards new mailbox messages to a chat, one cycle at a time.
// It is not safe for concurrent use.
type Relay struct {
	mailbox  Mailbox
	deliver  Deliverer
	cursor   CursorStore
	journal  Journal
	metrics  *monitoring.Metrics
	log      *zap.Logger
	folder   string
	markSeen bool
	now      func() time.Time
}

// New creates a Relay.
func New(mailbox Mailbox, deliver Deliverer, cursor CursorStore, opts Options) *Relay {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		mailbox:  mailbox,
		deliver:  deliver,
		cursor:   cursor,
		journal:  opts.Journal,
		metrics:  opts.Metrics,
		log:      log,
		folder:   opts.Folder,
		markSeen: opts.MarkSeen,
		now:      time.Now,
	}
}

// Stage is the last step a cycle reached.
type Stage string

const (
	StageConnect Stage = "connect"
	StageList    Stage = "list"
	StageForward Stage = "forward"
	StageAdvance Stage = "advance"
	StageDone    Stage = "done"
)

// CycleReport is the outcome of one polling cycle.
type CycleReport struct {
	Stage Stage

	// Cursor is the value loaded at the start of the cycle and NewCursor
	// the value in effect after it.
	Cursor    uint32
	NewCursor uint32
	Advanced  bool

	Candidates  int
	Delivered   []uint32
	Failed      []uint32
	FetchFailed []uint32

	// Err is set when the cycle aborted before forwarding. CursorErr is
	// set when the new cursor could not be persisted.
	Err       error
	CursorErr error

	Duration time.Duration
}

// Aborted reports whether the cycle never reached the forwarding loop.
func (r CycleReport) Aborted() bool {
	return r.Err != nil
}

// Result classifies the cycle for metrics and logs.
func (r CycleReport) Result() string {
	switch {
	case r.Aborted():
		return monitoring.CycleAborted
	case len(r.Failed) > 0 || len(r.FetchFailed) > 0 || r.CursorErr != nil:
		return monitoring.CyclePartial
	default:
		return monitoring.CycleOK
	}
}

// FilterNew returns the UIDs strictly greater than cursor, ascending and
// without duplicates.
func FilterNew(uids []uint32, cursor uint32) []uint32 {
	pending := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		if uid > cursor {
			pending = append(pending, uid)
		}
	}
	slices.Sort(pending)
	return slices.Compact(pending)
}

// RunCycle performs one connect, list, forward, advance, disconnect pass.
// Failures are contained: a failed message is skipped and stays eligible,
// a failed connection aborts the cycle with nothing persisted.
func (r *Relay) RunCycle(ctx context.Context) (report CycleReport) {
	start := r.now()
	defer func() {
		report.Duration = r.now().Sub(start)
		r.metrics.ObserveCycle(report.Result(), report.Duration, r.now())
		r.logReport(report)
	}()

	report.Stage = StageConnect
	sess, err := r.mailbox.Open(ctx)
	if err != nil {
		report.Err = fmt.Errorf("opening mailbox: %w", err)
		return report
	}
	defer r.closeSession(sess)

	report.Stage = StageList
	uids, err := sess.ListUIDs(ctx)
	if err != nil {
		report.Err = fmt.Errorf("listing messages: %w", err)
		return report
	}

	report.Cursor = r.cursor.Load()
	report.NewCursor = report.Cursor
	pending := FilterNew(uids, report.Cursor)
	report.Candidates = len(pending)

	report.Stage = StageForward
	for _, uid := range pending {
		switch status, err := r.forward(ctx, sess, uid); status {
		case model.JournalDelivered:
			report.Delivered = append(report.Delivered, uid)
		case model.JournalFetchFailed:
			r.log.Warn("skipping message, fetch failed", zap.Uint32("uid", uid), zap.Error(err))
			report.FetchFailed = append(report.FetchFailed, uid)
		default:
			if source.IsAuthError(err) {
				r.log.Error("chat endpoint rejected the credentials", zap.Uint32("uid", uid), zap.Error(err))
			} else {
				r.log.Warn("skipping message, delivery failed", zap.Uint32("uid", uid), zap.Error(err))
			}
			report.Failed = append(report.Failed, uid)
		}
	}

	report.Stage = StageAdvance
	if len(report.Delivered) > 0 {
		if top := slices.Max(report.Delivered); top > report.Cursor {
			if err := r.cursor.Save(top); err != nil {
				report.CursorErr = fmt.Errorf("saving cursor %d: %w", top, err)
			} else {
				report.NewCursor = top
				report.Advanced = true
			}
		}
	}
	r.metrics.SetCursor(report.NewCursor)

	report.Stage = StageDone
	return report
}

// forward moves one message through fetch, decode, format, deliver and
// mark. The returned status is one of the journal statuses. A panic in
// any step is contained to this message.
func (r *Relay) forward(ctx context.Context, sess Session, uid uint32) (status string, err error) {
	entry := model.JournalEntry{UID: uid, Folder: r.folder}
	defer func() {
		if p := recover(); p != nil {
			status = model.JournalFailed
			err = fmt.Errorf("panic forwarding UID %d: %v", uid, p)
		}
		entry.Status = status
		if err != nil {
			entry.Detail = err.Error()
		}
		r.record(ctx, entry)
	}()

	msg, err := sess.Fetch(ctx, uid)
	if err != nil {
		r.metrics.FetchFailed()
		return model.JournalFetchFailed, err
	}
	if msg.Folder != "" {
		entry.Folder = msg.Folder
	}

	n := email.Decode(msg.Raw)
	n.Codes = otp.Extract(n.Subject + "\n" + n.Body)
	entry.Subject, entry.Sender, entry.Codes = n.Subject, n.From, n.Codes

	result := r.deliver.Deliver(ctx, format.Render(n))
	if !result.OK {
		r.metrics.DeliveryFailed()
		return model.JournalFailed, deliveryError(result)
	}
	r.metrics.Forwarded()
	r.log.Info("message forwarded",
		zap.Uint32("uid", uid),
		zap.String("subject", n.Subject),
		zap.Int("codes", len(n.Codes)),
		zap.Int64("chat_id", result.ChatID),
	)

	if r.markSeen {
		if err := sess.MarkSeen(ctx, uid); err != nil {
			r.log.Warn("could not mark message seen", zap.Uint32("uid", uid), zap.Error(err))
		}
	}
	return model.JournalDelivered, nil
}

// deliveryError turns a failed result into an error that keeps the
// underlying cause for errors.As.
func deliveryError(result model.DeliveryResult) error {
	switch {
	case result.Err != nil && result.Description != "":
		return fmt.Errorf("%s: %w", result.Description, result.Err)
	case result.Err != nil:
		return result.Err
	case result.Description != "":
		return errors.New(result.Description)
	default:
		return errors.New("delivery rejected")
	}
}

func (r *Relay) record(ctx context.Context, entry model.JournalEntry) {
	if r.journal == nil {
		return
	}
	if err := r.journal.RecordDelivery(ctx, entry); err != nil {
		r.log.Warn("journal write failed", zap.Uint32("uid", entry.UID), zap.Error(err))
	}
}

func (r *Relay) closeSession(sess Session) {
	if err := sess.Close(); err != nil {
		r.log.Debug("closing mailbox session", zap.Error(err))
	}
}

func (r *Relay) logReport(report CycleReport) {
	fields := []zap.Field{
		zap.String("stage", string(report.Stage)),
		zap.Uint32("cursor", report.NewCursor),
		zap.Int("candidates", report.Candidates),
		zap.Int("delivered", len(report.Delivered)),
		zap.Int("failed", len(report.Failed)+len(report.FetchFailed)),
		zap.Duration("took", report.Duration),
	}
	switch {
	case report.Err != nil:
		r.log.Error("cycle aborted", append(fields, zap.Error(report.Err))...)
	case report.CursorErr != nil:
		r.log.Error("cursor not saved", append(fields, zap.Error(report.CursorErr))...)
	case report.Candidates > 0:
		r.log.Info("cycle finished", fields...)
	default:
		r.log.Debug("no new messages", fields...)
	}
}

// Initialize sets the cursor to the highest UID currently in the folder so
// existing mail is never forwarded. An empty folder leaves the cursor
// unchanged and returns its current value.
func (r *Relay) Initialize(ctx context.Context) (uint32, error) {
	sess, err := r.mailbox.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("opening mailbox: %w", err)
	}
	defer r.closeSession(sess)

	uids, err := sess.ListUIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing messages: %w", err)
	}
	if len(uids) == 0 {
		current := r.cursor.Load()
		r.log.Info("folder is empty, cursor left unchanged", zap.Uint32("cursor", current))
		return current, nil
	}

	top := slices.Max(uids)
	if err := r.cursor.Save(top); err != nil {
		return 0, fmt.Errorf("saving cursor %d: %w", top, err)
	}
	r.metrics.SetCursor(top)
	r.log.Info("cursor initialized", zap.Uint32("cursor", top), zap.Int("messages", len(uids)))
	return top, nil
}

// ProbeReport describes the mailbox as seen by a connection check.
type ProbeReport struct {
	Status model.MailboxStatus
	Cursor uint32
	Took   time.Duration
}

// Probe connects, selects the folder and counts its messages.
func (r *Relay) Probe(ctx context.Context) (ProbeReport, error) {
	start := r.now()

	sess, err := r.mailbox.Open(ctx)
	if err != nil {
		return ProbeReport{}, fmt.Errorf("opening mailbox: %w", err)
	}
	defer r.closeSession(sess)

	status, err := sess.Status(ctx)
	if err != nil {
		return ProbeReport{}, fmt.Errorf("reading mailbox status: %w", err)
	}

	return ProbeReport{
		Status: status,
		Cursor: r.cursor.Load(),
		Took:   r.now().Sub(start),
	}, nil
}

// Ping delivers a startup message and returns the endpoint's answer.
func (r *Relay) Ping(ctx context.Context, text string) model.DeliveryResult {
	return r.deliver.Deliver(ctx, text)
}
