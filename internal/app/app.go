// Package app wires configuration into the relay components and runs
// them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailrelay/internal/cursor"
	"github.com/nhle/mailrelay/internal/model"
	"github.com/nhle/mailrelay/internal/monitoring"
	"github.com/nhle/mailrelay/internal/notify/telegram"
	"github.com/nhle/mailrelay/internal/relay"
	"github.com/nhle/mailrelay/internal/source/email"
	"github.com/nhle/mailrelay/internal/store"
	"github.com/nhle/mailrelay/internal/sync"
)

// shutdownTimeout bounds the metrics server's graceful shutdown.
const shutdownTimeout = 5 * time.Second

// startupMessage is sent once when the loop starts.
const startupMessage = "🔔 Relay started, waiting for new mail."

// App holds the wired components of one process.
type App struct {
	Config  *model.Config
	Log     *zap.Logger
	Relay   *relay.Relay
	Poller  *sync.Poller
	Cursor  *cursor.FileStore
	Metrics *monitoring.Metrics

	// Journal is nil when JOURNAL_PATH is empty or the database could
	// not be opened.
	Journal store.Store

	server *http.Server
}

type settings struct {
	journal bool
}

// Option adjusts how New wires the App.
type Option func(*settings)

// WithoutJournal skips the delivery journal even when JOURNAL_PATH is
// set. One-shot commands that never deliver use it.
func WithoutJournal() Option {
	return func(s *settings) { s.journal = false }
}

// New builds an App from cfg. It does not touch the network and never
// modifies cfg.
func New(cfg *model.Config, log *zap.Logger, options ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if log == nil {
		log = zap.NewNop()
	}
	set := settings{journal: true}
	for _, o := range options {
		o(&set)
	}

	a := &App{
		Config: cfg,
		Log:    log,
		Cursor: cursor.NewFileStore(cfg.StateFile, log.Named("cursor")),
	}

	opts := relay.Options{
		Folder:   cfg.IMAP.Folder,
		MarkSeen: cfg.IMAP.MarkSeen,
		Logger:   log.Named("relay"),
	}

	if set.journal && cfg.JournalPath != "" {
		journal, err := store.NewSQLiteStore(cfg.JournalPath)
		if err != nil {
			log.Warn("delivery journal disabled", zap.String("path", cfg.JournalPath), zap.Error(err))
		} else {
			a.Journal = journal
			opts.Journal = journal
		}
	}

	if cfg.MetricsAddr != "" {
		a.Metrics = monitoring.NewMetrics()
		opts.Metrics = a.Metrics
	}

	mailbox := relay.IMAP(email.NewIMAPClient(cfg.IMAP))
	notifier := telegram.New(cfg.Telegram)
	a.Relay = relay.New(mailbox, notifier, a.Cursor, opts)
	a.Poller = sync.New(a.Relay, cfg.PollInterval, log.Named("poller"))

	if a.Metrics != nil {
		health := monitoring.NewHealth(a.Poller.Ready)
		a.server = monitoring.NewServer(cfg.MetricsAddr, a.Metrics, health)
	}

	return a, nil
}

// Run checks the mailbox, announces the start, then polls until ctx is
// cancelled. The metrics server, when configured, runs alongside.
func (a *App) Run(ctx context.Context) error {
	a.Log.Info("relay starting",
		zap.String("folder", a.Config.IMAP.Folder),
		zap.Duration("interval", a.Config.PollInterval),
		zap.Bool("verify_tls", !a.Config.IMAP.InsecureSkipVerify),
	)
	a.Announce(ctx)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.Poller.Run(groupCtx)
	})

	if a.server != nil {
		group.Go(func() error {
			a.Log.Info("metrics server listening", zap.String("address", a.server.Addr))
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	return group.Wait()
}

// Announce probes the mailbox and sends the startup message. Both are
// informational: failures are logged and never stop the relay.
func (a *App) Announce(ctx context.Context) {
	probe, err := a.Relay.Probe(ctx)
	if err != nil {
		a.Log.Warn("mailbox check failed", zap.Error(err))
	} else {
		a.Log.Info("mailbox reachable",
			zap.String("folder", probe.Status.Folder),
			zap.Int("total", probe.Status.Total),
			zap.Int("unseen", probe.Status.Unseen),
			zap.Uint32("cursor", probe.Cursor),
		)
	}

	if !a.Config.TelegramConfigured() {
		return
	}
	result := a.Relay.Ping(ctx, startupMessage)
	if !result.OK {
		a.Log.Warn("startup message not delivered, check TELEGRAM_CHAT_ID and the bot token",
			zap.String("reason", result.Reason()))
		return
	}
	a.Log.Info("startup message delivered",
		zap.String("chat", result.ChatTitle),
		zap.Int64("chat_id", result.ChatID),
	)
}

// Close releases the journal.
func (a *App) Close() error {
	if a.Journal == nil {
		return nil
	}
	return a.Journal.Close()
}
