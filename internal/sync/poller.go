package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailrelay/internal/relay"
	"github.com/nhle/mailrelay/internal/source"
)

// SyncState represents the current state of the polling loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus is a snapshot of the loop's progress.
type SyncStatus struct {
	State       SyncState
	Cycles      int
	LastCycle   time.Time
	LastSuccess time.Time
	LastReport  relay.CycleReport
	Error       error
}

// Cycler runs one polling cycle.
type Cycler interface {
	RunCycle(ctx context.Context) relay.CycleReport
}

// defaultInterval applies when no positive interval is configured.
const defaultInterval = 60 * time.Second

// Poller runs cycles back to back with a pause between them. Cancellation
// is observed only between cycles.
type Poller struct {
	cycler    Cycler
	interval  time.Duration
	log       *zap.Logger
	triggerCh chan struct{}
	now       func() time.Time

	mu      gosync.Mutex
	status  SyncStatus
	running bool
}

// New creates a Poller.
func New(c Cycler, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		cycler:    c,
		interval:  interval,
		log:       log,
		triggerCh: make(chan struct{}, 1),
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled and returns nil once the cycle in
// progress, if any, has finished.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("poller already running")
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	p.log.Info("polling started", zap.Duration("interval", p.interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("polling stopped")
			return nil
		case <-timer.C:
		case <-p.triggerCh:
			timer.Stop()
		}

		p.runCycle(ctx)
		timer.Reset(p.interval)
	}
}

// Refresh requests an immediate cycle. Requests made while one is
// already pending are coalesced.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the current loop status.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Ready fails when no cycle has reached the mailbox within three polling
// intervals. It is meant as a readiness check.
func (p *Poller) Ready() error {
	st := p.Status()
	if st.LastSuccess.IsZero() {
		if st.Error != nil {
			return fmt.Errorf("no successful cycle yet: %w", st.Error)
		}
		return errors.New("no successful cycle yet")
	}
	if age := p.now().Sub(st.LastSuccess); age > 3*p.interval {
		return fmt.Errorf("last successful cycle was %s ago", age.Round(time.Second))
	}
	return nil
}

// runCycle runs one cycle detached from ctx's cancellation so shutdown
// never interrupts a message halfway through.
func (p *Poller) runCycle(ctx context.Context) {
	p.setState(SyncRunning)

	report := p.cycler.RunCycle(context.WithoutCancel(ctx))

	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.Cycles++
	p.status.LastCycle = p.now()
	p.status.LastReport = report
	p.status.Error = report.Err
	if report.Err != nil {
		p.status.State = SyncError
		if source.IsAuthError(report.Err) {
			p.log.Error("mailbox rejected the credentials, check IMAP_USER and IMAP_PASSWORD",
				zap.Error(report.Err))
		}
		return
	}
	p.status.State = SyncIdle
	p.status.LastSuccess = p.status.LastCycle
}

func (p *Poller) setState(state SyncState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.State = state
}
