package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/mailrelay/internal/app"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the mailbox and forward new messages (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRelay(cmd)
		},
	}
}

func runRelay(cmd *cobra.Command) error {
	cfg, log, err := loadRuntime(true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("closing journal", zap.Error(err))
		}
	}()

	// SIGUSR1 asks for an immediate poll.
	refresh := make(chan os.Signal, 1)
	signal.Notify(refresh, syscall.SIGUSR1)
	defer signal.Stop(refresh)

	ctx := cmd.Context()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-refresh:
				log.Info("refresh requested")
				a.Poller.Refresh()
			}
		}
	}()

	return a.Run(ctx)
}
