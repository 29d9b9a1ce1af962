package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/mailrelay/internal/app"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Record the newest message as already forwarded",
		Long: "Connects to the mailbox and stores the highest message UID as the cursor,\n" +
			"so mail already in the folder is never forwarded. Nothing is sent.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd)
		},
	}
}

func runInit(cmd *cobra.Command) error {
	cfg, log, err := loadRuntime(false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(cfg, log, app.WithoutJournal())
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info("initializing cursor, no messages will be forwarded",
		zap.String("folder", cfg.IMAP.Folder),
		zap.String("state_file", cfg.StateFile),
	)
	uid, err := a.Relay.Initialize(cmd.Context())
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "cursor set to %d in %s\n", uid, a.Cursor.Path())
	return nil
}
