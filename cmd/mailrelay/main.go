package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/mailrelay/internal/logger"
	"github.com/nhle/mailrelay/internal/model"
)

// Set via -ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var initOnly bool

	root := &cobra.Command{
		Use:           "mailrelay",
		Short:         "Forward new IMAP mail to a Telegram chat",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if initOnly {
				return runInit(cmd)
			}
			return runRelay(cmd)
		},
	}
	root.Flags().BoolVar(&initOnly, "init-only", false,
		"Record the newest message as already forwarded and exit (same as `init`)")

	root.AddCommand(
		newRunCmd(),
		newInitCmd(),
		newCheckCmd(),
		newStatusCmd(),
		newSetupCmd(),
	)
	return root
}

// loadRuntime reads the configuration and builds the logger.
func loadRuntime(requireTelegram bool) (*model.Config, *zap.Logger, error) {
	cfg, err := model.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(requireTelegram); err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	return cfg, log, nil
}
