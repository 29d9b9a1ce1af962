package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/mailrelay/internal/app"
	"github.com/nhle/mailrelay/internal/source"
	"github.com/nhle/mailrelay/internal/ui"
)

func newCheckCmd() *cobra.Command {
	var ping bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the mailbox and chat settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			var results []ui.CheckResult
			failed := false

			probe, err := a.Relay.Probe(cmd.Context())
			switch {
			case source.IsAuthError(err):
				failed = true
				results = append(results, ui.CheckResult{Name: "IMAP login", Detail: err.Error()})
			case err != nil:
				failed = true
				results = append(results, ui.CheckResult{Name: "IMAP " + cfg.IMAP.Addr(), Detail: err.Error()})
			default:
				results = append(results, ui.CheckResult{
					Name: "IMAP " + cfg.IMAP.Addr(),
					OK:   true,
					Detail: fmt.Sprintf("%s: %d messages, %d unseen, cursor %d (%s)",
						probe.Status.Folder, probe.Status.Total, probe.Status.Unseen,
						probe.Cursor, probe.Took.Round(time.Millisecond)),
				})
			}

			switch {
			case !cfg.TelegramConfigured():
				failed = true
				results = append(results, ui.CheckResult{
					Name:   "Telegram",
					Detail: "TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required to forward",
				})
			case ping:
				res := a.Relay.Ping(cmd.Context(), "✅ mailrelay connection check")
				check := ui.CheckResult{Name: "Telegram", OK: res.OK}
				if res.OK {
					check.Detail = fmt.Sprintf("delivered to %s (id %d)", res.ChatTitle, res.ChatID)
				} else {
					failed = true
					check.Detail = res.Reason()
				}
				results = append(results, check)
			default:
				results = append(results, ui.CheckResult{
					Name: "Telegram", OK: true, Detail: "configured (use --ping to send a test message)",
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), ui.NewLayout(terminalWidth()).RenderChecks(results))
			if failed {
				return errors.New("check failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ping, "ping", true, "Send a test message to the chat")
	return cmd
}
