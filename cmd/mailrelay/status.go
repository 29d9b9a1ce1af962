package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nhle/mailrelay/internal/cursor"
	"github.com/nhle/mailrelay/internal/model"
	"github.com/nhle/mailrelay/internal/store"
	"github.com/nhle/mailrelay/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var (
		limit int
		uid   uint32
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cursor and recent deliveries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := model.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			layout := ui.NewLayout(terminalWidth())
			cur := cursor.NewFileStore(cfg.StateFile, nil).Load()

			fields := []ui.Field{
				{Label: "Folder", Value: cfg.IMAP.Folder},
				{Label: "Cursor", Value: strconv.FormatUint(uint64(cur), 10)},
				{Label: "State file", Value: cfg.StateFile},
				{Label: "Interval", Value: cfg.PollInterval.String()},
			}

			var journal string
			switch _, statErr := os.Stat(cfg.JournalPath); {
			case cfg.JournalPath == "":
				journal = "journal disabled"
			case errors.Is(statErr, fs.ErrNotExist):
				journal = "no journal at " + cfg.JournalPath
			default:
				s, err := store.NewSQLiteStore(cfg.JournalPath)
				if err != nil {
					return fmt.Errorf("opening journal: %w", err)
				}
				defer s.Close()

				stats, err := s.Stats(cmd.Context())
				if err != nil {
					return err
				}
				last := "never"
				if stats.LastDelivered != nil {
					last = stats.LastDelivered.Local().Format(time.DateTime)
				}
				fields = append(fields,
					ui.Field{Label: "Delivered", Value: strconv.Itoa(stats.Delivered)},
					ui.Field{Label: "Failed", Value: strconv.Itoa(stats.Failed)},
					ui.Field{Label: "Last sent", Value: last},
				)

				entries, err := journalEntries(cmd.Context(), s, cfg.IMAP.Folder, uid, limit)
				if err != nil {
					return err
				}
				journal = layout.RenderJournal(entries)
			}

			fmt.Fprintln(cmd.OutOrStdout(), ui.Compose(
				layout.RenderHeader("mailrelay", version),
				layout.RenderPanel(fields),
				journal,
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of journal entries to show")
	cmd.Flags().Uint32Var(&uid, "uid", 0, "Show every attempt recorded for one message UID")
	return cmd
}

// journalEntries returns the attempts for uid in folder, or the most
// recent entries when uid is zero.
func journalEntries(
	ctx context.Context,
	s store.Store,
	folder string,
	uid uint32,
	limit int,
) ([]model.JournalEntry, error) {
	if uid == 0 {
		return s.RecentDeliveries(ctx, limit)
	}
	return s.DeliveriesForUID(ctx, folder, uid)
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}
