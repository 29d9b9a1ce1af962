package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/mailrelay/internal/credential"
	"github.com/nhle/mailrelay/internal/ui/config"
)

func newSetupCmd() *cobra.Command {
	var forget bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Store the IMAP password and bot token in the OS keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if forget {
				removed, err := config.Forget(credential.Delete)
				for _, key := range removed {
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", key)
				}
				return err
			}

			var secrets config.Secrets
			form := config.NewSecretsForm(&secrets, min(terminalWidth(), 80))
			if err := form.RunWithContext(cmd.Context()); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					fmt.Fprintln(cmd.OutOrStdout(), "setup cancelled")
					return nil
				}
				return err
			}
			if !secrets.Confirm {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing stored")
				return nil
			}

			saved, err := config.Save(secrets, credential.Set)
			if err != nil {
				return err
			}
			if len(saved) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing stored")
				return nil
			}
			for _, key := range saved {
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", key)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&forget, "forget", false, "Remove the stored secrets instead of setting them")
	return cmd
}
