package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wolfman30/slotwatch/internal/app/bootstrap"
	"github.com/wolfman30/slotwatch/internal/reminders"
)

// NewLedgerCommand creates the ledger command, which prints the reminder ledger.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ledger",
		Short:         "Print the reminder ledger as JSON",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			load := rootOpts.LoadConfig
			if load == nil {
				return NewExitError(ExitCommandError, "no configuration loader")
			}
			cfg := load()
			logger := rootOpts.logger(cfg, cmd.ErrOrStderr())

			persister, cleanup, err := bootstrap.BuildLedger(cmd.Context(), cfg, logger)
			if err != nil {
				return WrapExitError(ExitFailure, "open ledger", err)
			}
			defer cleanup()

			snap, err := reminders.NewStore(persister, reminders.WithStoreLogger(logger)).Snapshot(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "read ledger", err)
			}
			data, err := reminders.Encode(snap)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
