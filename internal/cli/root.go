// Package cli implements the slotwatch command line.
package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	appconfig "github.com/wolfman30/slotwatch/internal/config"
	"github.com/wolfman30/slotwatch/pkg/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	EnvFile string

	// LoadConfig allows overriding configuration loading (for testing).
	LoadConfig func() *appconfig.Config
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{LoadConfig: appconfig.Load})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slotwatch",
		Short: "Watch a patient portal for free appointment slots",
		Long: `slotwatch logs into the patient portal, searches for free appointment slots
and announces new ones through a notification channel. Slots already
announced three times are muted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return appconfig.LoadDotEnv(opts.EnvFile)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "optional KEY=VALUE file loaded before the environment is read")

	cmd.AddCommand(NewFindAppointmentCommand(opts))
	cmd.AddCommand(NewListFiltersCommand(opts))
	cmd.AddCommand(NewLedgerCommand(opts))

	return cmd
}

// config loads and validates the configuration.
func (o *RootOptions) config() (*appconfig.Config, error) {
	load := o.LoadConfig
	if load == nil {
		load = appconfig.Load
	}
	cfg := load()
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitFailure, "invalid configuration", err)
	}
	return cfg, nil
}

func (o *RootOptions) logger(cfg *appconfig.Config, w io.Writer) *logging.Logger {
	level := cfg.LogLevel
	if o.Verbose {
		level = "debug"
	}
	if w == nil {
		w = os.Stderr
	}
	return logging.NewWithWriter(w, level)
}
