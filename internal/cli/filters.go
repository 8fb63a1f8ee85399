package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wolfman30/slotwatch/internal/app/bootstrap"
	"github.com/wolfman30/slotwatch/internal/portal/appointments"
	"github.com/wolfman30/slotwatch/internal/portal/auth"
)

// ListFiltersOptions holds flags for list-filters.
type ListFiltersOptions struct {
	*RootOptions
	Region      int
	Specialties []int
}

// Categories that accept region and specialty narrowing.
var narrowedCategories = map[string]bool{"doctors": true, "clinics": true}

// NewListFiltersCommand creates the list-filters command.
func NewListFiltersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListFiltersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list-filters <regions|specialties|doctors|clinics|languages>",
		Short: "Print the ids accepted by find-appointment",
		Long: `Print "<id> - <name>" for every value of a filter category. Doctors and
clinics can be narrowed with -r and -s.

Example:
  slotwatch list-filters specialties
  slotwatch list-filters doctors -r 202 -s 9`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListFilters(cmd, opts, args[0])
		},
	}
	cmd.Flags().IntVarP(&opts.Region, "region", "r", 0, "region id")
	cmd.Flags().IntSliceVarP(&opts.Specialties, "specialty", "s", nil, "specialty id, repeatable")
	return cmd
}

func runListFilters(cmd *cobra.Command, opts *ListFiltersOptions, category string) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	logger := opts.logger(cfg, cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	session := auth.NewSession(bootstrap.AuthConfig(cfg), cfg.PortalUsername, cfg.PortalPassword,
		auth.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		auth.WithLogger(logger),
	)
	if _, err := session.Authenticate(ctx); err != nil {
		return WrapExitError(ExitFailure, "login failed", err)
	}
	client := appointments.NewClient(cfg.APIBaseURL, session, appointments.WithLogger(logger))

	var set appointments.FilterSet
	if narrowedCategories[category] {
		set = client.ListFilters(ctx, opts.Region, opts.Specialties...)
	} else {
		set = client.ListFilters(ctx, 0)
	}
	return printFilters(cmd.OutOrStdout(), set, category)
}

func printFilters(w io.Writer, set appointments.FilterSet, category string) error {
	options, ok := set[category]
	if !ok {
		known := set.Categories()
		sort.Strings(known)
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown filter category %q, available: %v", category, known))
	}
	for _, o := range options {
		fmt.Fprintf(w, "%s - %s\n", o.ID, o.Value)
	}
	return nil
}
