package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wolfman30/slotwatch/internal/api/router"
	"github.com/wolfman30/slotwatch/internal/app/bootstrap"
	"github.com/wolfman30/slotwatch/internal/watch"
)

const dateLayout = "2006-01-02"

// FindOptions holds flags for find-appointment.
type FindOptions struct {
	*RootOptions
	Region       int
	Specialties  []int
	Clinic       int
	Doctor       int
	StartDate    string
	EndDate      string
	Notification string
	Title        string
	Language     int
	Interval     int
	Cycles       int
	Stars        int
	ExcludeToday bool
	JobsFile     string
}

// NewFindAppointmentCommand creates the find-appointment command.
func NewFindAppointmentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find-appointment",
		Short: "Poll for free appointment slots and announce new ones",
		Long: `Poll the portal for free slots. With -s the search is taken from the flags;
without it every active row of the jobs file is searched each cycle.

Example:
  slotwatch find-appointment -r 202 -s 9 -f 2024-06-01 -e 2024-06-30 -n telegram
  slotwatch find-appointment --jobs-file ./params.csv -i 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.Region, "region", "r", 0, "region id (defaults to REGION_ID)")
	f.IntSliceVarP(&opts.Specialties, "specialty", "s", nil, "specialty id, repeatable")
	f.IntVarP(&opts.Clinic, "clinic", "c", 0, "clinic id")
	f.IntVarP(&opts.Doctor, "doctor", "d", 0, "doctor id")
	f.StringVarP(&opts.StartDate, "date", "f", "", "start date YYYY-MM-DD (defaults to today)")
	f.StringVarP(&opts.EndDate, "enddate", "e", "", "end date YYYY-MM-DD, inclusive")
	f.StringVarP(&opts.Notification, "notification", "n", "", "notification transport")
	f.StringVarP(&opts.Title, "title", "t", "", "notification title")
	f.IntVarP(&opts.Language, "language", "l", 0, "doctor language id")
	f.IntVarP(&opts.Interval, "interval", "i", 0, "minutes between cycles (defaults to POLL_INTERVAL)")
	f.IntVar(&opts.Cycles, "cycles", 0, "number of cycles (defaults to POLL_CYCLES)")
	f.IntVar(&opts.Stars, "stars", 0, "priority shown in the digest, 1-3")
	f.BoolVar(&opts.ExcludeToday, "exclude-today", false, "do not announce batches that only contain today's slots")
	f.StringVar(&opts.JobsFile, "jobs-file", "", "jobs CSV (defaults to JOBS_FILE)")

	return cmd
}

// parseWindow validates the date flags.
func (o *FindOptions) parseWindow() (start, end time.Time, err error) {
	if o.StartDate != "" {
		if start, err = time.Parse(dateLayout, o.StartDate); err != nil {
			return start, end, NewExitError(ExitCommandError, fmt.Sprintf("invalid --date %q, want YYYY-MM-DD", o.StartDate))
		}
	}
	if o.EndDate != "" {
		if end, err = time.Parse(dateLayout, o.EndDate); err != nil {
			return start, end, NewExitError(ExitCommandError, fmt.Sprintf("invalid --enddate %q, want YYYY-MM-DD", o.EndDate))
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, NewExitError(ExitCommandError, "--enddate is before --date")
	}
	return start, end, nil
}

// flagJob builds the single job described by the flags, if any.
func (o *FindOptions) flagJob(defaultRegion int, defaultTitle string) (watch.Job, bool) {
	if len(o.Specialties) == 0 {
		return watch.Job{}, false
	}
	region := o.Region
	if region == 0 {
		region = defaultRegion
	}
	title := o.Title
	if title == "" {
		title = defaultTitle
	}
	if title == "" {
		title = watch.DefaultTitle
	}
	return watch.Job{
		Name:         "cli",
		RegionID:     region,
		SpecialtyIDs: o.Specialties,
		ClinicID:     o.Clinic,
		DoctorID:     o.Doctor,
		LanguageID:   o.Language,
		Stars:        o.Stars,
		Transport:    o.Notification,
		Title:        title,
	}, true
}

func runFind(cmd *cobra.Command, opts *FindOptions) error {
	if opts.Stars < 0 || opts.Stars > 3 {
		return NewExitError(ExitCommandError, "--stars must be between 1 and 3")
	}
	start, end, err := opts.parseWindow()
	if err != nil {
		return err
	}
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	if opts.Cycles > 0 {
		cfg.PollCycles = opts.Cycles
	}
	if opts.Interval > 0 {
		cfg.PollInterval = time.Duration(opts.Interval) * time.Minute
	}
	if opts.ExcludeToday {
		cfg.ExcludeToday = true
	}
	if opts.Notification != "" {
		cfg.NotificationChannel = opts.Notification
	}
	if opts.Title != "" {
		cfg.NotificationTitle = opts.Title
	}
	if opts.JobsFile != "" {
		cfg.JobsFile = opts.JobsFile
	}
	if opts.Region != 0 {
		cfg.RegionID = opts.Region
	}

	logger := opts.logger(cfg, cmd.ErrOrStderr())
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var jobs watch.JobSource
	if job, ok := opts.flagJob(cfg.RegionID, cfg.NotificationTitle); ok {
		jobs = watch.StaticJobs(job)
	}

	rt, err := bootstrap.BuildRuntime(ctx, cfg, logger, cmd.OutOrStdout(), jobs)
	if err != nil {
		return WrapExitError(ExitFailure, "startup failed", err)
	}
	defer rt.Close()
	rt.Loop.WithWindow(start, end)

	if cfg.StatusAddr != "" {
		srv := &http.Server{
			Addr: cfg.StatusAddr,
			Handler: router.New(&router.Config{
				Logger:         logger,
				MetricsHandler: promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}),
				Ledger:         rt.Store,
			}),
			ReadHeaderTimeout: 5 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}
		go func() {
			logger.Info("status server listening", "addr", cfg.StatusAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := rt.Loop.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("stopped")
			return nil
		}
		return WrapExitError(ExitFailure, "poll failed", err)
	}
	return nil
}
