package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	appconfig "github.com/wolfman30/slotwatch/internal/config"
	"github.com/wolfman30/slotwatch/internal/notify"
	"github.com/wolfman30/slotwatch/internal/observability/metrics"
	"github.com/wolfman30/slotwatch/internal/portal/appointments"
	"github.com/wolfman30/slotwatch/internal/portal/auth"
	"github.com/wolfman30/slotwatch/internal/reminders"
	"github.com/wolfman30/slotwatch/internal/watch"
	"github.com/wolfman30/slotwatch/pkg/logging"
)

// AuthConfig maps application config to the login handshake settings.
func AuthConfig(cfg *appconfig.Config) auth.Config {
	return auth.Config{
		LoginBaseURL: cfg.LoginBaseURL,
		AppBaseURL:   cfg.AppBaseURL,
		UILocale:     cfg.UILocale,
		AppVersion:   cfg.AppVersion,
		DeviceName:   cfg.DeviceName,
		Timeout:      cfg.HTTPTimeout,
	}
}

// SessionFactory opens a fresh portal session per call.
func SessionFactory(cfg *appconfig.Config, logger *logging.Logger) watch.SessionFactory {
	return func() watch.Session {
		return auth.NewSession(AuthConfig(cfg), cfg.PortalUsername, cfg.PortalPassword,
			auth.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
			auth.WithLogger(logger),
		)
	}
}

// SearcherFactory binds the appointment client to a session.
func SearcherFactory(cfg *appconfig.Config, logger *logging.Logger, observer appointments.Observer) watch.SearcherFactory {
	return func(requester appointments.Requester) watch.Searcher {
		return appointments.NewClient(cfg.APIBaseURL, requester,
			appointments.WithLogger(logger),
			appointments.WithObserver(observer),
		)
	}
}

// Runtime is the fully wired watcher.
type Runtime struct {
	Config     *appconfig.Config
	Logger     *logging.Logger
	Metrics    *metrics.WatchMetrics
	Registry   *prometheus.Registry
	Store      *reminders.Store
	Dispatcher *notify.Dispatcher
	Loop       *watch.Loop

	cleanup func()
}

// BuildRuntime wires the ledger, transports and loop from cfg. Jobs come from
// jobs when given, otherwise from the jobs file.
func BuildRuntime(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, out io.Writer, jobs watch.JobSource) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewWatchMetrics(registry)

	persister, cleanup, err := BuildLedger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	store := reminders.NewStore(persister,
		reminders.WithThreshold(cfg.LedgerThreshold),
		reminders.WithStoreLogger(logger),
	)
	dispatcher := BuildDispatcher(ctx, cfg, logger, m)

	if jobs == nil {
		jobs = watch.FileJobs(cfg.JobsFile, cfg.RegionID)
	}
	loop := watch.NewLoop(
		SessionFactory(cfg, logger),
		SearcherFactory(cfg, logger, m),
		jobs,
		store,
		dispatcher,
		logger,
	).WithCycles(cfg.PollCycles).
		WithInterval(cfg.PollInterval).
		WithExcludeToday(cfg.ExcludeToday).
		WithDefaults(cfg.NotificationChannel, cfg.NotificationTitle).
		WithOutput(out).
		WithMetrics(m)

	return &Runtime{
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
		Registry:   registry,
		Store:      store,
		Dispatcher: dispatcher,
		Loop:       loop,
		cleanup:    cleanup,
	}, nil
}

// Close releases ledger connections.
func (r *Runtime) Close() {
	if r != nil && r.cleanup != nil {
		r.cleanup()
	}
}
