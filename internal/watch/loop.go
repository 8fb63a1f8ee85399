// Package watch runs the poll cycle: log in, search every job, reconcile the
// results against the reminder ledger and announce what is new.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/slotwatch/internal/notify"
	"github.com/wolfman30/slotwatch/internal/portal/appointments"
	"github.com/wolfman30/slotwatch/internal/portal/auth"
	"github.com/wolfman30/slotwatch/pkg/logging"
)

var watchTracer = otel.Tracer("slotwatch.internal.watch")

const (
	DefaultCycles   = 4
	DefaultInterval = time.Minute
	DefaultTitle    = "New appointments"
)

// Session is a logged-in portal session.
type Session interface {
	Authenticate(ctx context.Context) (*auth.Credential, error)
	Do(req *http.Request) (*http.Response, error)
}

// SessionFactory opens a fresh session for each cycle.
type SessionFactory func() Session

// Searcher finds free slots.
type Searcher interface {
	Search(ctx context.Context, f appointments.SearchFilters) []appointments.Appointment
}

// SearcherFactory binds a searcher to an authenticated session.
type SearcherFactory func(requester appointments.Requester) Searcher

type reconciler interface {
	Reconcile(ctx context.Context, appts []appointments.Appointment) ([]appointments.Appointment, error)
}

type sender interface {
	Send(ctx context.Context, transport, message, title string) error
}

type metrics interface {
	ObserveCycle(status string, seconds float64)
	ObserveAuth(status string)
	ObserveSuppressed(n int)
}

// JobSource returns the jobs to run this cycle.
type JobSource func() ([]Job, error)

// StaticJobs always returns the same jobs.
func StaticJobs(jobs ...Job) JobSource {
	return func() ([]Job, error) { return jobs, nil }
}

// FileJobs re-reads the jobs file every cycle.
func FileJobs(path string, regionID int) JobSource {
	return func() ([]Job, error) { return LoadJobs(path, regionID) }
}

// Loop polls the portal on a fixed schedule.
type Loop struct {
	sessions  SessionFactory
	searchers SearcherFactory
	jobs      JobSource
	ledger    reconciler
	sender    sender
	formatter *notify.Formatter
	metrics   metrics
	logger    *logging.Logger
	out       io.Writer
	now       func() time.Time

	cycles           int
	interval         time.Duration
	startDate        time.Time
	endDate          time.Time
	excludeToday     bool
	defaultTransport string
	defaultTitle     string
}

func NewLoop(sessions SessionFactory, searchers SearcherFactory, jobs JobSource, ledger reconciler, snd sender, logger *logging.Logger) *Loop {
	if logger == nil {
		logger = logging.Default()
	}
	return &Loop{
		sessions:         sessions,
		searchers:        searchers,
		jobs:             jobs,
		ledger:           ledger,
		sender:           snd,
		formatter:        notify.NewFormatter(nil),
		logger:           logger,
		out:              io.Discard,
		now:              time.Now,
		cycles:           DefaultCycles,
		interval:         DefaultInterval,
		defaultTransport: "telegram",
		defaultTitle:     DefaultTitle,
	}
}

func (l *Loop) WithCycles(n int) *Loop {
	if n > 0 {
		l.cycles = n
	}
	return l
}

func (l *Loop) WithInterval(d time.Duration) *Loop {
	if d > 0 {
		l.interval = d
	}
	return l
}

// WithWindow limits searches to [start, end]. A zero start means the day of the cycle.
func (l *Loop) WithWindow(start, end time.Time) *Loop {
	l.startDate = start
	l.endDate = end
	return l
}

// WithExcludeToday skips announcing batches that only contain today's slots.
func (l *Loop) WithExcludeToday(v bool) *Loop {
	l.excludeToday = v
	return l
}

func (l *Loop) WithDefaults(transport, title string) *Loop {
	if transport != "" {
		l.defaultTransport = transport
	}
	if title != "" {
		l.defaultTitle = title
	}
	return l
}

func (l *Loop) WithOutput(w io.Writer) *Loop {
	if w != nil {
		l.out = w
	}
	return l
}

func (l *Loop) WithMetrics(m metrics) *Loop {
	l.metrics = m
	return l
}

func (l *Loop) WithClock(now func() time.Time) *Loop {
	if now != nil {
		l.now = now
		l.formatter = notify.NewFormatter(now)
	}
	return l
}

// Run executes the configured number of cycles, sleeping between them.
// Cancelling ctx stops the wait; a cycle in progress runs to completion of
// its current request.
func (l *Loop) Run(ctx context.Context) error {
	var lastErr error
	for i := 0; i < l.cycles; i++ {
		lastErr = l.RunCycle(ctx)
		if lastErr != nil {
			l.logger.Error("poll cycle failed", "cycle", i+1, "error", lastErr)
		}
		if i == l.cycles-1 {
			break
		}
		timer := time.NewTimer(l.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// ErrNoSession is returned when the loop has no way to open a session.
var ErrNoSession = errors.New("watch: session factory not configured")

// RunCycle logs in once and processes every job. A failed login aborts the
// cycle before anything is searched.
func (l *Loop) RunCycle(ctx context.Context) (err error) {
	ctx, span := watchTracer.Start(ctx, "watch.cycle")
	started := l.now()
	status := "ok"
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		}
		span.End()
		if l.metrics != nil {
			l.metrics.ObserveCycle(status, time.Since(started).Seconds())
		}
	}()

	jobs, err := l.jobs()
	if err != nil {
		status = "jobs_failed"
		return fmt.Errorf("watch: load jobs: %w", err)
	}
	span.SetAttributes(attribute.Int("watch.jobs", len(jobs)))
	if len(jobs) == 0 {
		l.logger.Info("no jobs to run")
		return nil
	}

	if l.sessions == nil {
		status = "auth_failed"
		return ErrNoSession
	}
	session := l.sessions()
	if _, err := session.Authenticate(ctx); err != nil {
		status = "auth_failed"
		l.observeAuth("failed")
		return fmt.Errorf("watch: login: %w", err)
	}
	l.observeAuth("ok")

	search := l.searchers(session)
	for _, job := range jobs {
		l.runJob(ctx, search, job)
	}
	return nil
}

func (l *Loop) runJob(ctx context.Context, search Searcher, job Job) {
	start := l.startDate
	if start.IsZero() {
		start = l.now()
	}
	found := search.Search(ctx, job.Filters(start, l.endDate))

	fresh, err := l.ledger.Reconcile(ctx, found)
	if err != nil {
		l.logger.Error("reminder ledger update failed", "job", job.Name, "error", err)
	}
	if l.metrics != nil {
		l.metrics.ObserveSuppressed(len(found) - len(fresh))
	}

	notify.Display(l.out, fresh)
	fmt.Fprintf(l.out, "All appointments: %d\n", len(found))
	fmt.Fprintf(l.out, "Filtered appointments: %d\n", len(fresh))

	if len(fresh) == 0 {
		return
	}
	if l.excludeToday && notify.OnlyToday(fresh, l.now()) {
		l.logger.Info("only same-day slots, not announcing", "job", job.Name, "count", len(fresh))
		return
	}

	transport := job.Transport
	if transport == "" {
		transport = l.defaultTransport
	}
	title := job.Title
	if title == "" {
		title = job.Name
	}
	if title == "" {
		title = l.defaultTitle
	}
	message := l.formatter.Render(fresh, job.Stars)
	if err := l.sender.Send(ctx, transport, message, title); err != nil {
		l.logger.Warn("announcement not delivered", "job", job.Name, "transport", transport, "error", err)
	}
}

func (l *Loop) observeAuth(status string) {
	if l.metrics != nil {
		l.metrics.ObserveAuth(status)
	}
}
