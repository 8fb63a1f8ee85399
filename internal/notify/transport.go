package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wolfman30/slotwatch/pkg/logging"
)

// ErrUnknownTransport is returned when a job names a transport that was not registered.
var ErrUnknownTransport = errors.New("notify: unknown transport")

// Transport delivers a rendered digest.
type Transport interface {
	Send(ctx context.Context, message, title string) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, message, title string) error

func (f TransportFunc) Send(ctx context.Context, message, title string) error {
	return f(ctx, message, title)
}

// Observer is told about every delivery attempt. Status is "sent" or "failed".
type Observer interface {
	ObserveNotification(transport, status string)
}

// Dispatcher routes digests to transports by name.
type Dispatcher struct {
	mu         sync.RWMutex
	transports map[string]Transport
	logger     *logging.Logger
	observer   Observer
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher(logger *logging.Logger, observer Observer) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		transports: map[string]Transport{},
		logger:     logger,
		observer:   observer,
	}
}

// Register adds or replaces a transport. Names are case-insensitive.
func (d *Dispatcher) Register(name string, t Transport) {
	if t == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transports[normalizeName(name)] = t
}

// Names lists the registered transports.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.transports))
	for name := range d.transports {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Send delivers once through the named transport. Failures are logged and
// returned; they are not retried.
func (d *Dispatcher) Send(ctx context.Context, name, message, title string) error {
	name = normalizeName(name)
	d.mu.RLock()
	t, ok := d.transports[name]
	d.mu.RUnlock()
	if !ok {
		d.logger.Warn("notification transport not configured", "transport", name)
		d.observe(name, "failed")
		return fmt.Errorf("%w: %q", ErrUnknownTransport, name)
	}

	if err := t.Send(ctx, message, title); err != nil {
		d.logger.Error("notification failed", "transport", name, "error", err)
		d.observe(name, "failed")
		return fmt.Errorf("notify: %s: %w", name, err)
	}
	d.logger.Info("notification sent", "transport", name, "title", title)
	d.observe(name, "sent")
	return nil
}

func (d *Dispatcher) observe(name, status string) {
	if d.observer != nil {
		d.observer.ObserveNotification(name, status)
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// LogTransport only logs the digest; used when no real channel is configured.
type LogTransport struct {
	logger *logging.Logger
}

func NewLogTransport(logger *logging.Logger) *LogTransport {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogTransport{logger: logger}
}

func (l *LogTransport) Send(_ context.Context, message, title string) error {
	l.logger.Info("log transport: would send notification", "title", title, "length", len(message))
	return nil
}
