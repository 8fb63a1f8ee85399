package reminders

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/slotwatch/internal/portal/appointments"
	"github.com/wolfman30/slotwatch/pkg/logging"
)

// ErrCorrupt marks a persisted ledger that could not be decoded.
var ErrCorrupt = errors.New("reminders: ledger corrupt")

// Persister loads and saves the whole ledger. Load returns an empty ledger
// when nothing was stored yet.
type Persister interface {
	Load(ctx context.Context) (Ledger, error)
	Save(ctx context.Context, ledger Ledger) error
}

// Locker is implemented by persisters that can serialise concurrent writers.
type Locker interface {
	Lock(ctx context.Context) (func(), error)
}

// Store reconciles appointment batches against a persisted ledger.
type Store struct {
	persister Persister
	threshold int
	logger    *logging.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.threshold = n
		}
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(logger *logging.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore wraps a persister.
func NewStore(p Persister, opts ...StoreOption) *Store {
	if p == nil {
		panic("reminders: persister required")
	}
	s := &Store{
		persister: p,
		threshold: DefaultThreshold,
		logger:    logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile loads the ledger, records the batch and saves the result. An
// unreadable ledger is logged and replaced by an empty one. The notify set is
// returned even when saving fails, together with the save error.
func (s *Store) Reconcile(ctx context.Context, appts []appointments.Appointment) ([]appointments.Appointment, error) {
	if locker, ok := s.persister.(Locker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			return nil, fmt.Errorf("reminders: lock ledger: %w", err)
		}
		defer unlock()
	}

	ledger := s.load(ctx)
	notify := ledger.Reconcile(appts, s.threshold)
	if err := s.persister.Save(ctx, ledger); err != nil {
		return notify, fmt.Errorf("reminders: save ledger: %w", err)
	}
	s.logger.Debug("ledger reconciled", "seen", len(appts), "notify", len(notify), "doctors", len(ledger))
	return notify, nil
}

// Snapshot returns the current ledger.
func (s *Store) Snapshot(ctx context.Context) (Ledger, error) {
	ledger, err := s.persister.Load(ctx)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		ledger = Ledger{}
	}
	return ledger, nil
}

func (s *Store) load(ctx context.Context) Ledger {
	ledger, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Warn("ledger unreadable, starting empty", "error", err)
		return Ledger{}
	}
	if ledger == nil {
		return Ledger{}
	}
	return ledger
}
