package reminders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/slotwatch/internal/portal/appointments"
	"github.com/wolfman30/slotwatch/pkg/logging"
)

type memoryPersister struct {
	ledger  Ledger
	loadErr error
	saveErr error
	saves   int
	locks   int
	unlocks int
}

func (m *memoryPersister) Load(context.Context) (Ledger, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.ledger == nil {
		return Ledger{}, nil
	}
	return m.ledger.Clone(), nil
}

func (m *memoryPersister) Save(_ context.Context, l Ledger) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.ledger = l.Clone()
	return nil
}

type lockingPersister struct {
	*memoryPersister
	lockErr error
}

func (l *lockingPersister) Lock(context.Context) (func(), error) {
	if l.lockErr != nil {
		return nil, l.lockErr
	}
	l.locks++
	return func() { l.unlocks++ }, nil
}

func TestStoreReconcilePersists(t *testing.T) {
	p := &memoryPersister{}
	store := NewStore(p, WithStoreLogger(logging.Discard()))
	a := appt(1, "2024-06-01T09:00:00")

	for i := 0; i < 3; i++ {
		notify, err := store.Reconcile(context.Background(), []appointments.Appointment{a})
		require.NoError(t, err)
		assert.Len(t, notify, 1)
	}
	notify, err := store.Reconcile(context.Background(), []appointments.Appointment{a})
	require.NoError(t, err)
	assert.Empty(t, notify)
	assert.Equal(t, 4, p.ledger.Count("1", a.AppointmentDate))
	assert.Equal(t, 4, p.saves)
}

func TestStoreLoadFailureStartsEmpty(t *testing.T) {
	p := &memoryPersister{loadErr: ErrCorrupt}
	store := NewStore(p, WithStoreLogger(logging.Discard()))

	notify, err := store.Reconcile(context.Background(), []appointments.Appointment{appt(1, "2024-06-01T09:00:00")})
	require.NoError(t, err)
	assert.Len(t, notify, 1)
	assert.Equal(t, 1, p.ledger.Count("1", "2024-06-01T09:00:00"))
}

func TestStoreSaveFailureStillReturnsNotifySet(t *testing.T) {
	p := &memoryPersister{saveErr: errors.New("disk full")}
	store := NewStore(p, WithStoreLogger(logging.Discard()))

	notify, err := store.Reconcile(context.Background(), []appointments.Appointment{appt(1, "2024-06-01T09:00:00")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, notify, 1)
}

func TestStoreUsesLocker(t *testing.T) {
	p := &lockingPersister{memoryPersister: &memoryPersister{}}
	store := NewStore(p, WithStoreLogger(logging.Discard()))

	_, err := store.Reconcile(context.Background(), []appointments.Appointment{appt(1, "2024-06-01T09:00:00")})
	require.NoError(t, err)
	assert.Equal(t, 1, p.locks)
	assert.Equal(t, 1, p.unlocks)
}

func TestStoreLockFailureAborts(t *testing.T) {
	p := &lockingPersister{memoryPersister: &memoryPersister{}, lockErr: ErrLockTimeout}
	store := NewStore(p, WithStoreLogger(logging.Discard()))

	notify, err := store.Reconcile(context.Background(), []appointments.Appointment{appt(1, "2024-06-01T09:00:00")})
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Nil(t, notify)
	assert.Zero(t, p.saves)
}

func TestStoreThresholdOption(t *testing.T) {
	p := &memoryPersister{}
	store := NewStore(p, WithThreshold(1), WithStoreLogger(logging.Discard()))
	a := appt(1, "2024-06-01T09:00:00")

	notify, _ := store.Reconcile(context.Background(), []appointments.Appointment{a})
	assert.Len(t, notify, 1)
	notify, _ = store.Reconcile(context.Background(), []appointments.Appointment{a})
	assert.Empty(t, notify)
}

func TestStoreSnapshot(t *testing.T) {
	p := &memoryPersister{ledger: Ledger{"1": {{AppointmentDate: "d", ReminderCount: 2}}}}
	store := NewStore(p)

	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Count("1", "d"))

	p.loadErr = ErrCorrupt
	_, err = store.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestNewStorePanicsWithoutPersister(t *testing.T) {
	assert.Panics(t, func() { NewStore(nil) })
}
