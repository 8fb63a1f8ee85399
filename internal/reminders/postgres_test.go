package reminders

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/slotwatch/internal/portal/appointments"
	"github.com/wolfman30/slotwatch/pkg/logging"
)

func TestPostgresStoreLoad(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := mock.NewRows([]string{"doctor_id", "appointment_date", "reminder_count"}).
		AddRow("1", "2024-06-01T09:00:00", 2).
		AddRow("1", "2024-06-02T09:00:00", 1).
		AddRow("8", "2024-06-03T12:30:00", 4)
	mock.ExpectQuery("SELECT doctor_id, appointment_date, reminder_count").WillReturnRows(rows)

	store := newPostgresStoreWithDB(mock)
	ledger, err := store.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Ledger{
		"1": {
			{AppointmentDate: "2024-06-01T09:00:00", ReminderCount: 2},
			{AppointmentDate: "2024-06-02T09:00:00", ReminderCount: 1},
		},
		"8": {{AppointmentDate: "2024-06-03T12:30:00", ReminderCount: 4}},
	}, ledger)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLoadError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT doctor_id").WillReturnError(errors.New("relation does not exist"))

	_, err = newPostgresStoreWithDB(mock).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query ledger")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSave(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reminder_ledger").
		WithArgs("1", "2024-06-01T09:00:00", 3, 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO reminder_ledger").
		WithArgs("1", "2024-06-02T09:00:00", 1, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ledger := Ledger{"1": {
		{AppointmentDate: "2024-06-01T09:00:00", ReminderCount: 3},
		{AppointmentDate: "2024-06-02T09:00:00", ReminderCount: 1},
	}}
	require.NoError(t, newPostgresStoreWithDB(mock).Save(context.Background(), ledger))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSaveRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reminder_ledger").
		WithArgs("1", "2024-06-01T09:00:00", 1, 0).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	ledger := Ledger{"1": {{AppointmentDate: "2024-06-01T09:00:00", ReminderCount: 1}}}
	err = newPostgresStoreWithDB(mock).Save(context.Background(), ledger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock detected")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreReconcileHoldsAdvisoryLock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(ledgerLockKey).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT doctor_id, appointment_date, reminder_count").
		WillReturnRows(mock.NewRows([]string{"doctor_id", "appointment_date", "reminder_count"}).
			AddRow("1", "2024-06-01T09:00:00", 1))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reminder_ledger").
		WithArgs("1", "2024-06-01T09:00:00", 2, 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	store := NewStore(newPostgresStoreWithDB(mock), WithStoreLogger(logging.Discard()))
	notify, err := store.Reconcile(context.Background(), []appointments.Appointment{appt(1, "2024-06-01T09:00:00")})
	require.NoError(t, err)
	assert.Len(t, notify, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLockFailureSkipsLedger(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(ledgerLockKey).
		WillReturnError(errors.New("canceling statement due to lock timeout"))
	mock.ExpectRollback()

	store := NewStore(newPostgresStoreWithDB(mock), WithStoreLogger(logging.Discard()))
	_, err = store.Reconcile(context.Background(), []appointments.Appointment{appt(1, "2024-06-01T09:00:00")})
	assert.ErrorContains(t, err, "lock ledger")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresStoreRequiresPool(t *testing.T) {
	assert.Panics(t, func() { NewPostgresStore(nil) })
}
