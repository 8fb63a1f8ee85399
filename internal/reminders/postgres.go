package reminders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ledgerLockKey is the pg_advisory_xact_lock key guarding reminder_ledger.
const ledgerLockKey int64 = 0x736c6f74

// PostgresStore keeps one row per (doctor, date) in reminder_ledger. It is a
// Locker: Store.Reconcile holds a transaction scoped advisory lock across its
// load and save, so concurrent instances serialize their read-modify-write.
type PostgresStore struct {
	db pgxDB
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("reminders: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithDB(db pgxDB) *PostgresStore {
	if db == nil {
		panic("reminders: db required")
	}
	return &PostgresStore{db: db}
}

// Lock opens a transaction holding the ledger advisory lock. The returned
// func ends the transaction, which releases the lock.
func (p *PostgresStore) Lock(ctx context.Context) (func(), error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("reminders: begin lock tx: %w", err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", ledgerLockKey); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("reminders: advisory lock: %w", err)
	}
	return func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }, nil
}

func (p *PostgresStore) Load(ctx context.Context) (Ledger, error) {
	query := `
		SELECT doctor_id, appointment_date, reminder_count
		FROM reminder_ledger
		ORDER BY doctor_id, position
	`
	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reminders: query ledger: %w", err)
	}
	defer rows.Close()

	ledger := Ledger{}
	for rows.Next() {
		var doctorID string
		var e Entry
		if err := rows.Scan(&doctorID, &e.AppointmentDate, &e.ReminderCount); err != nil {
			return nil, fmt.Errorf("reminders: scan ledger row: %w", err)
		}
		ledger[doctorID] = append(ledger[doctorID], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reminders: iterate ledger: %w", err)
	}
	return ledger, nil
}

// Save upserts every entry in one transaction. Counts only move upwards, so a
// writer that skipped Lock still cannot lower a count.
func (p *PostgresStore) Save(ctx context.Context, ledger Ledger) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reminders: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO reminder_ledger (doctor_id, appointment_date, reminder_count, position)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doctor_id, appointment_date)
		DO UPDATE SET reminder_count = GREATEST(reminder_ledger.reminder_count, EXCLUDED.reminder_count),
			updated_at = now()
	`
	for doctorID, entries := range ledger {
		for i, e := range entries {
			if _, err := tx.Exec(ctx, query, doctorID, e.AppointmentDate, e.ReminderCount, i); err != nil {
				return fmt.Errorf("reminders: upsert %s/%s: %w", doctorID, e.AppointmentDate, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reminders: commit: %w", err)
	}
	return nil
}
