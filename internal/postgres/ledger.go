package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-washbay-booking.git/internal/booking"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger is the durable booking.Ledger. Status transitions lock the row
// (FOR UPDATE) and re-check the transition table inside the transaction, so
// the terminal-state invariant holds at the storage layer too.
type Ledger struct{ DB *pgxpool.Pool }

const reservationCols = `id, resource_id, service_id, start_at, end_at, customer_ref,
vehicle_type, vehicle_model, license_plate, price_cents, status, created_at, confirmed_at, expires_at`

func (l *Ledger) Append(ctx context.Context, r *booking.Reservation) error {
	_, err := l.DB.Exec(ctx, `
INSERT INTO reservations(`+reservationCols+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		r.ID, r.ResourceID, r.ServiceID, r.Start, r.End, r.CustomerRef,
		r.Vehicle.Type, r.Vehicle.Model, r.Vehicle.LicensePlate,
		r.PriceCents, r.Status, r.CreatedAt, r.ConfirmedAt, r.ExpiresAt)
	if err != nil {
		return wrap("append", err)
	}
	return nil
}

func (l *Ledger) UpdateStatus(ctx context.Context, id string, to booking.Status, at time.Time) (*booking.Reservation, error) {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, wrap("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur booking.Status
	err = tx.QueryRow(ctx, `SELECT status FROM reservations WHERE id=$1 FOR UPDATE`, id).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.ErrNotFound
	}
	if err != nil {
		return nil, wrap("lock row", err)
	}
	if !booking.CanTransition(cur, to) {
		return nil, fmt.Errorf("%w: %s -> %s", booking.ErrInvalidState, cur, to)
	}

	var confirmedAt *time.Time
	if to == booking.StatusConfirmed {
		confirmedAt = &at
	}
	_, err = tx.Exec(ctx, `
UPDATE reservations
SET status=$2, expires_at=NULL,
    confirmed_at=COALESCE($3, confirmed_at)
WHERE id=$1`, id, to, confirmedAt)
	if err != nil {
		return nil, wrap("update status", err)
	}

	r, err := scanOne(tx.QueryRow(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, wrap("commit", err)
	}
	return r, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*booking.Reservation, error) {
	return scanOne(l.DB.QueryRow(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id=$1`, id))
}

func (l *Ledger) ListByResourceAndRange(ctx context.Context, resource string, from, to time.Time) ([]*booking.Reservation, error) {
	rows, err := l.DB.Query(ctx, `
SELECT `+reservationCols+` FROM reservations
WHERE resource_id=$1 AND start_at < $3 AND end_at > $2
ORDER BY start_at`, resource, from, to)
	if err != nil {
		return nil, wrap("list by range", err)
	}
	return scanAll(rows)
}

func (l *Ledger) ListByCustomer(ctx context.Context, customerRef string) ([]*booking.Reservation, error) {
	rows, err := l.DB.Query(ctx, `
SELECT `+reservationCols+` FROM reservations
WHERE customer_ref=$1
ORDER BY start_at`, customerRef)
	if err != nil {
		return nil, wrap("list by customer", err)
	}
	return scanAll(rows)
}

func (l *Ledger) ListActive(ctx context.Context) ([]*booking.Reservation, error) {
	rows, err := l.DB.Query(ctx, `
SELECT `+reservationCols+` FROM reservations
WHERE status IN ('HELD','CONFIRMED')
ORDER BY start_at`)
	if err != nil {
		return nil, wrap("list active", err)
	}
	return scanAll(rows)
}

func (l *Ledger) DueHolds(ctx context.Context, now time.Time, limit int) ([]*booking.Reservation, error) {
	rows, err := l.DB.Query(ctx, `
SELECT `+reservationCols+` FROM reservations
WHERE status='HELD' AND expires_at <= $1
ORDER BY expires_at
LIMIT $2`, now, limit)
	if err != nil {
		return nil, wrap("due holds", err)
	}
	return scanAll(rows)
}

type row interface{ Scan(dest ...any) error }

func scanOne(rw row) (*booking.Reservation, error) {
	var r booking.Reservation
	err := rw.Scan(&r.ID, &r.ResourceID, &r.ServiceID, &r.Start, &r.End, &r.CustomerRef,
		&r.Vehicle.Type, &r.Vehicle.Model, &r.Vehicle.LicensePlate,
		&r.PriceCents, &r.Status, &r.CreatedAt, &r.ConfirmedAt, &r.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.ErrNotFound
	}
	if err != nil {
		return nil, wrap("scan", err)
	}
	return &r, nil
}

func scanAll(rows pgx.Rows) ([]*booking.Reservation, error) {
	defer rows.Close()
	var out []*booking.Reservation
	for rows.Next() {
		r, err := scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("rows", err)
	}
	return out, nil
}

// wrap flags storage faults as transient so callers never read them as a
// definitive slot answer.
func wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", booking.ErrUnavailable, op, err)
}
