package postgres

import (
	"context"
	"github.com/jackc/pgx/v5/pgxpool"
	"time"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// EnsureSchema creates the reservations table and its indexes if missing.
// The (resource_id, start_at) index is what lets the availability index be
// rebuilt cheaply on restart.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS reservations (
  id            UUID PRIMARY KEY,
  resource_id   TEXT NOT NULL,
  service_id    TEXT NOT NULL,
  start_at      TIMESTAMPTZ NOT NULL,
  end_at        TIMESTAMPTZ NOT NULL,
  customer_ref  TEXT NOT NULL,
  vehicle_type  TEXT NOT NULL DEFAULT '',
  vehicle_model TEXT NOT NULL DEFAULT '',
  license_plate TEXT NOT NULL DEFAULT '',
  price_cents   INT NOT NULL,
  status        TEXT NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL,
  confirmed_at  TIMESTAMPTZ,
  expires_at    TIMESTAMPTZ
)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_resource_start ON reservations(resource_id, start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_due ON reservations(expires_at) WHERE status = 'HELD'`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
