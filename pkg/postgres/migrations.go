package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

type Migration struct {
	Version string
	Up      string
}

var Migrations = []Migration{
	{Version: "1.0.0", Up: migrationV1},
	{Version: "1.1.0", Up: migrationV1_1},
	{Version: "1.2.0", Up: migrationV1_2},
}

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const migrationV1 = `
CREATE TABLE IF NOT EXISTS users (
    id         TEXT PRIMARY KEY,
    full_name  TEXT,
    email      TEXT UNIQUE,
    role       TEXT NOT NULL DEFAULT 'user',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    price       NUMERIC(12,2) NOT NULL CHECK (price >= 0),
    sales_count BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS carts (
    user_id    TEXT PRIMARY KEY,
    items      JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    items          JSONB NOT NULL,
    shipping       JSONB NOT NULL,
    status         TEXT NOT NULL,
    payment_method TEXT NOT NULL,
    payment_status TEXT NOT NULL DEFAULT 'pending',
    subtotal       NUMERIC(12,2) NOT NULL,
    shipping_cost  NUMERIC(12,2) NOT NULL DEFAULT 0,
    total          NUMERIC(12,2) NOT NULL,
    notes          TEXT,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders (status, created_at DESC);

CREATE TABLE IF NOT EXISTS payments (
    id          TEXT PRIMARY KEY,
    order_id    TEXT NOT NULL,
    amount      NUMERIC(12,2) NOT NULL,
    status      TEXT NOT NULL,
    provider_id TEXT,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_payments_order ON payments (order_id);
`

const migrationV1_1 = `
CREATE TABLE IF NOT EXISTS payment_events (
    payment_id  TEXT NOT NULL,
    status      TEXT NOT NULL,
    payload     JSONB,
    received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (payment_id, status)
);
`

// payment_events becomes a delivery log. A status may legitimately come back
// (success, failure, success), so (payment_id, status) is no longer unique.
const migrationV1_2 = `
ALTER TABLE payment_events DROP CONSTRAINT IF EXISTS payment_events_pkey;
ALTER TABLE payment_events ADD COLUMN IF NOT EXISTS id BIGSERIAL PRIMARY KEY;
ALTER TABLE payment_events ADD COLUMN IF NOT EXISTS applied BOOLEAN NOT NULL DEFAULT true;
CREATE INDEX IF NOT EXISTS idx_payment_events_payment ON payment_events (payment_id, received_at);
`

// ApplyMigrations runs every migration newer than the highest recorded
// schema version, each in its own transaction.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	pending, err := pendingMigrations(Migrations, current)
	if err != nil {
		return err
	}

	for _, m := range pending {
		err := ExecTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, m.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", m.Version, err)
		}
	}
	return nil
}

func currentVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, fmt.Errorf("read schema_version: %w", err)
	}
	defer rows.Close()

	var latest *semver.Version
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %q: %w", raw, err)
		}
		if latest == nil || v.GreaterThan(latest) {
			latest = v
		}
	}
	return latest, rows.Err()
}

// pendingMigrations returns migrations newer than current, sorted ascending.
// A nil current means nothing has been applied yet.
func pendingMigrations(all []Migration, current *semver.Version) ([]Migration, error) {
	type versioned struct {
		v *semver.Version
		m Migration
	}

	var out []versioned
	for _, m := range all {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid migration version %q: %w", m.Version, err)
		}
		if current == nil || v.GreaterThan(current) {
			out = append(out, versioned{v: v, m: m})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].v.LessThan(out[j].v) })

	res := make([]Migration, 0, len(out))
	for _, o := range out {
		res = append(res, o.m)
	}
	return res, nil
}
