package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type migration struct {
	version int
	stmt    string
}

var migrations = []migration{
	{
		version: 1,
		stmt: `
			CREATE TABLE IF NOT EXISTS xero_connections (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				tenant_id TEXT NOT NULL,
				tenant_name TEXT NOT NULL DEFAULT '',
				access_token TEXT NOT NULL,
				refresh_token TEXT NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL,
				scope TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'active',
				minute_remaining INT NOT NULL DEFAULT 0,
				day_remaining INT NOT NULL DEFAULT 0,
				rate_reset_at TIMESTAMPTZ,
				rate_problem TEXT NOT NULL DEFAULT '',
				rate_updated_at TIMESTAMPTZ,
				last_api_call_at TIMESTAMPTZ,
				row_version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);

			CREATE UNIQUE INDEX IF NOT EXISTS xero_connections_active_uniq
				ON xero_connections (user_id, tenant_id) WHERE status = 'active';

			CREATE INDEX IF NOT EXISTS xero_connections_tenant_idx
				ON xero_connections (tenant_id);`,
	},
	{
		version: 2,
		stmt: `
			CREATE TABLE IF NOT EXISTS sync_checkpoints (
				tenant_id TEXT NOT NULL,
				entity_type TEXT NOT NULL,
				last_synced_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				PRIMARY KEY (tenant_id, entity_type)
			);`,
	},
	{
		version: 3,
		stmt: `
			CREATE TABLE IF NOT EXISTS xero_contacts (
				tenant_id TEXT NOT NULL,
				contact_id TEXT NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				first_name TEXT NOT NULL DEFAULT '',
				last_name TEXT NOT NULL DEFAULT '',
				email_address TEXT NOT NULL DEFAULT '',
				contact_status TEXT NOT NULL DEFAULT '',
				updated_utc TIMESTAMPTZ,
				synced_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				PRIMARY KEY (tenant_id, contact_id)
			);

			CREATE TABLE IF NOT EXISTS xero_invoices (
				tenant_id TEXT NOT NULL,
				invoice_id TEXT NOT NULL,
				invoice_number TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT '',
				contact_id TEXT NOT NULL DEFAULT '',
				contact_name TEXT NOT NULL DEFAULT '',
				invoice_date TIMESTAMPTZ,
				due_date TIMESTAMPTZ,
				sub_total NUMERIC(14,2) NOT NULL DEFAULT 0,
				total_tax NUMERIC(14,2) NOT NULL DEFAULT 0,
				total NUMERIC(14,2) NOT NULL DEFAULT 0,
				amount_due NUMERIC(14,2) NOT NULL DEFAULT 0,
				amount_paid NUMERIC(14,2) NOT NULL DEFAULT 0,
				currency_code TEXT NOT NULL DEFAULT '',
				updated_utc TIMESTAMPTZ,
				synced_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				PRIMARY KEY (tenant_id, invoice_id)
			);

			CREATE TABLE IF NOT EXISTS xero_payments (
				tenant_id TEXT NOT NULL,
				payment_id TEXT NOT NULL,
				invoice_id TEXT NOT NULL DEFAULT '',
				payment_date TIMESTAMPTZ,
				amount NUMERIC(14,2) NOT NULL DEFAULT 0,
				reference TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT '',
				payment_type TEXT NOT NULL DEFAULT '',
				updated_utc TIMESTAMPTZ,
				synced_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				PRIMARY KEY (tenant_id, payment_id)
			);

			CREATE TABLE IF NOT EXISTS xero_credit_notes (
				tenant_id TEXT NOT NULL,
				credit_note_id TEXT NOT NULL,
				credit_note_number TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL DEFAULT '',
				contact_id TEXT NOT NULL DEFAULT '',
				contact_name TEXT NOT NULL DEFAULT '',
				note_date TIMESTAMPTZ,
				status TEXT NOT NULL DEFAULT '',
				total NUMERIC(14,2) NOT NULL DEFAULT 0,
				remaining_credit NUMERIC(14,2) NOT NULL DEFAULT 0,
				updated_utc TIMESTAMPTZ,
				synced_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				PRIMARY KEY (tenant_id, credit_note_id)
			);`,
	},
}

// Migrate applies pending migrations in version order. Safe to run on every
// startup; applied versions are recorded in schema_migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	const trackingTable = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	if _, err := db.ExecContext(ctx, trackingTable); err != nil {
		return errors.Wrap(err, "creating schema_migrations")
	}

	for _, m := range migrations {
		applied, err := migrationApplied(ctx, db, m.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrapf(err, "starting migration %d", m.version)
		}

		if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "applying migration %d", m.version)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "recording migration %d", m.version)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "committing migration %d", m.version)
		}
	}

	return nil
}

func migrationApplied(ctx context.Context, db *sql.DB, version int) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(err, "checking migration %d", version)
	}
	return exists, nil
}
