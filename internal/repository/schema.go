package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Money is TEXT on SQLite so decimals round-trip without passing through REAL.
var schemas = map[string][]string{
	"postgres": {
		`CREATE TABLE IF NOT EXISTS users (
			id            UUID PRIMARY KEY,
			username      VARCHAR(64) NOT NULL UNIQUE,
			email         VARCHAR(255) NOT NULL,
			phone         VARCHAR(32) NOT NULL DEFAULT '',
			password_hash VARCHAR(255) NOT NULL,
			role          VARCHAR(16) NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS loans (
			id                   UUID PRIMARY KEY,
			loan_id              VARCHAR(64) NOT NULL UNIQUE,
			kind                 VARCHAR(16) NOT NULL,
			owner                VARCHAR(64) NOT NULL,
			borrower_name        VARCHAR(120) NOT NULL DEFAULT '',
			principal            NUMERIC(20, 2) NOT NULL,
			annual_interest_rate NUMERIC(9, 4),
			duration_months      INTEGER NOT NULL,
			purpose              TEXT NOT NULL DEFAULT '',
			monthly_income       NUMERIC(20, 2),
			employment_type      VARCHAR(32) NOT NULL DEFAULT '',
			status               VARCHAR(32) NOT NULL,
			admin_notes          TEXT NOT NULL DEFAULT '',
			reviewed_by          VARCHAR(64) NOT NULL DEFAULT '',
			created_at           TIMESTAMPTZ NOT NULL,
			updated_at           TIMESTAMPTZ NOT NULL,
			reviewed_at          TIMESTAMPTZ,
			approved_at          TIMESTAMPTZ,
			accepted_at          TIMESTAMPTZ,
			rejected_at          TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_owner ON loans (owner)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id          UUID PRIMARY KEY,
			loan_id     VARCHAR(64) NOT NULL REFERENCES loans (loan_id) ON DELETE CASCADE,
			amount      NUMERIC(20, 2) NOT NULL,
			paid_on     DATE NOT NULL,
			method      VARCHAR(32) NOT NULL,
			notes       TEXT NOT NULL DEFAULT '',
			recorded_by VARCHAR(64) NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_loan_id ON payments (loan_id)`,
	},
	"sqlite3": {
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL,
			phone         TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL,
			created_at    DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS loans (
			id                   TEXT PRIMARY KEY,
			loan_id              TEXT NOT NULL UNIQUE,
			kind                 TEXT NOT NULL,
			owner                TEXT NOT NULL,
			borrower_name        TEXT NOT NULL DEFAULT '',
			principal            TEXT NOT NULL,
			annual_interest_rate TEXT,
			duration_months      INTEGER NOT NULL,
			purpose              TEXT NOT NULL DEFAULT '',
			monthly_income       TEXT,
			employment_type      TEXT NOT NULL DEFAULT '',
			status               TEXT NOT NULL,
			admin_notes          TEXT NOT NULL DEFAULT '',
			reviewed_by          TEXT NOT NULL DEFAULT '',
			created_at           DATETIME NOT NULL,
			updated_at           DATETIME NOT NULL,
			reviewed_at          DATETIME,
			approved_at          DATETIME,
			accepted_at          DATETIME,
			rejected_at          DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_owner ON loans (owner)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id          TEXT PRIMARY KEY,
			loan_id     TEXT NOT NULL REFERENCES loans (loan_id) ON DELETE CASCADE,
			amount      TEXT NOT NULL,
			paid_on     DATE NOT NULL,
			method      TEXT NOT NULL,
			notes       TEXT NOT NULL DEFAULT '',
			recorded_by TEXT NOT NULL,
			created_at  DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_loan_id ON payments (loan_id)`,
	},
}

// Migrate creates the tables for the connection's driver if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	statements, ok := schemas[db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
