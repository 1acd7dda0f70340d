package jobs

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS %[1]s (
	job_id        UUID PRIMARY KEY,
	status        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	metadata      JSONB NOT NULL DEFAULT '{}'::jsonb,
	artifacts     JSONB NOT NULL DEFAULT '[]'::jsonb,
	error_message TEXT
);
CREATE INDEX IF NOT EXISTS %[1]s_status_idx ON %[1]s (status);
`

// SchemaSQL renders the DDL for the given table. The name must already be
// validated as a plain identifier.
func SchemaSQL(table string) string {
	return fmt.Sprintf(schemaTemplate, table)
}

// EnsureSchema creates the job table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB, table string) error {
	if _, err := db.ExecContext(ctx, SchemaSQL(table)); err != nil {
		return fmt.Errorf("failed to ensure job schema: %w", err)
	}
	return nil
}
