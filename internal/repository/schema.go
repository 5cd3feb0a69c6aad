package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements create the record store layout. Every statement is
// idempotent so Migrate can run on each start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	authors       TEXT[] NOT NULL DEFAULT '{}',
	abstract      TEXT NOT NULL DEFAULT '',
	keywords      TEXT[] NOT NULL DEFAULT '{}',
	file_name     TEXT NOT NULL,
	file_type     TEXT NOT NULL DEFAULT 'unknown',
	file_size     BIGINT NOT NULL DEFAULT 0,
	file_content  TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	upload_date   TIMESTAMPTZ NOT NULL,
	last_modified TIMESTAMPTZ NOT NULL,
	version       INTEGER NOT NULL DEFAULT 1 CHECK (version >= 1),
	sync_needed   BOOLEAN,
	last_synced   TIMESTAMPTZ,
	CHECK (last_modified >= upload_date)
)`,
	`CREATE TABLE IF NOT EXISTS status_history (
	id          BIGSERIAL PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	status      TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	notes       TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_status_history_document_id ON status_history (document_id)`,
	`CREATE INDEX IF NOT EXISTS idx_status_history_recorded_at ON status_history (recorded_at)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_upload_date ON documents (upload_date)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_file_name ON documents (file_name)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_sync_needed ON documents (sync_needed) WHERE sync_needed IS NOT FALSE`,
}

// Migrate applies the record store schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
