package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if err := createAssetsTable(ctx, db); err != nil {
		return err
	}
	return createAudienceTables(ctx, db)
}

// assets indexes published images by content hash, so the same bytes are
// uploaded once.
func createAssetsTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS assets (
		sha256 TEXT PRIMARY KEY,
		object_key TEXT NOT NULL,
		url TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size INTEGER NOT NULL,
		backend TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_assets_created_at ON assets(created_at);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create assets table: %w", err)
	}

	return nil
}

func createAudienceTables(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		blocked INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_members_blocked ON members(blocked);

	CREATE TABLE IF NOT EXISTS member_tags (
		member_id TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		tag TEXT NOT NULL,
		PRIMARY KEY (member_id, tag)
	);
	CREATE INDEX IF NOT EXISTS idx_member_tags_tag ON member_tags(tag);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create audience tables: %w", err)
	}

	return nil
}
