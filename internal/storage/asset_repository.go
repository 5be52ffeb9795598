package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
)

// GetAssetByHash returns the asset published for the given content hash.
// It returns domerrors.ErrNotFound when the hash is unknown.
func (db *DB) GetAssetByHash(ctx context.Context, sha string) (*Asset, error) {
	query := `SELECT sha256, object_key, url, content_type, size, backend, created_at FROM assets WHERE sha256 = ?`

	var a Asset
	err := db.reader.QueryRowContext(ctx, query, sha).Scan(
		&a.SHA256, &a.ObjectKey, &a.URL, &a.ContentType, &a.Size, &a.Backend, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", sha, domerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query asset: %w", err)
	}
	return &a, nil
}

// SaveAsset inserts or updates an asset record.
func (db *DB) SaveAsset(ctx context.Context, asset *Asset) error {
	query := `
		INSERT INTO assets (sha256, object_key, url, content_type, size, backend, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sha256) DO UPDATE SET
			object_key = excluded.object_key,
			url = excluded.url,
			content_type = excluded.content_type,
			size = excluded.size,
			backend = excluded.backend
	`
	createdAt := asset.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}

	start := time.Now()
	_, err := db.writer.ExecContext(ctx, query,
		asset.SHA256, asset.ObjectKey, asset.URL, asset.ContentType, asset.Size, asset.Backend, createdAt)
	if err != nil {
		slog.ErrorContext(ctx, "failed to save asset",
			"sha256", asset.SHA256,
			"error", err)
		return fmt.Errorf("failed to save asset: %w", err)
	}

	// Warn on slow queries (>100ms)
	if duration := time.Since(start); duration > 100*time.Millisecond {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "SaveAsset",
			"duration_ms", duration.Milliseconds())
	}
	return nil
}

// DeleteAsset removes an asset record. Deleting an unknown hash is not an error.
func (db *DB) DeleteAsset(ctx context.Context, sha string) error {
	if _, err := db.writer.ExecContext(ctx, `DELETE FROM assets WHERE sha256 = ?`, sha); err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

// CountAssets returns the number of published assets.
func (db *DB) CountAssets(ctx context.Context) (int, error) {
	var count int
	if err := db.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return count, nil
}
